// Package catalog describes the configurable parts of the source set: the
// RSS/Atom feeds and the named categories subscribers can pick.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

const (
	CategoryProgramming = "Programming"
	CategoryTechAI      = "Tech & AI"

	defaultFeedLimit = 5
)

// Feed is one RSS/Atom source.
type Feed struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Limit int    `yaml:"limit,omitempty"`
}

// Category is a named, ordered list of source names.
type Category struct {
	Name    string   `yaml:"name"`
	Sources []string `yaml:"sources"`
}

// Catalog is the full set of feeds and categories.
type Catalog struct {
	DefaultCategory string     `yaml:"default_category"`
	Categories      []Category `yaml:"categories"`
	Feeds           []Feed     `yaml:"feeds"`
}

// Default returns the built-in catalog.
func Default() Catalog {
	return Catalog{
		DefaultCategory: CategoryTechAI,
		Categories: []Category{
			{
				Name: CategoryProgramming,
				Sources: []string{
					domain.SourceHackerNews,
					domain.SourceReddit,
					domain.SourceDevTo,
					domain.SourceStackExchange,
					domain.SourceGitHubTrending,
				},
			},
			{
				Name: CategoryTechAI,
				Sources: []string{
					domain.SourceTheVerge,
					domain.SourceWired,
					domain.SourceArsTechnica,
					domain.SourceVentureBeat,
					domain.SourceZDNet,
					domain.SourceTechRadar,
					domain.SourceHackernoon,
					domain.SourceScienceDaily,
				},
			},
		},
		Feeds: []Feed{
			{Name: domain.SourceArsTechnica, URL: "https://arstechnica.com/feed/"},
			{Name: domain.SourceVentureBeat, URL: "https://venturebeat.com/feed/"},
			{Name: domain.SourceZDNet, URL: "https://www.zdnet.com/news/rss.xml"},
			{Name: domain.SourceTechRadar, URL: "https://www.techradar.com/rss"},
			{Name: domain.SourceHackernoon, URL: "https://hackernoon.com/feed"},
			{Name: domain.SourceScienceDaily, URL: "https://www.sciencedaily.com/rss/computers_math/technology.xml"},
		},
	}
}

// Load reads a YAML catalog from path. An empty path yields Default. Sections
// missing from the file keep their built-in values.
func Load(path string) (Catalog, error) {
	cat := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return cat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if strings.TrimSpace(file.DefaultCategory) != "" {
		cat.DefaultCategory = strings.TrimSpace(file.DefaultCategory)
	}
	if len(file.Categories) > 0 {
		cat.Categories = file.Categories
	}
	if len(file.Feeds) > 0 {
		cat.Feeds = file.Feeds
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// Validate checks names are unique and the default category exists.
func (c Catalog) Validate() error {
	categories := make(map[string]bool, len(c.Categories))
	for _, category := range c.Categories {
		name := strings.TrimSpace(category.Name)
		if name == "" {
			return fmt.Errorf("category name is required")
		}
		if categories[name] {
			return fmt.Errorf("duplicate category %q", name)
		}
		categories[name] = true
	}
	if !categories[c.DefaultCategory] {
		return fmt.Errorf("default category %q is not defined", c.DefaultCategory)
	}
	feeds := make(map[string]bool, len(c.Feeds))
	for _, feed := range c.Feeds {
		name := strings.TrimSpace(feed.Name)
		if name == "" || strings.TrimSpace(feed.URL) == "" {
			return fmt.Errorf("feed name and url are required")
		}
		if feeds[name] {
			return fmt.Errorf("duplicate feed %q", name)
		}
		feeds[name] = true
	}
	return nil
}

// Category returns the sources for a category name.
func (c Catalog) Category(name string) ([]string, bool) {
	for _, category := range c.Categories {
		if category.Name == name {
			return append([]string(nil), category.Sources...), true
		}
	}
	return nil, false
}

// DefaultSources returns the sources of the default category.
func (c Catalog) DefaultSources() []string {
	sources, _ := c.Category(c.DefaultCategory)
	return sources
}

// FeedLimit returns the item cap for a feed.
func (f Feed) FeedLimit() int {
	if f.Limit <= 0 {
		return defaultFeedLimit
	}
	return f.Limit
}
