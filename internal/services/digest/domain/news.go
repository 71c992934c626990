// Package domain holds the types shared by the digest pipeline.
package domain

import (
	"strings"
	"unicode/utf8"
)

// Source display names. They double as registry keys and preference values.
const (
	SourceHackerNews     = "Hacker News"
	SourceReddit         = "Reddit"
	SourceDevTo          = "Dev.to"
	SourceStackExchange  = "Stack Exchange"
	SourceGitHubTrending = "GitHub Trending"
	SourceTheVerge       = "The Verge"
	SourceWired          = "Wired"
	SourceArsTechnica    = "Ars Technica"
	SourceVentureBeat    = "VentureBeat"
	SourceZDNet          = "ZDNet"
	SourceTechRadar      = "TechRadar"
	SourceHackernoon     = "Hackernoon"
	SourceScienceDaily   = "Science Daily"
)

// AllSources lists every known source in the order a fresh subscriber gets them.
func AllSources() []string {
	return []string{
		SourceHackerNews,
		SourceReddit,
		SourceDevTo,
		SourceStackExchange,
		SourceGitHubTrending,
		SourceTheVerge,
		SourceWired,
		SourceArsTechnica,
		SourceVentureBeat,
		SourceZDNet,
		SourceTechRadar,
		SourceHackernoon,
		SourceScienceDaily,
	}
}

const (
	// DescriptionLimit is the number of runes kept from a description.
	DescriptionLimit = 200
	// ContinuationMarker is appended to descriptions that were cut.
	ContinuationMarker = "..."
	// NoDescription replaces a missing description.
	NoDescription = "No description available"
	// ReadMoreDescription replaces a missing Hacker News story text.
	ReadMoreDescription = "Check out the article for more details."
)

// NewsItem is one normalized entry produced by a source adapter.
type NewsItem struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description string  `json:"description,omitempty"`
	Source      string  `json:"source"`
	Language    string  `json:"language,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

// Describe returns text cut to DescriptionLimit runes with the continuation
// marker appended when something was cut. Blank text yields fallback.
func Describe(text, fallback string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}
	if utf8.RuneCountInString(text) <= DescriptionLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:DescriptionLimit]) + ContinuationMarker
}
