package sources

import (
	"context"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

// RSS reads any RSS or Atom feed.
type RSS struct {
	URL    string
	Limit  int
	name   string
	http   requester
	parser *gofeed.Parser
}

// NewRSS returns a feed adapter shown as name.
func NewRSS(name, feedURL string, limit int, opts Options) *RSS {
	return &RSS{
		URL:    feedURL,
		Limit:  limit,
		name:   name,
		http:   newRequester(opts),
		parser: gofeed.NewParser(),
	}
}

func (r *RSS) Name() string { return r.name }

// Fetch returns the first Limit entries in feed order.
func (r *RSS) Fetch(ctx context.Context) ([]domain.NewsItem, error) {
	body, err := r.http.get(ctx, r.URL, nil)
	if err != nil {
		return nil, adapterError(r.Name(), err)
	}
	defer body.Close()

	feed, err := r.parser.Parse(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, adapterError(r.Name(), err)
	}

	items := make([]domain.NewsItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		summary := entry.Description
		if strings.TrimSpace(summary) == "" {
			summary = entry.Content
		}
		items = append(items, domain.NewsItem{
			Title:       plainText(entry.Title),
			URL:         entry.Link,
			Description: domain.Describe(plainText(summary), domain.NoDescription),
			Source:      r.Name(),
		})
		if r.Limit > 0 && len(items) >= r.Limit {
			break
		}
	}
	return items, nil
}
