package sources

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

const (
	hackerNewsBaseURL = "https://hacker-news.firebaseio.com/v0"
	hackerNewsLimit   = 5
)

// HackerNews reads the top stories list and looks up each story.
type HackerNews struct {
	BaseURL string
	Limit   int
	http    requester
}

// NewHackerNews returns the Hacker News adapter.
func NewHackerNews(opts Options) *HackerNews {
	return &HackerNews{BaseURL: hackerNewsBaseURL, Limit: hackerNewsLimit, http: newRequester(opts)}
}

func (h *HackerNews) Name() string { return domain.SourceHackerNews }

type hackerNewsStory struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// Fetch returns the first Limit top stories in ranking order.
func (h *HackerNews) Fetch(ctx context.Context) ([]domain.NewsItem, error) {
	var ids []int64
	if err := h.http.getJSON(ctx, h.BaseURL+"/topstories.json", nil, &ids); err != nil {
		return nil, adapterError(h.Name(), err)
	}
	if len(ids) > h.Limit {
		ids = ids[:h.Limit]
	}

	stories := make([]hackerNewsStory, len(ids))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, storyID := range ids {
		group.Go(func() error {
			url := fmt.Sprintf("%s/item/%d.json", h.BaseURL, storyID)
			if err := h.http.getJSON(groupCtx, url, nil, &stories[i]); err != nil {
				return fmt.Errorf("story %d: %w", storyID, err)
			}
			stories[i].ID = storyID
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, adapterError(h.Name(), err)
	}

	items := make([]domain.NewsItem, 0, len(stories))
	for _, story := range stories {
		url := strings.TrimSpace(story.URL)
		if url == "" {
			url = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", story.ID)
		}
		items = append(items, domain.NewsItem{
			Title:       story.Title,
			URL:         url,
			Description: domain.Describe(plainText(story.Text), domain.ReadMoreDescription),
			Source:      h.Name(),
		})
	}
	return items, nil
}
