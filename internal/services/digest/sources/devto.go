package sources

import (
	"context"
	"strconv"

	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

const (
	devToBaseURL = "https://dev.to"
	devToLimit   = 10
)

// DevTo reads the top articles of the day.
type DevTo struct {
	BaseURL string
	Limit   int
	http    requester
}

// NewDevTo returns the Dev.to adapter.
func NewDevTo(opts Options) *DevTo {
	return &DevTo{BaseURL: devToBaseURL, Limit: devToLimit, http: newRequester(opts)}
}

func (d *DevTo) Name() string { return domain.SourceDevTo }

type devToArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (d *DevTo) Fetch(ctx context.Context) ([]domain.NewsItem, error) {
	url := d.BaseURL + "/api/articles?top=1&per_page=" + strconv.Itoa(d.Limit)
	var articles []devToArticle
	if err := d.http.getJSON(ctx, url, nil, &articles); err != nil {
		return nil, adapterError(d.Name(), err)
	}
	items := make([]domain.NewsItem, 0, len(articles))
	for _, article := range articles {
		items = append(items, domain.NewsItem{
			Title:       article.Title,
			URL:         article.URL,
			Description: domain.Describe(article.Description, domain.NoDescription),
			Source:      d.Name(),
		})
	}
	return capItems(items, d.Limit), nil
}
