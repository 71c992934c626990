package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

const (
	newsAPIBaseURL  = "https://newsapi.org/v2"
	headlinesPage   = 10
	headlinesLimit  = 5
	minTitleRunes   = 11
	placeholderMark = "placeholder"
)

// Headlines reads top headlines for one publisher from NewsAPI.
type Headlines struct {
	BaseURL  string
	SourceID string
	Limit    int
	name     string
	apiKey   string
	http     requester
}

// NewHeadlines returns a headline adapter shown as name and querying the
// NewsAPI publisher id sourceID.
func NewHeadlines(name, sourceID string, opts Options) *Headlines {
	return &Headlines{
		BaseURL:  newsAPIBaseURL,
		SourceID: sourceID,
		Limit:    headlinesLimit,
		name:     name,
		apiKey:   opts.NewsAPIKey,
		http:     newRequester(opts),
	}
}

func (h *Headlines) Name() string { return h.name }

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Fetch returns deduplicated headlines. Titles that are too short or carry
// the placeholder marker are dropped before the cap applies.
func (h *Headlines) Fetch(ctx context.Context) ([]domain.NewsItem, error) {
	if strings.TrimSpace(h.apiKey) == "" {
		return nil, adapterError(h.Name(), errors.New("news api key is not configured"))
	}
	query := url.Values{}
	query.Set("sources", h.SourceID)
	query.Set("pageSize", strconv.Itoa(headlinesPage))
	header := http.Header{}
	header.Set("X-Api-Key", h.apiKey)

	var resp newsAPIResponse
	if err := h.http.getJSON(ctx, h.BaseURL+"/top-headlines?"+query.Encode(), header, &resp); err != nil {
		return nil, adapterError(h.Name(), err)
	}
	if resp.Status != "ok" {
		message := resp.Message
		if message == "" {
			message = "unknown error"
		}
		return nil, adapterError(h.Name(), fmt.Errorf("news api %s: %s", resp.Code, message))
	}
	return h.filter(resp.Articles), nil
}

func (h *Headlines) filter(articles []newsAPIArticle) []domain.NewsItem {
	seen := make(map[string]bool, len(articles))
	items := make([]domain.NewsItem, 0, h.Limit)
	for _, article := range articles {
		if len(items) >= h.Limit {
			break
		}
		title := article.Title
		if !acceptableHeadline(title) || seen[title] {
			continue
		}
		seen[title] = true
		items = append(items, domain.NewsItem{
			Title:       title,
			URL:         article.URL,
			Description: domain.Describe(plainText(article.Description), domain.NoDescription),
			Source:      h.Name(),
		})
	}
	return items
}

func acceptableHeadline(title string) bool {
	if utf8.RuneCountInString(title) < minTitleRunes {
		return false
	}
	return !strings.Contains(strings.ToLower(title), placeholderMark)
}
