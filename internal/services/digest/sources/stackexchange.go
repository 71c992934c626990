package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

const (
	stackExchangeBaseURL = "https://api.stackexchange.com/2.3"
	stackExchangeSite    = "stackoverflow"
	stackExchangeLimit   = 10
)

// StackExchange reads the hot questions of one site.
type StackExchange struct {
	BaseURL string
	Site    string
	Limit   int
	http    requester
}

// NewStackExchange returns the Stack Overflow hot questions adapter.
func NewStackExchange(opts Options) *StackExchange {
	return &StackExchange{BaseURL: stackExchangeBaseURL, Site: stackExchangeSite, Limit: stackExchangeLimit, http: newRequester(opts)}
}

func (s *StackExchange) Name() string { return domain.SourceStackExchange }

type stackExchangeResponse struct {
	Items []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"items"`
	ErrorID      int    `json:"error_id"`
	ErrorMessage string `json:"error_message"`
}

func (s *StackExchange) Fetch(ctx context.Context) ([]domain.NewsItem, error) {
	query := url.Values{}
	query.Set("site", s.Site)
	query.Set("sort", "hot")
	query.Set("pagesize", strconv.Itoa(s.Limit))
	var resp stackExchangeResponse
	if err := s.http.getJSON(ctx, s.BaseURL+"/questions?"+query.Encode(), nil, &resp); err != nil {
		return nil, adapterError(s.Name(), err)
	}
	if resp.ErrorID != 0 {
		return nil, adapterError(s.Name(), fmt.Errorf("api error %d: %s", resp.ErrorID, resp.ErrorMessage))
	}
	items := make([]domain.NewsItem, 0, len(resp.Items))
	for _, question := range resp.Items {
		items = append(items, domain.NewsItem{
			// Titles arrive HTML-escaped.
			Title:       plainText(question.Title),
			URL:         question.Link,
			Description: domain.NoDescription,
			Source:      s.Name(),
		})
	}
	return capItems(items, s.Limit), nil
}
