package sources

import (
	"context"
	"strconv"

	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

const (
	redditBaseURL   = "https://www.reddit.com"
	redditSubreddit = "programming"
	redditLimit     = 10
)

// Reddit reads the top posts of one subreddit.
type Reddit struct {
	BaseURL   string
	Subreddit string
	Limit     int
	http      requester
}

// NewReddit returns the r/programming adapter.
func NewReddit(opts Options) *Reddit {
	return &Reddit{BaseURL: redditBaseURL, Subreddit: redditSubreddit, Limit: redditLimit, http: newRequester(opts)}
}

func (r *Reddit) Name() string { return domain.SourceReddit }

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title     string `json:"title"`
				Permalink string `json:"permalink"`
				Selftext  string `json:"selftext"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Fetch returns the subreddit's top posts linked to their discussion page.
func (r *Reddit) Fetch(ctx context.Context) ([]domain.NewsItem, error) {
	url := r.BaseURL + "/r/" + r.Subreddit + "/top.json?limit=" + strconv.Itoa(r.Limit)
	var listing redditListing
	if err := r.http.getJSON(ctx, url, nil, &listing); err != nil {
		return nil, adapterError(r.Name(), err)
	}
	items := make([]domain.NewsItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		items = append(items, domain.NewsItem{
			Title:       post.Title,
			URL:         "https://reddit.com" + post.Permalink,
			Description: domain.Describe(post.Selftext, domain.NoDescription),
			Source:      r.Name(),
		})
	}
	return capItems(items, r.Limit), nil
}
