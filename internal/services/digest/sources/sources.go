// Package sources implements one adapter per external feed. Every adapter
// turns a provider payload into normalized news items and reports transport,
// parse, and rate-limit problems as errors instead of partial results.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/louisbranch/onepaper/internal/platform/errors"
	"github.com/louisbranch/onepaper/internal/services/digest/catalog"
	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

// DefaultUserAgent identifies the aggregator to providers that require one.
const DefaultUserAgent = "OnePaper/1.0 (+https://github.com/louisbranch/onepaper)"

// Adapter fetches the current items of one source.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.NewsItem, error)
}

// Options carries what adapters share: transport, credentials, and clock.
type Options struct {
	Client      *http.Client
	UserAgent   string
	NewsAPIKey  string
	GitHubToken string
	Clock       func() time.Time
}

func (o Options) normalized() Options {
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Registry maps source names to adapters and remembers registration order.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds a registry. A later adapter with the same name replaces
// an earlier one but keeps its position.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, adapter := range adapters {
		r.Register(adapter)
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(adapter Adapter) {
	if adapter == nil {
		return
	}
	name := adapter.Name()
	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.adapters[name] = adapter
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	adapter, ok := r.adapters[name]
	return adapter, ok
}

// Names lists registered source names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Default builds the production registry from the catalog.
func Default(cat catalog.Catalog, opts Options) *Registry {
	opts = opts.normalized()
	r := NewRegistry(
		NewHackerNews(opts),
		NewReddit(opts),
		NewDevTo(opts),
		NewStackExchange(opts),
		NewGitHubTrending(opts),
		NewHeadlines(domain.SourceTheVerge, "the-verge", opts),
		NewHeadlines(domain.SourceWired, "wired", opts),
	)
	for _, feed := range cat.Feeds {
		r.Register(NewRSS(feed.Name, feed.URL, feed.FeedLimit(), opts))
	}
	return r
}

func adapterError(source string, err error) error {
	return apperrors.WrapWithMetadata(
		apperrors.CodeAdapterFailure,
		fmt.Sprintf("fetch %s: %v", source, err),
		map[string]string{"Source": source},
		err,
	)
}

func capItems(items []domain.NewsItem, limit int) []domain.NewsItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
