// Package fetch resolves a subscriber's preferences to concrete sources and
// gathers their items concurrently. A failing source contributes nothing and
// never fails the whole fetch.
package fetch

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/onepaper/internal/platform/metrics"
	"github.com/louisbranch/onepaper/internal/platform/otel"
	"github.com/louisbranch/onepaper/internal/platform/timeouts"
	"github.com/louisbranch/onepaper/internal/services/digest/cache"
	"github.com/louisbranch/onepaper/internal/services/digest/catalog"
	"github.com/louisbranch/onepaper/internal/services/digest/domain"
	"github.com/louisbranch/onepaper/internal/services/digest/sources"
)

// PreferenceLookup reads the stored preferences of one subscriber.
type PreferenceLookup interface {
	Preferences(email string) ([]string, bool)
}

// Config wires the orchestrator.
type Config struct {
	Registry    *sources.Registry
	Catalog     catalog.Catalog
	Cache       *cache.Cache
	Subscribers PreferenceLookup
	// Timeout bounds each adapter call. Zero means timeouts.AdapterFetch.
	Timeout time.Duration
}

// Orchestrator fans out one fetch per resolved source.
type Orchestrator struct {
	registry    *sources.Registry
	catalog     catalog.Catalog
	cache       *cache.Cache
	subscribers PreferenceLookup
	timeout     time.Duration
	tracer      trace.Tracer
}

// New builds an orchestrator.
func New(cfg Config) *Orchestrator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.AdapterFetch
	}
	return &Orchestrator{
		registry:    cfg.Registry,
		catalog:     cfg.Catalog,
		cache:       cfg.Cache,
		subscribers: cfg.Subscribers,
		timeout:     timeout,
		tracer:      otel.Tracer("fetch"),
	}
}

// ResolveSources maps preferences to an ordered list of source names.
//
// No preferences select the default category. A single entry naming a
// category selects that category. Anything else is taken literally, keeping
// only registered names and the first occurrence of each.
func (o *Orchestrator) ResolveSources(prefs []string) []string {
	if len(prefs) == 0 {
		return o.catalog.DefaultSources()
	}
	if len(prefs) == 1 {
		if names, ok := o.catalog.Category(prefs[0]); ok {
			return names
		}
	}
	resolved := make([]string, 0, len(prefs))
	seen := make(map[string]bool, len(prefs))
	for _, name := range prefs {
		if seen[name] {
			continue
		}
		if _, ok := o.registry.Get(name); !ok {
			continue
		}
		seen[name] = true
		resolved = append(resolved, name)
	}
	return resolved
}

// Resolve returns the sources a subscriber would receive. Unknown
// subscribers get the default category.
func (o *Orchestrator) Resolve(email string) []string {
	var prefs []string
	if o.subscribers != nil {
		prefs, _ = o.subscribers.Preferences(email)
	}
	return o.ResolveSources(prefs)
}

// FetchAllSources gathers items from every source the subscriber resolves
// to. Items keep resolved source order and per-source provider order.
func (o *Orchestrator) FetchAllSources(ctx context.Context, email string) []domain.NewsItem {
	if ctx == nil {
		ctx = context.Background()
	}
	names := o.Resolve(email)
	ctx, span := o.tracer.Start(ctx, "fetch.all_sources", trace.WithAttributes(
		attribute.Int("onepaper.sources", len(names)),
	))
	defer span.End()

	items := o.FetchSources(ctx, names)
	span.SetAttributes(attribute.Int("onepaper.items", len(items)))
	return items
}

// FetchSources runs the named adapters concurrently and concatenates their
// items in the given order.
func (o *Orchestrator) FetchSources(ctx context.Context, names []string) []domain.NewsItem {
	if len(names) == 0 {
		return []domain.NewsItem{}
	}
	slots := make([][]domain.NewsItem, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		adapter, ok := o.registry.Get(name)
		if !ok {
			log.Printf("fetch: source %q is not registered", name)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			slots[i] = o.fetchOne(ctx, adapter)
		}()
	}
	wg.Wait()

	total := 0
	for _, slot := range slots {
		total += len(slot)
	}
	items := make([]domain.NewsItem, 0, total)
	for _, slot := range slots {
		items = append(items, slot...)
	}
	return items
}

func (o *Orchestrator) fetchOne(ctx context.Context, adapter sources.Adapter) (items []domain.NewsItem) {
	name := adapter.Name()
	ctx, span := o.tracer.Start(ctx, "fetch.source", trace.WithAttributes(attribute.String("onepaper.source", name)))
	defer span.End()

	started := time.Now()
	defer func() {
		metrics.AdapterFetchDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("fetch: source %s panicked: %v", name, r)
			metrics.AdapterFetchTotal.WithLabelValues(name, metrics.StatusError).Inc()
			items = nil
		}
	}()

	items, err := o.cache.GetOrFetch(ctx, name, func(ctx context.Context) ([]domain.NewsItem, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		return adapter.Fetch(callCtx)
	})
	if err != nil {
		log.Printf("fetch: source %s failed: %v", name, err)
		span.RecordError(err)
		metrics.AdapterFetchTotal.WithLabelValues(name, metrics.StatusError).Inc()
		return nil
	}
	metrics.AdapterFetchTotal.WithLabelValues(name, metrics.StatusSuccess).Inc()
	metrics.AdapterItemsTotal.WithLabelValues(name).Add(float64(len(items)))
	return items
}
