package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/onepaper/internal/platform/timeouts"
	httpapi "github.com/louisbranch/onepaper/internal/services/digest/api/http"
	"github.com/louisbranch/onepaper/internal/services/digest/cache"
	"github.com/louisbranch/onepaper/internal/services/digest/catalog"
	"github.com/louisbranch/onepaper/internal/services/digest/delivery"
	"github.com/louisbranch/onepaper/internal/services/digest/dispatch"
	"github.com/louisbranch/onepaper/internal/services/digest/events"
	"github.com/louisbranch/onepaper/internal/services/digest/fetch"
	"github.com/louisbranch/onepaper/internal/services/digest/render"
	"github.com/louisbranch/onepaper/internal/services/digest/sources"
	digestsqlite "github.com/louisbranch/onepaper/internal/services/digest/storage/sqlite"
	"github.com/louisbranch/onepaper/internal/services/digest/subscribers"
	"github.com/louisbranch/onepaper/internal/services/digest/token"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls digest startup, dependencies, and schedule.
type RuntimeConfig struct {
	HTTPPort        int
	GRPCPort        int
	DBPath          string
	SubscribersPath string
	// CatalogPath is optional; the built-in catalog is used when empty.
	CatalogPath string
	BaseURL     string
	SendTime    string

	PollInterval   time.Duration
	CacheTTL       time.Duration
	CacheCapacity  int
	AdapterTimeout time.Duration

	TokenSecret string
	NewsAPIKey  string
	GitHubToken string
	AdminKey    string
	NATSURL     string
	SMTP        delivery.SMTPConfig

	// Once runs a single pass and returns instead of serving.
	Once bool
}

const (
	defaultHTTPPort        = 8080
	defaultGRPCPort        = 8090
	defaultDigestDB        = "data/digest.db"
	defaultSubscribersPath = "data/subscribers.json"
	defaultBaseURL         = "http://localhost:8080"

	schedulerHealthService = "digest.scheduler"
)

func (c RuntimeConfig) normalized() RuntimeConfig {
	if c.HTTPPort <= 0 {
		c.HTTPPort = defaultHTTPPort
	}
	if c.GRPCPort <= 0 {
		c.GRPCPort = defaultGRPCPort
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = defaultDigestDB
	}
	if strings.TrimSpace(c.SubscribersPath) == "" {
		c.SubscribersPath = defaultSubscribersPath
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = timeouts.AdapterFetch
	}
	return c
}

// runtime holds the wired components shared by the serve and once modes.
type runtime struct {
	cfg         RuntimeConfig
	catalog     catalog.Catalog
	store       *digestsqlite.Store
	subscribers *subscribers.Service
	tokens      *token.Manager
	scheduler   *dispatch.Scheduler
	publisher   events.Publisher
}

func (r *runtime) Close() {
	if r.publisher != nil {
		r.publisher.Close()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			log.Printf("close digest sqlite store: %v", err)
		}
	}
}

// Run starts the digest dependencies, the HTTP front-end and the scheduler.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := build(ctx, cfg.normalized())
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.cfg.Once {
		return rt.runOnce(ctx)
	}
	return rt.serve(ctx)
}

func build(ctx context.Context, cfg RuntimeConfig) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	rt.catalog = catalog.Default()
	if strings.TrimSpace(cfg.CatalogPath) != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		rt.catalog = loaded
	}

	for _, path := range []string{cfg.DBPath, cfg.SubscribersPath} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create digest storage dir: %w", err)
			}
		}
	}
	store, err := digestsqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open digest sqlite store: %w", err)
	}
	rt.store = store

	subs, err := subscribers.NewService(ctx, subscribers.NewFileStore(cfg.SubscribersPath))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	rt.subscribers = subs

	rt.tokens = token.NewManager(token.Config{Secret: []byte(strings.TrimSpace(cfg.TokenSecret))})
	if !rt.tokens.Configured() {
		log.Printf("warning: %s is not set; management links and token pages are unavailable", token.EnvSecret)
	}

	sender, err := newSender(cfg.SMTP)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.publisher = newPublisher(cfg.NATSURL)

	var cacheOpts []cache.Option
	if cfg.CacheTTL > 0 {
		cacheOpts = append(cacheOpts, cache.WithTTL(cfg.CacheTTL))
	}
	if cfg.CacheCapacity > 0 {
		cacheOpts = append(cacheOpts, cache.WithCapacity(cfg.CacheCapacity))
	}
	orchestrator := fetch.New(fetch.Config{
		Registry: sources.Default(rt.catalog, sources.Options{
			NewsAPIKey:  cfg.NewsAPIKey,
			GitHubToken: cfg.GitHubToken,
		}),
		Catalog:     rt.catalog,
		Cache:       cache.New(cacheOpts...),
		Subscribers: subs,
		Timeout:     cfg.AdapterTimeout,
	})

	scheduler, err := dispatch.New(dispatch.Config{
		Fetcher:      orchestrator,
		Subscribers:  subs,
		Renderer:     render.New(nil),
		Links:        rt.tokens,
		Sender:       sender,
		Attempts:     store,
		Publisher:    rt.publisher,
		BaseURL:      cfg.BaseURL,
		SendTime:     cfg.SendTime,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	rt.scheduler = scheduler
	return rt, nil
}

func newSender(cfg delivery.SMTPConfig) (delivery.Sender, error) {
	if !cfg.Configured() {
		log.Printf("warning: SMTP is not configured; digests are logged instead of sent")
		return delivery.NewLogSender(), nil
	}
	sender, err := delivery.NewSMTPSender(cfg)
	if err != nil {
		return nil, fmt.Errorf("create smtp sender: %w", err)
	}
	return sender, nil
}

// newPublisher falls back to a no-op publisher so a missing broker never
// blocks delivery.
func newPublisher(url string) events.Publisher {
	if strings.TrimSpace(url) == "" {
		return events.NopPublisher{}
	}
	publisher, err := events.ConnectNATS(url)
	if err != nil {
		log.Printf("warning: nats unavailable, dispatch events disabled: %v", err)
		return events.NopPublisher{}
	}
	return publisher
}

func (r *runtime) runOnce(ctx context.Context) error {
	result, err := r.scheduler.RunPass(ctx, dispatch.TriggerOnce)
	if err != nil {
		return fmt.Errorf("run dispatch pass: %w", err)
	}
	log.Printf("pass %s done: %d subscribers, %d sent, %d failed, %d skipped",
		result.PassID, result.Subscribers, result.Sent, result.Failed, result.Skipped)
	return nil
}

func (r *runtime) serve(ctx context.Context) error {
	router, err := httpapi.NewRouter(httpapi.Config{
		Subscribers:    r.subscribers,
		Tokens:         r.tokens,
		Dispatcher:     r.scheduler,
		Attempts:       r.store,
		Catalog:        r.catalog,
		AdminKey:       r.cfg.AdminKey,
		NewsAPIKeySet:  strings.TrimSpace(r.cfg.NewsAPIKey) != "",
		GitHubTokenSet: strings.TrimSpace(r.cfg.GitHubToken) != "",
	})
	if err != nil {
		return fmt.Errorf("create http router: %w", err)
	}

	httpListener, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.HTTPPort))
	if err != nil {
		return fmt.Errorf("listen on http port %d: %w", r.cfg.HTTPPort, err)
	}
	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.Serve(httpListener)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown http server: %v", err)
		}
		if err := <-httpErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server: %v", err)
		}
	}()
	log.Printf("digest http listening at %v", httpListener.Addr())

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on grpc port %d: %w", r.cfg.GRPCPort, err)
	}
	defer grpcListener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(schedulerHealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(grpcListener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()
	log.Printf("digest health server listening at %v", grpcListener.Addr())

	go func() {
		if err := subscribers.WatchAndReload(ctx, r.subscribers, r.cfg.SubscribersPath); err != nil {
			log.Printf("subscriber watcher stopped: %v", err)
		}
	}()

	return r.scheduler.Run(ctx)
}
