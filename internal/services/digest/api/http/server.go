// Package httpapi serves the subscriber-facing pages and the admin endpoints
// of the digest service.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/louisbranch/onepaper/internal/services/digest/catalog"
	"github.com/louisbranch/onepaper/internal/services/digest/dispatch"
	"github.com/louisbranch/onepaper/internal/services/digest/events"
	"github.com/louisbranch/onepaper/internal/services/digest/storage"
	"github.com/louisbranch/onepaper/internal/services/digest/token"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminKeyHeader carries the admin key on admin requests.
const AdminKeyHeader = "X-Admin-Key"

// Subscribers is the subscriber store used by the handlers.
type Subscribers interface {
	Add(ctx context.Context, email string, prefs []string) error
	Remove(ctx context.Context, email string) error
	UpdatePreferences(ctx context.Context, email string, prefs []string) error
	Preferences(email string) ([]string, bool)
	Count() int
}

// Tokens verifies management tokens.
type Tokens interface {
	Verify(token string) (token.Claims, error)
}

// Dispatcher composes previews and runs manual passes.
type Dispatcher interface {
	Compose(ctx context.Context, email string) (dispatch.Message, error)
	RunPass(ctx context.Context, trigger string) (events.DispatchResult, error)
	State() dispatch.State
	LastResult() (events.DispatchResult, bool)
}

// Config wires the router dependencies.
type Config struct {
	Subscribers Subscribers
	Tokens      Tokens
	Dispatcher  Dispatcher

	// Attempts is optional; /attempts answers 404 without it.
	Attempts storage.AttemptStore
	Catalog  catalog.Catalog

	// AdminKey enables the admin endpoints when non-empty.
	AdminKey          string
	NewsAPIKeySet     bool
	GitHubTokenSet    bool
	MetricsHandler    http.Handler
	Clock             func() time.Time
	DisableRequestLog bool
}

// Server holds the handler dependencies.
type Server struct {
	cfg Config
}

// ErrMissingDependency is returned by NewRouter when a required dependency is nil.
var ErrMissingDependency = errors.New("httpapi: missing dependency")

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg Config) (*gin.Engine, error) {
	if cfg.Subscribers == nil || cfg.Tokens == nil || cfg.Dispatcher == nil {
		return nil, ErrMissingDependency
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}
	if cfg.Catalog.DefaultCategory == "" && len(cfg.Catalog.Categories) == 0 {
		cfg.Catalog = catalog.Default()
	}
	s := &Server{cfg: cfg}

	r := gin.New()
	r.Use(gin.Recovery())
	if !cfg.DisableRequestLog {
		r.Use(gin.Logger())
	}
	r.Use(PrometheusMiddleware())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", AdminKeyHeader}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(config))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))

	r.POST("/subscribe", s.subscribe)
	r.GET("/unsubscribe", s.unsubscribePage)
	r.POST("/unsubscribe/confirm", s.unsubscribeConfirm)
	r.GET("/preferences", s.preferencesPage)
	r.POST("/preferences/update", s.preferencesUpdate)

	admin := r.Group("/", s.requireAdmin)
	{
		admin.GET("/preview", s.preview)
		admin.POST("/dispatch", s.dispatch)
		admin.GET("/attempts", s.attempts)
	}
	return r, nil
}
