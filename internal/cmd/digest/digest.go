// Package digest parses digest command flags and launches the digest runtime.
package digest

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/onepaper/internal/platform/cmd"
	"github.com/louisbranch/onepaper/internal/services/digest/app"
	"github.com/louisbranch/onepaper/internal/services/digest/delivery"
)

// Config holds digest command configuration.
type Config struct {
	HTTPPort        int           `env:"ONEPAPER_HTTP_PORT" envDefault:"8080"`
	GRPCPort        int           `env:"ONEPAPER_GRPC_PORT" envDefault:"8090"`
	DBPath          string        `env:"ONEPAPER_DB_PATH" envDefault:"data/digest.db"`
	SubscribersPath string        `env:"ONEPAPER_SUBSCRIBERS_PATH" envDefault:"data/subscribers.json"`
	CatalogPath     string        `env:"ONEPAPER_CATALOG_PATH"`
	BaseURL         string        `env:"ONEPAPER_BASE_URL" envDefault:"http://localhost:8080"`
	SendTime        string        `env:"ONEPAPER_SEND_TIME" envDefault:"09:00"`
	PollInterval    time.Duration `env:"ONEPAPER_POLL_INTERVAL" envDefault:"1m"`
	CacheTTL        time.Duration `env:"ONEPAPER_CACHE_TTL" envDefault:"1h"`
	CacheCapacity   int           `env:"ONEPAPER_CACHE_CAPACITY" envDefault:"100"`
	AdapterTimeout  time.Duration `env:"ONEPAPER_ADAPTER_TIMEOUT" envDefault:"10s"`

	TokenSecret string `env:"ONEPAPER_TOKEN_SECRET"`
	NewsAPIKey  string `env:"ONEPAPER_NEWSAPI_KEY"`
	GitHubToken string `env:"ONEPAPER_GITHUB_TOKEN"`
	AdminKey    string `env:"ONEPAPER_ADMIN_KEY"`
	NATSURL     string `env:"ONEPAPER_NATS_URL"`

	SMTPHost       string `env:"ONEPAPER_SMTP_HOST"`
	SMTPPort       int    `env:"ONEPAPER_SMTP_PORT" envDefault:"587"`
	SMTPUsername   string `env:"ONEPAPER_SMTP_USERNAME"`
	SMTPPassword   string `env:"ONEPAPER_SMTP_PASSWORD"`
	SMTPFrom       string `env:"ONEPAPER_SMTP_FROM"`
	SMTPFromName   string `env:"ONEPAPER_SMTP_FROM_NAME" envDefault:"Tech News Digest"`
	SMTPRequireTLS bool   `env:"ONEPAPER_SMTP_REQUIRE_TLS" envDefault:"true"`

	LogFile string `env:"ONEPAPER_LOG_FILE"`
	Once    bool   `env:"ONEPAPER_ONCE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The HTTP front-end port")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The delivery log SQLite database path")
	fs.StringVar(&cfg.SubscribersPath, "subscribers", cfg.SubscribersPath, "The subscriber JSON file path")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Optional YAML feed catalog path")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Public base URL for management links")
	fs.StringVar(&cfg.SendTime, "send-time", cfg.SendTime, "Daily send time as HH:MM in local time")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Scheduler clock poll interval")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Source result cache lifetime")
	fs.IntVar(&cfg.CacheCapacity, "cache-capacity", cfg.CacheCapacity, "Source result cache entries")
	fs.DurationVar(&cfg.AdapterTimeout, "adapter-timeout", cfg.AdapterTimeout, "Per-source fetch timeout")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Optional rotating log file path")
	fs.BoolVar(&cfg.Once, "once", cfg.Once, "Run a single dispatch pass and exit")
}

// Run starts the digest runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunDigest(ctx, func(ctx context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			HTTPPort:        cfg.HTTPPort,
			GRPCPort:        cfg.GRPCPort,
			DBPath:          cfg.DBPath,
			SubscribersPath: cfg.SubscribersPath,
			CatalogPath:     cfg.CatalogPath,
			BaseURL:         cfg.BaseURL,
			SendTime:        cfg.SendTime,
			PollInterval:    cfg.PollInterval,
			CacheTTL:        cfg.CacheTTL,
			CacheCapacity:   cfg.CacheCapacity,
			AdapterTimeout:  cfg.AdapterTimeout,
			TokenSecret:     cfg.TokenSecret,
			NewsAPIKey:      cfg.NewsAPIKey,
			GitHubToken:     cfg.GitHubToken,
			AdminKey:        cfg.AdminKey,
			NATSURL:         cfg.NATSURL,
			SMTP:            cfg.smtp(),
			Once:            cfg.Once,
		})
	})
}

func (c Config) smtp() delivery.SMTPConfig {
	return delivery.SMTPConfig{
		Host:       c.SMTPHost,
		Port:       c.SMTPPort,
		Username:   c.SMTPUsername,
		Password:   c.SMTPPassword,
		From:       c.SMTPFrom,
		FromName:   c.SMTPFromName,
		RequireTLS: c.SMTPRequireTLS,
	}
}
