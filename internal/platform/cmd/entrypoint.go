// Package cmd holds the startup plumbing shared by the onepaper commands:
// configuration loading and the telemetry wrapper around the digest runtime.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/louisbranch/onepaper/internal/platform/config"
	"github.com/louisbranch/onepaper/internal/platform/otel"
	"github.com/louisbranch/onepaper/internal/platform/timeouts"
)

// ServiceDigest is the service name reported to the trace exporter.
const ServiceDigest = "digest"

// ParseConfig fills cfg from .env and the process environment, lets bind
// register flags whose defaults are the loaded values, then parses args.
// A nil bind skips flag registration.
func ParseConfig[T any](cfg *T, fs *flag.FlagSet, args []string, bind func(*flag.FlagSet, *T)) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	if err := config.ParseEnv(cfg); err != nil {
		return err
	}
	if bind != nil {
		bind(fs, cfg)
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunDigest sets up tracing for the digest service, runs it and flushes
// spans on the way out.
func RunDigest(ctx context.Context, run func(context.Context) error) error {
	if run == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := otel.Setup(ctx, ServiceDigest)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", ServiceDigest, err)
		}
	}()
	return run(ctx)
}
