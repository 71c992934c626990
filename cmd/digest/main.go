// Package main starts the digest service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	digestcmd "github.com/louisbranch/onepaper/internal/cmd/digest"
	"github.com/louisbranch/onepaper/internal/platform/logging"
)

func main() {
	cfg, err := digestcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	logs := logging.Setup(logging.Config{Prefix: "[DIGEST] ", FilePath: cfg.LogFile})
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := digestcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
