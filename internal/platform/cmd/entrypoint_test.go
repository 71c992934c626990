package cmd

import (
	"context"
	"errors"
	"flag"
	"io"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"server"`
}

func bindTestFlags(fs *flag.FlagSet, cfg *testConfig) {
	fs.StringVar(&cfg.Address, "address", cfg.Address, "address")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("CMD_TEST_MODE", "env-mode")

	var cfg testConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if err := ParseConfig(&cfg, fs, []string{"-address", "flag:9001"}, bindTestFlags); err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Address != "flag:9001" {
		t.Fatalf("Address = %q, want flag:9001", cfg.Address)
	}
	if cfg.Mode != "env-mode" {
		t.Fatalf("Mode = %q, want env-mode", cfg.Mode)
	}
}

func TestParseConfigDefaultsWithoutFlags(t *testing.T) {
	var cfg testConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if err := ParseConfig(&cfg, fs, nil, nil); err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Address != "127.0.0.1:8080" || cfg.Mode != "server" {
		t.Fatalf("cfg = %+v, want envDefault values", cfg)
	}
}

func TestParseConfigRejectsUnknownFlag(t *testing.T) {
	var cfg testConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := ParseConfig(&cfg, fs, []string{"-nope"}, bindTestFlags); err == nil {
		t.Fatal("expected unknown flag error")
	}
}

func TestParseConfigRejectsNilInputs(t *testing.T) {
	if err := ParseConfig[testConfig](nil, flag.NewFlagSet("test", flag.ContinueOnError), nil, nil); err == nil {
		t.Fatal("expected nil target error")
	}
	if err := ParseConfig(&testConfig{}, nil, nil, nil); err == nil {
		t.Fatal("expected nil flag parser error")
	}
}

func TestRunDigestRejectsNilRun(t *testing.T) {
	if err := RunDigest(context.Background(), nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunDigestReturnsRunError(t *testing.T) {
	t.Setenv("ONEPAPER_OTEL_ENDPOINT", "")
	want := errors.New("boom")
	err := RunDigest(context.Background(), func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
