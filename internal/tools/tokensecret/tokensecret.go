// Package tokensecret generates signing secrets for management tokens and
// can mint sample management links with them.
package tokensecret

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/onepaper/internal/services/digest/token"
)

// Output encodings.
const (
	EncodingHex    = "hex"
	EncodingBase64 = "base64"
)

// Config holds configuration for secret generation.
type Config struct {
	Bytes    int
	Encoding string
	// Email, when set, also prints management links minted with the new secret.
	Email   string
	BaseURL string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32, Encoding: EncodingHex, BaseURL: "http://localhost:8080"}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes")
	fs.StringVar(&cfg.Encoding, "encoding", cfg.Encoding, "secret encoding: hex or base64")
	fs.StringVar(&cfg.Email, "email", cfg.Email, "also print sample management links for this address")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "base URL for sample links")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the secret and writes it to out as an env assignment.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes <= 0 {
		return errors.New("bytes must be greater than zero")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	var secret string
	switch strings.ToLower(strings.TrimSpace(cfg.Encoding)) {
	case "", EncodingHex:
		secret = hex.EncodeToString(buf)
	case EncodingBase64:
		secret = base64.RawURLEncoding.EncodeToString(buf)
	default:
		return fmt.Errorf("unknown encoding %q", cfg.Encoding)
	}
	if _, err := fmt.Fprintf(out, "%s=%s\n", token.EnvSecret, secret); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Email) == "" {
		return nil
	}
	links, err := token.NewManager(token.Config{Secret: []byte(secret)}).ManagementLinks(cfg.BaseURL, cfg.Email)
	if err != nil {
		return fmt.Errorf("mint sample links: %w", err)
	}
	_, err = fmt.Fprintf(out, "# unsubscribe: %s\n# preferences: %s\n", links.Unsubscribe, links.Preferences)
	return err
}
