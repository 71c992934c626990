// Package token issues and verifies the signed capability tokens embedded in
// unsubscribe and preference links. Tokens are self-contained: nothing is
// stored server side, so a token stays usable until it expires.
package token

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/louisbranch/onepaper/internal/platform/errors"
	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

const (
	// EnvSecret names the variable holding the signing secret.
	EnvSecret = "ONEPAPER_TOKEN_SECRET"
	// DefaultTTL is how long an issued token is honored.
	DefaultTTL = 30 * 24 * time.Hour
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Secret string `env:"ONEPAPER_TOKEN_SECRET"`
}

// Config defines how tokens are signed.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// Claims are the verified contents of a token.
type Claims struct {
	Email     string
	Action    domain.Action
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// actionClaims is the wire form used for signing and parsing.
type actionClaims struct {
	jwt.RegisteredClaims
	Email  string `json:"email"`
	Action string `json:"action"`
}

// Manager issues and verifies action tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// LoadConfigFromEnv reads the signing secret. A missing secret is not an
// error here; token operations report it when they run.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse token env: %w", err)
	}
	return Config{Secret: []byte(strings.TrimSpace(raw.Secret)), Now: now}, nil
}

// NewManager builds a manager from cfg.
func NewManager(cfg Config) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{secret: cfg.Secret, ttl: ttl, now: now}
}

// Configured reports whether a signing secret is present.
func (m *Manager) Configured() bool {
	return m != nil && len(m.secret) > 0
}

// Issue signs a token authorizing action for email.
func (m *Manager) Issue(email string, action domain.Action) (string, error) {
	if !m.Configured() {
		return "", apperrors.New(apperrors.CodeSigningKeyMissing, EnvSecret+" is not configured")
	}
	if !action.Valid() {
		return "", apperrors.WithMetadata(
			apperrors.CodeTokenInvalid,
			fmt.Sprintf("unknown token action %q", action),
			map[string]string{"Action": string(action)},
		)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	now := m.now().UTC()
	claims := actionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        id.String(),
		},
		Email:  email,
		Action: string(action),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the expiry first and the signature second, so an expired
// token reports TokenExpired whatever its signature. It does not check the
// action; see RequireAction.
func (m *Manager) Verify(token string) (Claims, error) {
	if !m.Configured() {
		return Claims{}, apperrors.New(apperrors.CodeSigningKeyMissing, EnvSecret+" is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "token is required")
	}

	var unverified actionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &unverified); err != nil {
		return Claims{}, mapJWTError(err)
	}
	if unverified.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "token exp is required")
	}
	if m.now().UTC().After(unverified.ExpiresAt.Time.UTC()) {
		return Claims{}, apperrors.New(apperrors.CodeTokenExpired, "token is expired")
	}

	var parsed actionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "token exp is required")
	}
	if strings.TrimSpace(parsed.Email) == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "token email is required")
	}
	exp := parsed.ExpiresAt.Time.UTC()

	claims := Claims{
		Email:     parsed.Email,
		Action:    domain.Action(parsed.Action),
		ExpiresAt: exp,
		ID:        parsed.ID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// RequireAction rejects claims issued for a different action.
func RequireAction(claims Claims, action domain.Action) error {
	if claims.Action != action {
		return apperrors.WithMetadata(
			apperrors.CodeActionMismatch,
			fmt.Sprintf("token action %q does not match %q", claims.Action, action),
			map[string]string{"Expected": string(action), "Actual": string(claims.Action)},
		)
	}
	return nil
}

// Links are the per-subscriber management URLs placed in a digest footer.
type Links struct {
	Unsubscribe string
	Preferences string
}

// ManagementLinks mints both action tokens for email and builds the URLs
// under baseURL.
func (m *Manager) ManagementLinks(baseURL, email string) (Links, error) {
	unsubscribe, err := m.Issue(email, domain.ActionUnsubscribe)
	if err != nil {
		return Links{}, err
	}
	preferences, err := m.Issue(email, domain.ActionPreferences)
	if err != nil {
		return Links{}, err
	}
	base := strings.TrimRight(baseURL, "/")
	return Links{
		Unsubscribe: base + "/unsubscribe?token=" + url.QueryEscape(unsubscribe),
		Preferences: base + "/preferences?token=" + url.QueryEscape(preferences),
	}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.Wrap(apperrors.CodeTokenInvalid, "token signature is invalid", err)
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.Wrap(apperrors.CodeTokenInvalid, "token alg is invalid", err)
	}
	return apperrors.Wrap(apperrors.CodeTokenInvalid, "token is invalid", err)
}
