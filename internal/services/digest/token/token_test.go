package token

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/onepaper/internal/platform/errors"
	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(now *time.Time) *Manager {
	return NewManager(Config{
		Secret: []byte("test-secret"),
		Now:    func() time.Time { return *now },
	})
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	now := testNow
	m := newTestManager(&now)

	signed, err := m.Issue("ada@example.com", domain.ActionUnsubscribe)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := m.Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Email != "ada@example.com" || claims.Action != domain.ActionUnsubscribe {
		t.Fatalf("claims = %+v", claims)
	}
	if !claims.IssuedAt.Equal(testNow) {
		t.Fatalf("IssuedAt = %v, want %v", claims.IssuedAt, testNow)
	}
	if want := testNow.Add(DefaultTTL); !claims.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", claims.ExpiresAt, want)
	}
	if claims.ID == "" {
		t.Fatal("expected token id")
	}
}

func TestIssueUniqueIDs(t *testing.T) {
	now := testNow
	m := newTestManager(&now)
	a, _ := m.Issue("a@example.com", domain.ActionPreferences)
	b, _ := m.Issue("a@example.com", domain.ActionPreferences)
	if a == b {
		t.Fatal("expected distinct tokens for repeated issue")
	}
}

func TestVerifyExpired(t *testing.T) {
	now := testNow
	m := newTestManager(&now)
	signed, err := m.Issue("ada@example.com", domain.ActionPreferences)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	now = testNow.Add(DefaultTTL)
	if _, err := m.Verify(signed); err != nil {
		t.Fatalf("Verify() at exp error = %v", err)
	}

	now = testNow.Add(DefaultTTL + time.Second)
	_, err = m.Verify(signed)
	if !apperrors.IsCode(err, apperrors.CodeTokenExpired) {
		t.Fatalf("Verify() error = %v, want %s", err, apperrors.CodeTokenExpired)
	}
}

func TestVerifyTampered(t *testing.T) {
	now := testNow
	m := newTestManager(&now)
	signed, err := m.Issue("ada@example.com", domain.ActionUnsubscribe)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	parts := strings.Split(signed, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := m.Verify(tampered); !apperrors.IsCode(err, apperrors.CodeTokenInvalid) {
		t.Fatalf("Verify(tampered) error = %v, want %s", err, apperrors.CodeTokenInvalid)
	}
}

func TestVerifyExpiredWithBadSignatureIsExpired(t *testing.T) {
	now := testNow
	m := newTestManager(&now)
	signed, _ := m.Issue("ada@example.com", domain.ActionUnsubscribe)
	other := NewManager(Config{Secret: []byte("other-secret"), Now: func() time.Time { return now }})

	now = testNow.Add(2 * DefaultTTL)
	if _, err := other.Verify(signed); !apperrors.IsCode(err, apperrors.CodeTokenExpired) {
		t.Fatalf("Verify() error = %v, want %s", err, apperrors.CodeTokenExpired)
	}
}

func TestVerifyUnexpiredWithBadSignatureIsInvalid(t *testing.T) {
	now := testNow
	m := newTestManager(&now)
	signed, _ := m.Issue("ada@example.com", domain.ActionUnsubscribe)
	other := NewManager(Config{Secret: []byte("other-secret"), Now: func() time.Time { return now }})

	if _, err := other.Verify(signed); !apperrors.IsCode(err, apperrors.CodeTokenInvalid) {
		t.Fatalf("Verify() error = %v, want %s", err, apperrors.CodeTokenInvalid)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	now := testNow
	m := newTestManager(&now)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"email":  "ada@example.com",
		"action": "unsubscribe",
		"exp":    testNow.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := m.Verify(unsigned); !apperrors.IsCode(err, apperrors.CodeTokenInvalid) {
		t.Fatalf("Verify(none) error = %v, want %s", err, apperrors.CodeTokenInvalid)
	}
}

func TestVerifyMalformed(t *testing.T) {
	now := testNow
	m := newTestManager(&now)
	for _, input := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := m.Verify(input); !apperrors.IsCode(err, apperrors.CodeTokenInvalid) {
			t.Errorf("Verify(%q) error = %v, want %s", input, err, apperrors.CodeTokenInvalid)
		}
	}
}

func TestMissingSecret(t *testing.T) {
	m := NewManager(Config{})
	if m.Configured() {
		t.Fatal("expected manager without secret to be unconfigured")
	}
	if _, err := m.Issue("a@example.com", domain.ActionUnsubscribe); !apperrors.IsCode(err, apperrors.CodeSigningKeyMissing) {
		t.Fatalf("Issue() error = %v, want %s", err, apperrors.CodeSigningKeyMissing)
	}
	if _, err := m.Verify("x.y.z"); !apperrors.IsCode(err, apperrors.CodeSigningKeyMissing) {
		t.Fatalf("Verify() error = %v, want %s", err, apperrors.CodeSigningKeyMissing)
	}
}

func TestIssueUnknownAction(t *testing.T) {
	now := testNow
	m := newTestManager(&now)
	if _, err := m.Issue("a@example.com", domain.Action("delete")); !apperrors.IsCode(err, apperrors.CodeTokenInvalid) {
		t.Fatalf("Issue() error = %v, want %s", err, apperrors.CodeTokenInvalid)
	}
}

func TestRequireAction(t *testing.T) {
	claims := Claims{Action: domain.ActionPreferences}
	if err := RequireAction(claims, domain.ActionPreferences); err != nil {
		t.Fatalf("RequireAction() error = %v", err)
	}
	if err := RequireAction(claims, domain.ActionUnsubscribe); !apperrors.IsCode(err, apperrors.CodeActionMismatch) {
		t.Fatalf("RequireAction() error = %v, want %s", err, apperrors.CodeActionMismatch)
	}
}

func TestManagementLinks(t *testing.T) {
	now := testNow
	m := newTestManager(&now)
	links, err := m.ManagementLinks("https://news.example.com/", "ada+news@example.com")
	if err != nil {
		t.Fatalf("ManagementLinks() error = %v", err)
	}
	for _, tt := range []struct {
		link   string
		path   string
		action domain.Action
	}{
		{link: links.Unsubscribe, path: "/unsubscribe", action: domain.ActionUnsubscribe},
		{link: links.Preferences, path: "/preferences", action: domain.ActionPreferences},
	} {
		parsed, err := url.Parse(tt.link)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.link, err)
		}
		if parsed.Host != "news.example.com" || parsed.Path != tt.path {
			t.Fatalf("link = %q", tt.link)
		}
		claims, err := m.Verify(parsed.Query().Get("token"))
		if err != nil {
			t.Fatalf("Verify(%s) error = %v", tt.path, err)
		}
		if claims.Action != tt.action || claims.Email != "ada+news@example.com" {
			t.Fatalf("claims = %+v", claims)
		}
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(EnvSecret, "  s3cret  ")
	cfg, err := LoadConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if string(cfg.Secret) != "s3cret" {
		t.Fatalf("Secret = %q, want s3cret", cfg.Secret)
	}
	if !NewManager(cfg).Configured() {
		t.Fatal("expected manager to be configured")
	}
}
