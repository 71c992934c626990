package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/louisbranch/onepaper/internal/platform/errors"
	"github.com/louisbranch/onepaper/internal/services/digest/catalog"
	"github.com/louisbranch/onepaper/internal/services/digest/dispatch"
	"github.com/louisbranch/onepaper/internal/services/digest/domain"
	"github.com/louisbranch/onepaper/internal/services/digest/events"
	"github.com/louisbranch/onepaper/internal/services/digest/storage"
	"github.com/louisbranch/onepaper/internal/services/digest/token"
)

const testAdminKey = "admin-secret"

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSubscribers struct {
	mu   sync.Mutex
	subs map[string][]string
}

func newFakeSubscribers() *fakeSubscribers {
	return &fakeSubscribers{subs: map[string][]string{}}
}

func (f *fakeSubscribers) Add(_ context.Context, email string, prefs []string) error {
	if !domain.ValidEmail(email) {
		return apperrors.New(apperrors.CodeInvalidEmail, "invalid email format")
	}
	if prefs == nil {
		prefs = domain.AllSources()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[email] = prefs
	return nil
}

func (f *fakeSubscribers) Remove(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, email)
	return nil
}

func (f *fakeSubscribers) UpdatePreferences(_ context.Context, email string, prefs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[email]; !ok {
		return apperrors.New(apperrors.CodeSubscriberNotFound, "subscriber not found")
	}
	f.subs[email] = prefs
	return nil
}

func (f *fakeSubscribers) Preferences(email string) ([]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefs, ok := f.subs[email]
	return prefs, ok
}

func (f *fakeSubscribers) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type fakeDispatcher struct {
	passErr  error
	passes   int
	composed []string
}

func (f *fakeDispatcher) Compose(_ context.Context, email string) (dispatch.Message, error) {
	f.composed = append(f.composed, email)
	return dispatch.Message{To: email, Subject: "Tech News - 2026-03-14", Body: "<p>digest for " + email + "</p>", ItemCount: 3}, nil
}

func (f *fakeDispatcher) RunPass(_ context.Context, trigger string) (events.DispatchResult, error) {
	if f.passErr != nil {
		return events.DispatchResult{}, f.passErr
	}
	f.passes++
	return events.DispatchResult{PassID: "pass-1", Trigger: trigger, StartedAt: fixedNow, FinishedAt: fixedNow, Subscribers: 2, Sent: 2}, nil
}

func (f *fakeDispatcher) State() dispatch.State { return dispatch.StateIdle }

func (f *fakeDispatcher) LastResult() (events.DispatchResult, bool) {
	return events.DispatchResult{}, false
}

type fakeAttempts struct {
	records []storage.AttemptRecord
	limit   int
}

func (f *fakeAttempts) RecordAttempt(context.Context, storage.AttemptRecord) error { return nil }

func (f *fakeAttempts) ListAttempts(_ context.Context, limit int) ([]storage.AttemptRecord, error) {
	f.limit = limit
	return f.records, nil
}

type harness struct {
	router     *gin.Engine
	subs       *fakeSubscribers
	dispatcher *fakeDispatcher
	attempts   *fakeAttempts
	tokens     *token.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		subs:       newFakeSubscribers(),
		dispatcher: &fakeDispatcher{},
		attempts:   &fakeAttempts{},
		tokens: token.NewManager(token.Config{
			Secret: []byte("test-secret"),
			Now:    func() time.Time { return fixedNow },
		}),
	}
	router, err := NewRouter(Config{
		Subscribers:       h.subs,
		Tokens:            h.tokens,
		Dispatcher:        h.dispatcher,
		Attempts:          h.attempts,
		Catalog:           catalog.Default(),
		AdminKey:          testAdminKey,
		NewsAPIKeySet:     true,
		Clock:             func() time.Time { return fixedNow },
		DisableRequestLog: true,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	h.router = router
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) issue(t *testing.T, email string, action domain.Action) string {
	t.Helper()
	tok, err := h.tokens.Issue(email, action)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	if _, err := NewRouter(Config{}); err != ErrMissingDependency {
		t.Fatalf("err = %v, want %v", err, ErrMissingDependency)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	h.subs.subs["a@example.com"] = []string{domain.SourceWired}

	rec := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decode(t, rec)
	if body["STATUS"] != "NORMAL" {
		t.Fatalf("STATUS = %v, want NORMAL", body["STATUS"])
	}
	if body["SUBSCRIBERS"] != float64(1) {
		t.Fatalf("SUBSCRIBERS = %v, want 1", body["SUBSCRIBERS"])
	}
	if body["NEWS"] != true || body["GITHUB"] != false {
		t.Fatalf("key presence = %v/%v, want true/false", body["NEWS"], body["GITHUB"])
	}
	if body["LAST_UPDATED"] != "2026-03-14 09:30:00" {
		t.Fatalf("LAST_UPDATED = %v", body["LAST_UPDATED"])
	}
}

func TestSubscribe(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantPrefs  []string
	}{
		{name: "all sources by default", body: `{"email":"a@example.com"}`, wantStatus: http.StatusOK, wantPrefs: domain.AllSources()},
		{name: "empty list means all", body: `{"email":"a@example.com","preferences":[]}`, wantStatus: http.StatusOK, wantPrefs: domain.AllSources()},
		{name: "explicit", body: `{"email":"a@example.com","preferences":["Wired"]}`, wantStatus: http.StatusOK, wantPrefs: []string{"Wired"}},
		{name: "missing email", body: `{"preferences":["Wired"]}`, wantStatus: http.StatusBadRequest},
		{name: "bad email", body: `{"email":"not-an-email"}`, wantStatus: http.StatusBadRequest},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := httptest.NewRequest(http.MethodPost, "/subscribe", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := h.do(req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantPrefs == nil {
				if h.subs.Count() != 0 {
					t.Fatalf("count = %d, want 0", h.subs.Count())
				}
				return
			}
			got, _ := h.subs.Preferences("a@example.com")
			if strings.Join(got, ",") != strings.Join(tt.wantPrefs, ",") {
				t.Fatalf("prefs = %v, want %v", got, tt.wantPrefs)
			}
		})
	}
}

func TestUnsubscribeFlow(t *testing.T) {
	h := newHarness(t)
	h.subs.subs["a@example.com"] = domain.AllSources()
	tok := h.issue(t, "a@example.com", domain.ActionUnsubscribe)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/unsubscribe?token="+url.QueryEscape(tok), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("page status = %d, want %d", rec.Code, http.StatusOK)
	}
	page := rec.Body.String()
	if !strings.Contains(page, "a@example.com") || !strings.Contains(page, `action="/unsubscribe/confirm"`) {
		t.Fatalf("page missing email or form: %s", page)
	}
	if h.subs.Count() != 1 {
		t.Fatal("viewing the confirmation page must not unsubscribe")
	}

	rec = h.do(postForm("/unsubscribe/confirm", url.Values{"token": {tok}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "Successfully Unsubscribed") {
		t.Fatalf("confirm body = %s", rec.Body.String())
	}
	if h.subs.Count() != 0 {
		t.Fatalf("count = %d, want 0", h.subs.Count())
	}
}

func TestUnsubscribeRejectsBadTokens(t *testing.T) {
	h := newHarness(t)
	h.subs.subs["a@example.com"] = domain.AllSources()
	prefsToken := h.issue(t, "a@example.com", domain.ActionPreferences)

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{name: "missing", token: "", wantStatus: http.StatusBadRequest},
		{name: "garbage", token: "not.a.token", wantStatus: http.StatusBadRequest},
		{name: "wrong action", token: prefsToken, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(postForm("/unsubscribe/confirm", url.Values{"token": {tt.token}}))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if h.subs.Count() != 1 {
				t.Fatalf("count = %d, want 1", h.subs.Count())
			}
		})
	}
}

func TestUnsubscribeExpiredToken(t *testing.T) {
	h := newHarness(t)
	old := token.NewManager(token.Config{
		Secret: []byte("test-secret"),
		TTL:    time.Hour,
		Now:    func() time.Time { return fixedNow.Add(-2 * time.Hour) },
	})
	tok, err := old.Issue("a@example.com", domain.ActionUnsubscribe)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec := h.do(httptest.NewRequest(http.MethodGet, "/unsubscribe?token="+url.QueryEscape(tok), nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "expired") {
		t.Fatalf("body = %s, want expiry message", rec.Body.String())
	}
}

func TestPreferencesPage(t *testing.T) {
	h := newHarness(t)
	h.subs.subs["a@example.com"] = []string{domain.SourceWired, catalog.CategoryProgramming}
	tok := h.issue(t, "a@example.com", domain.ActionPreferences)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/preferences?token="+url.QueryEscape(tok), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	page := rec.Body.String()
	for _, name := range domain.AllSources() {
		if !strings.Contains(page, `value="`+name+`"`) {
			t.Fatalf("page missing source %q", name)
		}
	}
	if !strings.Contains(page, `value="Wired" checked`) {
		t.Fatal("Wired should be checked")
	}
	if !strings.Contains(page, `value="`+catalog.CategoryProgramming+`" checked`) {
		t.Fatal("category should be checked")
	}
	if strings.Contains(page, `value="Reddit" checked`) {
		t.Fatal("Reddit should not be checked")
	}
}

func TestPreferencesPageUnknownSubscriber(t *testing.T) {
	h := newHarness(t)
	tok := h.issue(t, "gone@example.com", domain.ActionPreferences)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/preferences?token="+url.QueryEscape(tok), nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPreferencesUpdate(t *testing.T) {
	h := newHarness(t)
	h.subs.subs["a@example.com"] = domain.AllSources()
	tok := h.issue(t, "a@example.com", domain.ActionPreferences)

	form := url.Values{"token": {tok}, "preferences": {domain.SourceHackerNews, domain.SourceDevTo}}
	rec := h.do(postForm("/preferences/update", form))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	got, _ := h.subs.Preferences("a@example.com")
	if strings.Join(got, ",") != "Hacker News,Dev.to" {
		t.Fatalf("prefs = %v", got)
	}
}

func TestPreferencesUpdateUnknownSubscriber(t *testing.T) {
	h := newHarness(t)
	tok := h.issue(t, "gone@example.com", domain.ActionPreferences)

	rec := h.do(postForm("/preferences/update", url.Values{"token": {tok}, "preferences": {"Wired"}}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if h.subs.Count() != 0 {
		t.Fatalf("count = %d, want 0", h.subs.Count())
	}
}

func TestAdminRequiresKey(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/preview?email=a@example.com", "/attempts"} {
		rec := h.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s status = %d, want %d", path, rec.Code, http.StatusUnauthorized)
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/dispatch", nil)
	req.Header.Set(AdminKeyHeader, "wrong")
	if rec := h.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("dispatch status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if h.dispatcher.passes != 0 {
		t.Fatalf("passes = %d, want 0", h.dispatcher.passes)
	}
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	router, err := NewRouter(Config{
		Subscribers:       newFakeSubscribers(),
		Tokens:            token.NewManager(token.Config{}),
		Dispatcher:        &fakeDispatcher{},
		DisableRequestLog: true,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/dispatch", nil)
	req.Header.Set(AdminKeyHeader, "")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestPreview(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/preview?email=a@example.com", nil)
	req.Header.Set(AdminKeyHeader, testAdminKey)

	rec := h.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "<p>digest for a@example.com</p>" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get("X-Digest-Items"); got != "3" {
		t.Fatalf("X-Digest-Items = %q, want 3", got)
	}
}

func TestPreviewRejectsBadEmail(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/preview?email=nope", nil)
	req.Header.Set(AdminKeyHeader, testAdminKey)

	rec := h.do(req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if body := decode(t, rec); body["code"] != string(apperrors.CodeInvalidEmail) {
		t.Fatalf("code = %v, want %s", body["code"], apperrors.CodeInvalidEmail)
	}
	if len(h.dispatcher.composed) != 0 {
		t.Fatalf("composed = %v, want none", h.dispatcher.composed)
	}
}

func TestDispatch(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/dispatch", nil)
	req.Header.Set(AdminKeyHeader, testAdminKey)

	rec := h.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decode(t, rec)
	if body["pass_id"] != "pass-1" || body["sent"] != float64(2) {
		t.Fatalf("body = %v", body)
	}
}

func TestDispatchConflict(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.passErr = dispatch.ErrPassInProgress
	req := httptest.NewRequest(http.MethodPost, "/dispatch", nil)
	req.Header.Set(AdminKeyHeader, testAdminKey)

	rec := h.do(req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if body := decode(t, rec); body["code"] != string(apperrors.CodePassInProgress) {
		t.Fatalf("code = %v", body["code"])
	}
}

func TestAttempts(t *testing.T) {
	h := newHarness(t)
	h.attempts.records = []storage.AttemptRecord{
		{ID: 2, PassID: "p", Email: "b@example.com", Outcome: storage.OutcomeFailed, LastError: "smtp down", CreatedAt: fixedNow},
		{ID: 1, PassID: "p", Email: "a@example.com", Outcome: storage.OutcomeSent, ItemCount: 4, CreatedAt: fixedNow},
	}

	tests := []struct {
		query      string
		wantStatus int
		wantLimit  int
	}{
		{query: "", wantStatus: http.StatusOK, wantLimit: defaultAttemptsLimit},
		{query: "?limit=10", wantStatus: http.StatusOK, wantLimit: 10},
		{query: "?limit=100000", wantStatus: http.StatusOK, wantLimit: maxAttemptsLimit},
		{query: "?limit=abc", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			h.attempts.limit = 0
			req := httptest.NewRequest(http.MethodGet, "/attempts"+tt.query, nil)
			req.Header.Set(AdminKeyHeader, testAdminKey)
			rec := h.do(req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if h.attempts.limit != tt.wantLimit {
				t.Fatalf("limit = %d, want %d", h.attempts.limit, tt.wantLimit)
			}
			list, ok := decode(t, rec)["attempts"].([]any)
			if !ok || len(list) != 2 {
				t.Fatalf("attempts = %v", list)
			}
			first := list[0].(map[string]any)
			if first["last_error"] != "smtp down" {
				t.Fatalf("first = %v", first)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "onepaper_http_requests_total") {
		t.Fatal("metrics output missing http request counter")
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.org")

	rec := h.do(req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
