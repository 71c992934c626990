package httpapi

import (
	"bytes"
	"context"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/louisbranch/onepaper/internal/platform/errors"
	"github.com/louisbranch/onepaper/internal/services/digest/dispatch"
	"github.com/louisbranch/onepaper/internal/services/digest/domain"
	"github.com/louisbranch/onepaper/internal/services/digest/token"
)

const (
	defaultAttemptsLimit = 50
	maxAttemptsLimit     = 500
	healthTimeLayout     = "2006-01-02 15:04:05"
)

type subscribeRequest struct {
	Email       string   `json:"email"`
	Preferences []string `json:"preferences"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"STATUS":       "NORMAL",
		"SUBSCRIBERS":  s.cfg.Subscribers.Count(),
		"NEWS":         s.cfg.NewsAPIKeySet,
		"GITHUB":       s.cfg.GitHubTokenSet,
		"DISPATCH":     s.cfg.Dispatcher.State().String(),
		"LAST_UPDATED": s.cfg.Clock().Format(healthTimeLayout),
	})
}

func (s *Server) subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if domain.NormalizeEmail(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required!"})
		return
	}
	prefs := req.Preferences
	if len(prefs) == 0 {
		prefs = nil
	}
	if err := s.cfg.Subscribers.Add(c.Request.Context(), req.Email, prefs); err != nil {
		writeJSONError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully subscribed!"})
}

func (s *Server) unsubscribePage(c *gin.Context) {
	raw := c.Query("token")
	claims, err := s.verify(raw, domain.ActionUnsubscribe)
	if err != nil {
		writePageError(c, err)
		return
	}
	writePage(c, http.StatusOK, unsubscribePageTemplate, unsubscribeView{
		Title: "Unsubscribe Confirmation",
		Email: claims.Email,
		Token: raw,
	})
}

func (s *Server) unsubscribeConfirm(c *gin.Context) {
	claims, err := s.verify(c.PostForm("token"), domain.ActionUnsubscribe)
	if err != nil {
		writePageError(c, err)
		return
	}
	if err := s.cfg.Subscribers.Remove(c.Request.Context(), claims.Email); err != nil {
		writePageError(c, err)
		return
	}
	writePage(c, http.StatusOK, unsubscribedTemplate, messageView{Title: "Unsubscribed Successfully"})
}

func (s *Server) preferencesPage(c *gin.Context) {
	raw := c.Query("token")
	claims, err := s.verify(raw, domain.ActionPreferences)
	if err != nil {
		writePageError(c, err)
		return
	}
	current, ok := s.cfg.Subscribers.Preferences(claims.Email)
	if !ok {
		writePageError(c, apperrors.WithMetadata(apperrors.CodeSubscriberNotFound, "subscriber not found", map[string]string{"Email": claims.Email}))
		return
	}
	writePage(c, http.StatusOK, preferencesPageTemplate, preferencesView{
		Title:  "Manage Newsletter Preferences",
		Email:  claims.Email,
		Token:  raw,
		Groups: s.preferenceGroups(current),
	})
}

func (s *Server) preferencesUpdate(c *gin.Context) {
	claims, err := s.verify(c.PostForm("token"), domain.ActionPreferences)
	if err != nil {
		writePageError(c, err)
		return
	}
	prefs := c.PostFormArray("preferences")
	if err := s.cfg.Subscribers.UpdatePreferences(c.Request.Context(), claims.Email, prefs); err != nil {
		writePageError(c, err)
		return
	}
	writePage(c, http.StatusOK, preferencesUpdatedTemplate, messageView{Title: "Preferences Updated"})
}

func (s *Server) preview(c *gin.Context) {
	email := domain.NormalizeEmail(c.Query("email"))
	if !domain.ValidEmail(email) {
		writeJSONError(c, apperrors.WithMetadata(apperrors.CodeInvalidEmail, "invalid email format", map[string]string{"Email": email}))
		return
	}
	msg, err := s.cfg.Dispatcher.Compose(c.Request.Context(), email)
	if err != nil {
		writeJSONError(c, err)
		return
	}
	c.Header("X-Digest-Subject", msg.Subject)
	c.Header("X-Digest-Items", strconv.Itoa(msg.ItemCount))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(msg.Body))
}

func (s *Server) dispatch(c *gin.Context) {
	// The pass outlives a disconnected admin client.
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := s.cfg.Dispatcher.RunPass(ctx, dispatch.TriggerManual)
	if err != nil {
		writeJSONError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pass_id":     result.PassID,
		"started_at":  result.StartedAt.Format(time.RFC3339),
		"finished_at": result.FinishedAt.Format(time.RFC3339),
		"subscribers": result.Subscribers,
		"sent":        result.Sent,
		"failed":      result.Failed,
		"skipped":     result.Skipped,
	})
}

func (s *Server) attempts(c *gin.Context) {
	if s.cfg.Attempts == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "attempt log is not configured"})
		return
	}
	limit := defaultAttemptsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxAttemptsLimit)
	}
	records, err := s.cfg.Attempts.ListAttempts(c.Request.Context(), limit)
	if err != nil {
		log.Printf("http: list attempts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list attempts"})
		return
	}
	out := make([]gin.H, 0, len(records))
	for _, record := range records {
		entry := gin.H{
			"id":         record.ID,
			"pass_id":    record.PassID,
			"email":      record.Email,
			"outcome":    record.Outcome,
			"item_count": record.ItemCount,
			"created_at": record.CreatedAt.UTC().Format(time.RFC3339),
		}
		if record.LastError != "" {
			entry["last_error"] = record.LastError
		}
		out = append(out, entry)
	}
	resp := gin.H{"attempts": out}
	if last, ok := s.cfg.Dispatcher.LastResult(); ok {
		resp["last_pass"] = last
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) verify(raw string, action domain.Action) (token.Claims, error) {
	claims, err := s.cfg.Tokens.Verify(raw)
	if err != nil {
		return token.Claims{}, err
	}
	if err := token.RequireAction(claims, action); err != nil {
		return token.Claims{}, err
	}
	return claims, nil
}

// preferenceGroups lists single sources first and categories second, each
// checked when present in current.
func (s *Server) preferenceGroups(current []string) []preferenceGroup {
	selected := make(map[string]bool, len(current))
	for _, name := range current {
		selected[name] = true
	}
	sources := preferenceGroup{Title: "Sources"}
	for _, name := range domain.AllSources() {
		sources.Options = append(sources.Options, preferenceOption{Name: name, Checked: selected[name]})
	}
	categories := preferenceGroup{Title: "Categories"}
	for _, category := range s.cfg.Catalog.Categories {
		categories.Options = append(categories.Options, preferenceOption{Name: category.Name, Checked: selected[category.Name]})
	}
	if len(categories.Options) == 0 {
		return []preferenceGroup{sources}
	}
	return []preferenceGroup{sources, categories}
}

func writeJSONError(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("http: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"code": string(code), "message": code.UserMessage()})
}

func writePageError(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("http: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	writePage(c, status, errorPageTemplate, messageView{Title: "Error", Message: code.UserMessage()})
}

func writePage(c *gin.Context, status int, tmpl *template.Template, view any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", view); err != nil {
		log.Printf("http: render page: %v", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
