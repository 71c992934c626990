package render

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/message"

	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

func TestBuildGroupsBySourceInFirstSeenOrder(t *testing.T) {
	items := []domain.NewsItem{
		{Title: "a1", Source: "A"},
		{Title: "b1", Source: "B"},
		{Title: "a2", Source: "A"},
	}
	doc := Build(items)
	if doc.Empty {
		t.Fatal("expected non-empty document")
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("len(Sections) = %d, want 2", len(doc.Sections))
	}
	if doc.Sections[0].Source != "A" || doc.Sections[1].Source != "B" {
		t.Fatalf("section order = %q, %q", doc.Sections[0].Source, doc.Sections[1].Source)
	}
	a := doc.Sections[0].Items
	if len(a) != 2 || a[0].Title != "a1" || a[1].Title != "a2" {
		t.Fatalf("section A items = %+v", a)
	}
	if doc.Header.Stories != 3 || doc.Header.Sources != 2 {
		t.Fatalf("header counts = %d/%d, want 3/2", doc.Header.Stories, doc.Header.Sources)
	}
	if doc.Header.Title != "OnePaper" {
		t.Fatalf("Title = %q", doc.Header.Title)
	}
	if doc.Footer.UnsubscribeLink != PlaceholderUnsubscribe || doc.Footer.PreferencesLink != PlaceholderPreferences {
		t.Fatalf("footer = %+v", doc.Footer)
	}
}

func TestBuildEmpty(t *testing.T) {
	doc := Build(nil)
	if !doc.Empty || len(doc.Sections) != 0 {
		t.Fatalf("Build(nil) = %+v, want empty placeholder", doc)
	}

	body, err := New(nil).Render(doc)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(body, EmptyMessage) {
		t.Fatalf("empty body missing %q", EmptyMessage)
	}
	if strings.Contains(body, `class="section"`) {
		t.Fatal("empty body should not contain sections")
	}
}

func TestRenderEscapesItemText(t *testing.T) {
	doc := Build([]domain.NewsItem{{
		Title:       `<script>alert("x")</script>`,
		URL:         "https://example.com/?a=1&b=2",
		Description: "Fish & chips",
		Source:      domain.SourceDevTo,
	}})
	body, err := New(nil).Render(doc)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Fatal("title was not escaped")
	}
	if !strings.Contains(body, "Fish &amp; chips") {
		t.Fatal("description was not escaped")
	}
	if !strings.Contains(body, "a=1&amp;b=2") {
		t.Fatal("url was not attribute-escaped")
	}
}

func TestRenderShowsSectionsAndMeta(t *testing.T) {
	doc := Build([]domain.NewsItem{
		{Title: "repo", URL: "https://github.com/a/b", Source: domain.SourceGitHubTrending, Language: "Go", Score: 12.5},
		{Title: "story", URL: "https://news.ycombinator.com/item?id=1", Source: domain.SourceHackerNews},
	})
	body, err := New(nil).Render(doc)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{
		"2 stories from 2 sources",
		`<h2 class="section-title">GitHub Trending</h2>`,
		`<h2 class="section-title">Hacker News</h2>`,
		"Language: Go",
		"Score: 12.50",
		PlaceholderUnsubscribe,
		PlaceholderPreferences,
		PlaceholderEmail,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Index(body, "GitHub Trending") > strings.Index(body, "Hacker News") {
		t.Fatal("sections out of order")
	}
}

func TestPersonalize(t *testing.T) {
	body, err := New(nil).Render(Build([]domain.NewsItem{{Title: "t", URL: "https://x", Source: "S"}}))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := Personalize(body, Links{
		Unsubscribe: "https://n.example/unsubscribe?token=abc",
		Preferences: "https://n.example/preferences?token=def&x=1",
	}, "ada@example.com")

	for _, placeholder := range []string{PlaceholderUnsubscribe, PlaceholderPreferences, PlaceholderEmail} {
		if strings.Contains(out, placeholder) {
			t.Fatalf("placeholder %q left in output", placeholder)
		}
	}
	if !strings.Contains(out, `href="https://n.example/unsubscribe?token=abc"`) {
		t.Fatal("unsubscribe link not substituted")
	}
	if !strings.Contains(out, "token=def&amp;x=1") {
		t.Fatal("preferences link not escaped")
	}
	if !strings.Contains(out, "ada@example.com") {
		t.Fatal("recipient not substituted")
	}
}

func TestPersonalizeLeavesItemTextAlone(t *testing.T) {
	title := "Why " + PlaceholderUnsubscribe + " breaks templates"
	body, err := New(nil).Render(Build([]domain.NewsItem{{
		Title:       title,
		URL:         "https://x",
		Description: "mail " + PlaceholderEmail,
		Source:      "S",
	}}))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := Personalize(body, Links{
		Unsubscribe: "https://n.example/unsubscribe?token=abc",
		Preferences: "https://n.example/preferences?token=def",
	}, "ada@example.com")

	if !strings.Contains(out, title) {
		t.Fatalf("item title was rewritten: %s", out)
	}
	if !strings.Contains(out, "mail "+PlaceholderEmail) {
		t.Fatal("item description was rewritten")
	}
	if got := strings.Count(out, "https://n.example/unsubscribe?token=abc"); got != 1 {
		t.Fatalf("unsubscribe link count = %d, want 1", got)
	}
	if !strings.Contains(out, "This digest was sent to ada@example.com.") {
		t.Fatal("recipient not substituted in footer")
	}
}

func TestPersonalizeWithoutFooterIsUnchanged(t *testing.T) {
	body := "<p>" + PlaceholderUnsubscribe + "</p>"
	if got := Personalize(body, Links{Unsubscribe: "https://u"}, "a@example.com"); got != body {
		t.Fatalf("Personalize() = %q, want %q", got, body)
	}
}

func TestSubject(t *testing.T) {
	day := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if got, want := New(nil).Subject(day), "Tech News - 2026-03-09"; got != want {
		t.Fatalf("Subject() = %q, want %q", got, want)
	}
}

type fakeLocalizer struct {
	values map[string]string
}

func (f fakeLocalizer) Sprintf(key message.Reference, args ...any) string {
	k, _ := key.(string)
	if v, ok := f.values[k]; ok {
		return fmt.Sprintf(v, args...)
	}
	return k
}

func TestRenderUsesLocalizer(t *testing.T) {
	loc := fakeLocalizer{values: map[string]string{
		"digest.empty":              "Nada hoje.",
		"digest.footer.share":       "Compartilhe!",
		"digest.footer.preferences": "Preferencias",
		"digest.footer.unsubscribe": "Sair",
		"digest.footer.recipient":   "Enviado para %s.",
		"digest.subject":            "Noticias - %s",
	}}
	r := New(loc)
	body, err := r.Render(Build(nil))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"Nada hoje.", "Compartilhe!", "Sair", "Enviado para " + PlaceholderEmail} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if got := r.Subject(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)); got != "Noticias - 2026-01-05" {
		t.Fatalf("Subject() = %q", got)
	}
}
