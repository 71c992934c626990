package render

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Links are the resolved management URLs for one subscriber.
type Links struct {
	Unsubscribe string
	Preferences string
}

// Renderer turns documents into HTML.
type Renderer struct {
	loc  Localizer
	page *template.Template
}

// New builds a renderer. A nil localizer uses the English catalog.
func New(loc Localizer) *Renderer {
	if loc == nil {
		loc = message.NewPrinter(language.English)
	}
	r := &Renderer{loc: loc}
	r.page = template.Must(template.New("digest").Parse(pageTemplate))
	return r
}

type itemView struct {
	Title       string
	URL         string
	Description string
	Meta        []string
}

type sectionView struct {
	Source string
	Items  []itemView
}

type pageView struct {
	Title    string
	Tagline  string
	Summary  string
	Empty    bool
	Message  string
	Sections []sectionView
	Footer   template.HTML
}

// Render produces the HTML body of doc. Item text is escaped; footer
// placeholders are left for Personalize.
func (r *Renderer) Render(doc Document) (string, error) {
	view := pageView{
		Title:   doc.Header.Title,
		Tagline: doc.Header.Tagline,
		Empty:   doc.Empty,
		Footer:  r.footer(doc.Footer),
	}
	if doc.Empty {
		view.Message = r.localize("digest.empty")
	} else {
		view.Summary = r.localize("digest.header.summary", doc.Header.Stories, doc.Header.Sources)
	}
	for _, section := range doc.Sections {
		sv := sectionView{Source: section.Source}
		for _, item := range section.Items {
			iv := itemView{
				Title:       item.Title,
				URL:         item.URL,
				Description: item.Description,
				Meta:        []string{r.localize("digest.item.source", item.Source)},
			}
			if item.Language != "" {
				iv.Meta = append(iv.Meta, r.localize("digest.item.language", item.Language))
			}
			if item.Score != 0 {
				iv.Meta = append(iv.Meta, r.localize("digest.item.score", item.Score))
			}
			sv.Items = append(sv.Items, iv)
		}
		view.Sections = append(view.Sections, sv)
	}

	var buf bytes.Buffer
	if err := r.page.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

// Subject returns the mail subject for a digest sent on day.
func (r *Renderer) Subject(day time.Time) string {
	return r.localize("digest.subject", day.Format(subjectDateLayout))
}

// footer is built outside the template so the placeholders survive
// escaping untouched.
func (r *Renderer) footer(f Footer) template.HTML {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(r.localize("digest.footer.share")))
	fmt.Fprintf(&b, `<p><a href="%s">%s</a> | <a href="%s" class="unsubscribe">%s</a></p>`+"\n",
		html.EscapeString(f.PreferencesLink), html.EscapeString(r.localize("digest.footer.preferences")),
		html.EscapeString(f.UnsubscribeLink), html.EscapeString(r.localize("digest.footer.unsubscribe")))
	fmt.Fprintf(&b, `<p class="recipient">%s</p>`, html.EscapeString(r.localize("digest.footer.recipient", f.Recipient)))
	return template.HTML(b.String())
}

func (r *Renderer) localize(key string, args ...any) string {
	return r.loc.Sprintf(key, args...)
}

// footerOpen starts the footer block. Item text is escaped, so the tag can
// only come from the page template.
const footerOpen = `<div class="footer">`

// Personalize substitutes the subscriber's links and address into the footer
// of a rendered body. Values are HTML-escaped. Placeholder text elsewhere in
// the body, such as inside a feed title, is left as is.
func Personalize(body string, links Links, email string) string {
	at := strings.LastIndex(body, footerOpen)
	if at < 0 {
		return body
	}
	replacer := strings.NewReplacer(
		PlaceholderUnsubscribe, html.EscapeString(links.Unsubscribe),
		PlaceholderPreferences, html.EscapeString(links.Preferences),
		PlaceholderEmail, html.EscapeString(email),
	)
	return body[:at] + replacer.Replace(body[at:])
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<style>
body { font-family: Arial, sans-serif; max-width: 650px; margin: 0 auto; padding: 20px; color: #333; }
.header { text-align: center; margin-bottom: 40px; }
.header h1 { font-size: 36px; font-weight: bold; margin: 0; }
.section { margin-bottom: 40px; }
.section-title { font-size: 24px; font-weight: bold; margin-bottom: 10px; border-bottom: 2px solid #ddd; padding-bottom: 5px; }
.article { margin-bottom: 20px; }
.article-title { font-size: 18px; font-weight: bold; color: #0073e6; text-decoration: none; }
.article-description { font-size: 16px; color: #666; margin: 8px 0; }
.article-meta { font-size: 14px; color: #999; }
.footer { text-align: center; font-size: 14px; color: #777; margin-top: 40px; padding-top: 20px; border-top: 1px solid #ddd; }
.unsubscribe { color: red; text-decoration: none; }
</style>
</head>
<body>
<div class="header">
<h1>{{.Title}}</h1>
<p>{{.Tagline}}</p>
{{- if .Summary}}
<p class="summary">{{.Summary}}</p>
{{- end}}
</div>
{{- if .Empty}}
<p class="empty">{{.Message}}</p>
{{- end}}
{{- range .Sections}}
<div class="section">
<h2 class="section-title">{{.Source}}</h2>
{{- range .Items}}
<div class="article">
<a href="{{.URL}}" class="article-title">{{.Title}}</a>
<p class="article-description">{{.Description}}</p>
<p class="article-meta">{{range $i, $m := .Meta}}{{if $i}} | {{end}}{{$m}}{{end}}</p>
</div>
{{- end}}
</div>
{{- end}}
` + footerOpen + `
{{.Footer}}
</div>
</body>
</html>
`
