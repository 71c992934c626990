package httpapi

import (
	"html/template"
)

const pageStyle = `body { font-family: -apple-system, system-ui, sans-serif; max-width: 600px; margin: 40px auto; padding: 20px; }
.container { text-align: center; }
.message { color: #059669; }
.error { color: #dc2626; }
.button { display: inline-block; padding: 10px 20px; background-color: #2563eb; color: white; text-decoration: none; border-radius: 5px; border: none; cursor: pointer; }
.danger { background-color: #ef4444; }
.cancel { background-color: #6b7280; margin-left: 10px; }
.preferences-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(200px, 1fr)); gap: 10px; text-align: left; margin: 20px 0; }
.preference-item { padding: 10px; }
.email-display { color: #6b7280; font-size: 0.9em; margin: 10px 0; }`

var pages = template.Must(template.New("layout").Parse(`{{define "layout"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>` + pageStyle + `</style>
</head>
<body>
<div class="container">
{{template "content" .}}
</div>
</body>
</html>{{end}}`))

var (
	unsubscribePageTemplate = page(`{{define "content"}}<h1>Unsubscribe Confirmation</h1>
<p>Are you sure you want to unsubscribe {{.Email}} from the Tech News newsletter?</p>
<form action="/unsubscribe/confirm" method="POST">
<input type="hidden" name="token" value="{{.Token}}">
<button type="submit" class="button danger">Confirm Unsubscribe</button>
<a href="/" class="button cancel">Cancel</a>
</form>{{end}}`)

	unsubscribedTemplate = page(`{{define "content"}}<h1 class="message">Successfully Unsubscribed</h1>
<p>You have been unsubscribed from the Tech News newsletter.</p>
<p>We're sorry to see you go! You can always subscribe again from our homepage.</p>{{end}}`)

	preferencesPageTemplate = page(`{{define "content"}}<h1>Manage Newsletter Preferences</h1>
<p class="email-display">Email: {{.Email}}</p>
<form action="/preferences/update" method="POST">
<input type="hidden" name="token" value="{{.Token}}">
{{range .Groups}}<h3>{{.Title}}</h3>
<div class="preferences-grid">
{{range .Options}}<div class="preference-item">
<input type="checkbox" id="{{.Name}}" name="preferences" value="{{.Name}}"{{if .Checked}} checked{{end}}>
<label for="{{.Name}}">{{.Name}}</label>
</div>
{{end}}</div>
{{end}}<button type="submit" class="button">Update Preferences</button>
</form>{{end}}`)

	preferencesUpdatedTemplate = page(`{{define "content"}}<h1 class="message">Preferences Updated Successfully</h1>
<p>Your newsletter preferences have been updated.</p>
<p>You'll receive your next newsletter with your new preferences.</p>{{end}}`)

	errorPageTemplate = page(`{{define "content"}}<h1 class="error">Something went wrong</h1>
<p>{{.Message}}</p>{{end}}`)
)

func page(content string) *template.Template {
	return template.Must(template.Must(pages.Clone()).Parse(content))
}

type unsubscribeView struct {
	Title string
	Email string
	Token string
}

type preferenceOption struct {
	Name    string
	Checked bool
}

type preferenceGroup struct {
	Title   string
	Options []preferenceOption
}

type preferencesView struct {
	Title  string
	Email  string
	Token  string
	Groups []preferenceGroup
}

type messageView struct {
	Title   string
	Message string
}
