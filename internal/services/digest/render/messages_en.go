package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "digest.header.title", defaultTitle)
	message.SetString(lang, "digest.header.tagline", defaultTagline)
	message.SetString(lang, "digest.header.summary", "%d stories from %d sources")
	message.SetString(lang, "digest.empty", EmptyMessage)
	message.SetString(lang, "digest.item.source", "Source: %s")
	message.SetString(lang, "digest.item.language", "Language: %s")
	message.SetString(lang, "digest.item.score", "Score: %.2f")
	message.SetString(lang, "digest.footer.share", "Enjoyed this newsletter? Share it with friends!")
	message.SetString(lang, "digest.footer.preferences", "Manage Preferences")
	message.SetString(lang, "digest.footer.unsubscribe", "Unsubscribe")
	message.SetString(lang, "digest.footer.recipient", "This digest was sent to %s.")
	message.SetString(lang, "digest.subject", "Tech News - %s")
}
