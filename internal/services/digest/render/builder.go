// Package render assembles fetched items into a digest document and turns it
// into the HTML body sent to subscribers.
package render

import (
	"time"

	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

const (
	defaultTitle   = "OnePaper"
	defaultTagline = "Your daily dose of programming & AI news"

	// EmptyMessage is the body of a digest with no items.
	EmptyMessage = "No news available today. Check back tomorrow!"

	// Placeholders substituted per subscriber by Personalize.
	PlaceholderUnsubscribe = "{{unsubscribe_link}}"
	PlaceholderPreferences = "{{preferences_link}}"
	PlaceholderEmail       = "{{subscriber_email}}"

	subjectDateLayout = time.DateOnly
)

// Header is the top of a digest.
type Header struct {
	Title   string
	Tagline string
	Stories int
	Sources int
}

// Section holds the items of one source in provider order.
type Section struct {
	Source string
	Items  []domain.NewsItem
}

// Footer carries the management link placeholders.
type Footer struct {
	PreferencesLink string
	UnsubscribeLink string
	Recipient       string
}

// Document is a digest before rendering.
type Document struct {
	Header   Header
	Sections []Section
	Footer   Footer
	// Empty marks the placeholder document built from no items.
	Empty bool
}

// Build groups items by source. Sections follow the order in which each
// source first appears and keep item order within a source.
func Build(items []domain.NewsItem) Document {
	doc := Document{
		Header: Header{Title: defaultTitle, Tagline: defaultTagline},
		Footer: Footer{
			PreferencesLink: PlaceholderPreferences,
			UnsubscribeLink: PlaceholderUnsubscribe,
			Recipient:       PlaceholderEmail,
		},
	}
	if len(items) == 0 {
		doc.Empty = true
		return doc
	}

	index := make(map[string]int)
	for _, item := range items {
		i, ok := index[item.Source]
		if !ok {
			i = len(doc.Sections)
			index[item.Source] = i
			doc.Sections = append(doc.Sections, Section{Source: item.Source})
		}
		doc.Sections[i].Items = append(doc.Sections[i].Items, item)
	}
	doc.Header.Stories = len(items)
	doc.Header.Sources = len(doc.Sections)
	return doc
}
