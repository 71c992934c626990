package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// plainText turns an HTML fragment into whitespace-collapsed text. Entities
// are decoded on the way.
func plainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
