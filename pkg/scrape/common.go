package scrape

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ownText joins the direct text children of every node in s, ignoring the
// text of nested elements.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return strings.TrimSpace(b.String())
}

// ownTexts returns the non-empty own text of each node in s, in document order.
func ownTexts(s *goquery.Selection) []string {
	var texts []string
	s.Each(func(_ int, n *goquery.Selection) {
		if t := ownText(n); t != "" {
			texts = append(texts, t)
		}
	})
	return texts
}

var departmentR = regexp.MustCompile(`(?i)^professor in the\s+(.+?)\s+department`)

// getDepartment reduces "Professor in the Mathematics department at" to
// "Mathematics". Other phrasings are kept verbatim.
func getDepartment(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if m := departmentR.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return title
}
