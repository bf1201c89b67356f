package scrape

import (
	"bytes"
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"
)

// DefaultUrl is the page template for a single professor, keyed by tid.
const DefaultUrl = "http://www.ratemyprofessors.com/ShowRatings.jsp?tid=%d"

var (
	// ErrFetch marks a page that could not be retrieved (transport or HTTP status).
	ErrFetch = eris.New("fetch failed")
	// ErrParse marks a retrieved page that is missing a required field.
	ErrParse = eris.New("parse failed")
)

type Unmarshaler interface {
	UnmarshalDoc(doc *goquery.Document) error
}

type Scrapable interface {
	Urls() []string
	Unmarshaler
}

// Scrape visits every url of s and feeds each response body to s. Visit errors
// are reported as ErrFetch, unmarshal errors are passed through as-is.
func Scrape(c *colly.Collector, s Scrapable) error {
	var e error
	c = c.Clone() // same collector but without old callbacks
	c.OnResponse(func(res *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body))
		if err != nil {
			e = eris.Wrap(ErrParse, err.Error())
			return
		}
		e = s.UnmarshalDoc(doc)
	})

	for _, url := range s.Urls() {
		if err := c.Visit(url); err != nil {
			return eris.Wrapf(ErrFetch, "%s: %v", url, err)
		}
		if e != nil {
			return e
		}
	}
	return e
}

// Client scrapes professor pages with a shared collector.
type Client struct {
	c   *colly.Collector
	url string
}

func NewClient(c *colly.Collector, urlTemplate string) *Client {
	if urlTemplate == "" {
		urlTemplate = DefaultUrl
	}
	return &Client{c: c, url: urlTemplate}
}

// Professor fetches and parses the page for tid. The visit runs on its own
// goroutine so a cancelled ctx returns immediately; the abandoned visit's
// result is discarded.
func (cl *Client) Professor(ctx context.Context, tid int) (Professor, error) {
	if err := ctx.Err(); err != nil {
		return Professor{}, err
	}

	type result struct {
		prof Professor
		err  error
	}
	done := make(chan result, 1)
	go func() {
		page := &ProfessorPage{Tid: tid, UrlTemplate: cl.url}
		err := Scrape(cl.c, page)
		done <- result{page.Professor, err}
	}()

	select {
	case <-ctx.Done():
		return Professor{}, ctx.Err()
	case r := <-done:
		return r.prof, r.err
	}
}
