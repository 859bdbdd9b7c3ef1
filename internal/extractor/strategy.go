package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy is one way of locating a field on the page.
// matched is false when the strategy found nothing to read from.
type Strategy interface {
	Lookup(doc *goquery.Document, pageURL string) (value string, matched bool)
}

// StrategyFunc adapts a function to Strategy
type StrategyFunc func(doc *goquery.Document, pageURL string) (string, bool)

// Lookup implements Strategy
func (f StrategyFunc) Lookup(doc *goquery.Document, pageURL string) (string, bool) {
	return f(doc, pageURL)
}

// Text reads the trimmed text of the first element matching selector
func Text(selector string) Strategy {
	return StrategyFunc(func(doc *goquery.Document, _ string) (string, bool) {
		if doc == nil {
			return "", false
		}
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		return strings.TrimSpace(sel.Text()), true
	})
}

// Attr reads attribute attr of the first element matching selector, verbatim.
// A matched element without the attribute yields "".
func Attr(selector, attr string) Strategy {
	return StrategyFunc(func(doc *goquery.Document, _ string) (string, bool) {
		if doc == nil {
			return "", false
		}
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		return sel.AttrOr(attr, ""), true
	})
}

// QueryParam reads a query parameter from the page URL
func QueryParam(name string) Strategy {
	return StrategyFunc(func(_ *goquery.Document, pageURL string) (string, bool) {
		u, err := url.Parse(pageURL)
		if err != nil {
			return "", false
		}
		q := u.Query()
		if !q.Has(name) {
			return "", false
		}
		return q.Get(name), true
	})
}

// PathPattern matches re against the page URL path and reads its first capture group
func PathPattern(re *regexp.Regexp) Strategy {
	return StrategyFunc(func(_ *goquery.Document, pageURL string) (string, bool) {
		u, err := url.Parse(pageURL)
		if err != nil {
			return "", false
		}
		m := re.FindStringSubmatch(u.Path)
		if len(m) < 2 {
			return "", false
		}
		return m[1], true
	})
}
