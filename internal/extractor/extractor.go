package extractor

import (
	"sjsage522/dealbridge/internal/deal"

	"github.com/PuerkitoBio/goquery"
)

// Extractor reads a deal record from host data and the page
type Extractor struct {
	Rules []Rule
}

// New creates an extractor with the default rules
func New() *Extractor {
	return &Extractor{Rules: DefaultRules()}
}

// Extract builds a record. A non-empty host value wins; otherwise the
// first matching strategy decides. Fields nobody matches stay "".
func (e *Extractor) Extract(host HostSource, doc *goquery.Document, pageURL string) deal.Record {
	if host == nil {
		host = NoHost
	}

	var rec deal.Record
	for _, rule := range e.Rules {
		rec.Set(rule.Field, e.extractField(rule, host, doc, pageURL))
	}
	return rec
}

func (e *Extractor) extractField(rule Rule, host HostSource, doc *goquery.Document, pageURL string) string {
	if rule.HostKey != "" {
		if v, ok := host.DealProperty(rule.HostKey); ok && v != "" {
			return v
		}
	}
	for _, s := range rule.Strategies {
		if v, matched := s.Lookup(doc, pageURL); matched {
			return v
		}
	}
	return ""
}

// Fill copies host values into the empty fields of rec
func (e *Extractor) Fill(rec deal.Record, host HostSource) deal.Record {
	if host == nil {
		return rec
	}
	for _, rule := range e.Rules {
		if rule.HostKey == "" || rec.Get(rule.Field) != "" {
			continue
		}
		if v, ok := host.DealProperty(rule.HostKey); ok && v != "" {
			rec.Set(rule.Field, v)
		}
	}
	return rec
}
