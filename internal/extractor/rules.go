package extractor

import (
	"regexp"

	"sjsage522/dealbridge/internal/deal"
)

// Rule describes how one field is located
type Rule struct {
	Field      deal.Field
	HostKey    string
	Strategies []Strategy
}

var (
	recordPathPattern = regexp.MustCompile(`/record/0-3/(\d+)`)
	dealPathPattern   = regexp.MustCompile(`/deals?/(\d+)`)
)

// textRule builds the usual test-id, semantic class, generic fallback chain
func textRule(field deal.Field, hostKey, testID string, selectors ...string) Rule {
	strategies := []Strategy{Text(`[data-test-id="` + testID + `"]`)}
	for _, s := range selectors {
		strategies = append(strategies, Text(s))
	}
	return Rule{Field: field, HostKey: hostKey, Strategies: strategies}
}

// DefaultRules returns the lookup rules for a HubSpot deal page
func DefaultRules() []Rule {
	dealID := textRule(deal.FieldDealID, HostKeyID, "deal-id", ".deal-id")
	dealID.Strategies = append(dealID.Strategies,
		QueryParam("dealId"),
		PathPattern(recordPathPattern),
		PathPattern(dealPathPattern),
	)

	return []Rule{
		dealID,
		textRule(deal.FieldDealName, "dealname", "deal-name", ".deal-name", "h1"),
		textRule(deal.FieldAmount, "amount", "deal-amount", ".deal-amount", ".amount"),
		textRule(deal.FieldCloseDate, "closedate", "deal-close-date", ".deal-close-date", ".close-date"),
		textRule(deal.FieldStage, "dealstage", "deal-stage", ".deal-stage", ".stage"),
		{
			Field:   deal.FieldOwnerID,
			HostKey: "hubspot_owner_id",
			Strategies: []Strategy{
				Attr(`[data-test-id="deal-owner"]`, "data-owner-id"),
				Attr(".deal-owner", "data-owner-id"),
				Attr(".owner", "data-owner-id"),
			},
		},
		textRule(deal.FieldCompany, "company", "deal-company", ".deal-company", ".company"),
	}
}

// HostKeys maps each field to its host property name under the default rules
func HostKeys() map[deal.Field]string {
	keys := make(map[deal.Field]string, len(deal.Fields))
	for _, r := range DefaultRules() {
		keys[r.Field] = r.HostKey
	}
	return keys
}
