package bridge

import (
	"context"
	"encoding/json"
	"strings"

	"sjsage522/dealbridge/internal/binder"
	"sjsage522/dealbridge/internal/cpq"
	"sjsage522/dealbridge/internal/deal"
	"sjsage522/dealbridge/internal/extractor"
	"sjsage522/dealbridge/internal/page"
	"sjsage522/dealbridge/logger"
	"sjsage522/dealbridge/pkg/errors"
	"sjsage522/dealbridge/services/cache"
	"sjsage522/dealbridge/services/hubspot"
	"sjsage522/dealbridge/services/publisher"
)

// MissingDealMessage is shown when the required deal fields cannot be read
const MissingDealMessage = "Unable to get deal information. Please try refreshing the page."

// LaunchEventKey is the stream field launch events are published under
const LaunchEventKey = "launch"

// DealFetcher loads a deal from the CRM by id
type DealFetcher interface {
	GetDeal(ctx context.Context, dealID string) (*hubspot.Deal, error)
}

// Options holds the optional collaborators of a Bridge
type Options struct {
	CPQBaseURL string
	Binder     binder.Config

	// Optional; nil disables each
	HubSpot     DealFetcher
	LaunchGuard *cache.LaunchGuard
	Publisher   publisher.Publisher
}

// Bridge forwards the deal shown on a page to the CPQ tool
type Bridge struct {
	page      page.Page
	extractor *extractor.Extractor
	binder    *binder.Binder
	opts      Options
	log       *logger.Logger
}

// New creates a bridge for p
func New(p page.Page, opts Options) *Bridge {
	b := &Bridge{
		page:      p,
		extractor: extractor.New(),
		opts:      opts,
		log:       logger.ForBridge(),
	}
	b.binder = binder.New(p, b.onClick, opts.Binder)
	return b
}

// CurrentDealData reads the deal from the page's host object, DOM and URL.
// Only failures to read the page itself are returned.
func (b *Bridge) CurrentDealData(ctx context.Context) (deal.Record, error) {
	raw, err := b.page.HostObject(ctx)
	if err != nil {
		return deal.Record{}, err
	}
	var host extractor.HostSource = extractor.NoHost
	if h, err := extractor.ParseHostObject(raw); err != nil {
		b.log.Warn().Err(err).Msg("Ignoring unreadable host object")
	} else {
		host = h
	}

	doc, err := b.page.Document(ctx)
	if err != nil {
		return deal.Record{}, err
	}
	loc, err := b.page.Location(ctx)
	if err != nil {
		return deal.Record{}, err
	}

	rec := b.extractor.Extract(host, doc, loc)
	return b.enrich(ctx, rec), nil
}

// enrich fills empty fields from the CRM API when one is configured
func (b *Bridge) enrich(ctx context.Context, rec deal.Record) deal.Record {
	if b.opts.HubSpot == nil || rec.DealID == "" || len(rec.Missing(deal.Fields...)) == 0 {
		return rec
	}

	d, err := b.opts.HubSpot.GetDeal(ctx, rec.DealID)
	if err != nil {
		b.log.Warn().Err(err).Str("deal_id", rec.DealID).Msg("HubSpot lookup failed, using page values")
		return rec
	}
	return b.extractor.Fill(rec, d)
}

// OpenCPQTool opens the CPQ tool for rec in a new tab and returns the URL used.
// A launch suppressed by the launch guard returns the URL without opening it.
func (b *Bridge) OpenCPQTool(ctx context.Context, rec deal.Record) (string, error) {
	target, err := cpq.BuildURL(b.opts.CPQBaseURL, rec)
	if err != nil {
		return "", err
	}

	if !b.opts.LaunchGuard.Allow(rec.DealID) {
		return target, nil
	}

	if err := b.page.Open(ctx, target); err != nil {
		return "", err
	}
	b.log.Info().Str("deal_id", rec.DealID).Str("url", target).Msg("Opened CPQ tool")

	b.publishLaunch(rec, target)
	return target, nil
}

func (b *Bridge) publishLaunch(rec deal.Record, target string) {
	if b.opts.Publisher == nil {
		return
	}
	payload, err := json.Marshal(struct {
		deal.Record
		URL string `json:"url"`
	}{rec, target})
	if err != nil {
		logger.LogError("publisher", err, "failed to encode launch for deal %s", rec.DealID)
		return
	}
	if err := b.opts.Publisher.Publish(LaunchEventKey, payload); err != nil {
		logger.LogError("publisher", err, "failed to publish launch for deal %s", rec.DealID)
	}
}

// UpdateButton rebinds an existing trigger on the page
func (b *Bridge) UpdateButton(ctx context.Context) (bool, error) {
	return b.binder.UpdateButton(ctx)
}

// CreateButton adds a fallback trigger to the page
func (b *Bridge) CreateButton(ctx context.Context) (bool, error) {
	return b.binder.CreateButton(ctx)
}

// Trigger runs the click pipeline: extract, require dealId and dealName,
// then open the CPQ tool. Missing fields alert the user and open nothing.
func (b *Bridge) Trigger(ctx context.Context) (string, error) {
	rec, err := b.CurrentDealData(ctx)
	if err != nil {
		return "", err
	}

	if missing := rec.Missing(deal.RequiredFields...); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = string(f)
		}
		if err := b.page.Alert(ctx, MissingDealMessage); err != nil {
			b.log.Warn().Err(err).Msg("Failed to show alert")
		}
		return "", errors.NewValidation("bridge", "missing required fields: "+strings.Join(names, ", "))
	}

	return b.OpenCPQTool(ctx, rec)
}

// onClick is the handler wired to the trigger; its errors end here
func (b *Bridge) onClick(ctx context.Context) {
	if _, err := b.Trigger(ctx); err != nil {
		b.log.Warn().Err(err).Msg("CPQ launch aborted")
	}
}

// Init wires the trigger into the page. It returns once a trigger is bound,
// a fallback button is created, or creation is found to be impossible.
func (b *Bridge) Init(ctx context.Context) error {
	b.log.Info().Msg("🚀 Initializing deal bridge")
	if err := b.binder.Run(ctx); err != nil {
		return err
	}
	b.log.Info().Msg("✅ Deal bridge initialized")
	return nil
}
