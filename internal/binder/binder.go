package binder

import (
	"context"
	"time"

	"sjsage522/dealbridge/internal/page"
	"sjsage522/dealbridge/logger"
)

// DefaultRecheckDelay is how long Run waits after a failed search before creating a button
const DefaultRecheckDelay = 2000 * time.Millisecond

// DefaultTriggerSelectors identify an existing trigger, in priority order
var DefaultTriggerSelectors = []string{
	"[" + page.TriggerMarker + "]",
	`[data-test-id="cpq-tool-button"]`,
}

// DefaultContainerSelectors are where a fallback button may be placed, in priority order
var DefaultContainerSelectors = []string{
	".deal-actions",
	".deal-header",
	".deal-properties",
}

// DefaultButton is the fallback trigger's appearance
var DefaultButton = page.Button{
	Label: "🚀 Open CPQ Tool",
	Class: "btn btn-primary",
	Style: "background: #28a745; color: white; border: none; padding: 10px 20px; " +
		"border-radius: 6px; cursor: pointer; font-size: 14px; margin: 10px;",
}

// Config configures a Binder
type Config struct {
	TriggerSelectors   []string
	ContainerSelectors []string
	Button             page.Button
	RecheckDelay       time.Duration
}

// Binder makes sure a clickable trigger on the page runs OnClick
type Binder struct {
	page    page.Page
	onClick page.ClickFunc
	config  Config
	log     *logger.Logger

	// after is swapped in tests
	after func(d time.Duration) <-chan time.Time
}

// New creates a binder. Zero-valued config fields take their defaults.
func New(p page.Page, onClick page.ClickFunc, cfg Config) *Binder {
	if len(cfg.TriggerSelectors) == 0 {
		cfg.TriggerSelectors = DefaultTriggerSelectors
	}
	if len(cfg.ContainerSelectors) == 0 {
		cfg.ContainerSelectors = DefaultContainerSelectors
	}
	if cfg.Button.Label == "" {
		cfg.Button.Label = DefaultButton.Label
	}
	if cfg.Button.Class == "" {
		cfg.Button.Class = DefaultButton.Class
	}
	if cfg.Button.Style == "" {
		cfg.Button.Style = DefaultButton.Style
	}
	if cfg.RecheckDelay <= 0 {
		cfg.RecheckDelay = DefaultRecheckDelay
	}

	return &Binder{
		page:    p,
		onClick: onClick,
		config:  cfg,
		log:     logger.ForBinder(),
		after:   time.After,
	}
}

// UpdateButton searches for an existing trigger and rebinds the first one found
func (b *Binder) UpdateButton(ctx context.Context) (bool, error) {
	for _, selector := range b.config.TriggerSelectors {
		bound, err := b.page.BindTrigger(ctx, selector, b.onClick)
		if err != nil {
			return false, err
		}
		if bound {
			b.log.Info().Str("selector", selector).Msg("✅ CPQ tool button updated")
			return true, nil
		}
	}

	b.log.Info().Msg("⚠️ CPQ tool button not found")
	return false, nil
}

// CreateButton appends a fallback trigger to the first container found.
// Without a container nothing is created and no error is returned.
func (b *Binder) CreateButton(ctx context.Context) (bool, error) {
	for _, selector := range b.config.ContainerSelectors {
		created, err := b.page.AppendButton(ctx, selector, b.config.Button, b.onClick)
		if err != nil {
			return false, err
		}
		if created {
			b.log.Info().Str("container", selector).Msg("✅ Custom CPQ tool button created")
			return true, nil
		}
	}

	b.log.Debug().Msg("No container for a CPQ tool button")
	return false, nil
}

// Run waits for the document, tries to rebind an existing trigger and, if
// none was found, creates one after the recheck delay unless a trigger
// appeared meanwhile. Cancelling ctx abandons the pending recheck.
func (b *Binder) Run(ctx context.Context) error {
	if err := b.page.WaitReady(ctx); err != nil {
		return err
	}

	bound, err := b.UpdateButton(ctx)
	if err != nil {
		return err
	}
	if bound {
		return nil
	}

	select {
	case <-b.after(b.config.RecheckDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	present, err := b.triggerPresent(ctx)
	if err != nil {
		return err
	}
	if present {
		b.log.Debug().Msg("Trigger appeared before recheck, skipping creation")
		return nil
	}

	_, err = b.CreateButton(ctx)
	return err
}

func (b *Binder) triggerPresent(ctx context.Context) (bool, error) {
	for _, selector := range b.config.TriggerSelectors {
		found, err := b.page.Exists(ctx, selector)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}
