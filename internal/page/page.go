package page

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

const (
	// TriggerMarker is the attribute that identifies a bridge trigger element
	TriggerMarker = "data-dealbridge-trigger"
	// HandlerAttr records which registered click handler an element dispatches to
	HandlerAttr = "data-dealbridge-handler"
)

// ClickFunc runs when a bound trigger is clicked
type ClickFunc func(ctx context.Context)

// Button describes a fallback trigger button
type Button struct {
	Label string
	Class string
	Style string
}

// Page is the deal page the bridge reads from and wires a trigger into
type Page interface {
	// WaitReady returns once the document has finished loading its markup
	WaitReady(ctx context.Context) error

	// Document returns a snapshot of the current DOM
	Document(ctx context.Context) (*goquery.Document, error)

	// Location returns the page URL
	Location(ctx context.Context) (string, error)

	// HostObject returns the JSON of the host's global deal object, or nil when absent
	HostObject(ctx context.Context) ([]byte, error)

	// Exists reports whether any element matches selector
	Exists(ctx context.Context, selector string) (bool, error)

	// BindTrigger strips inline click behaviour from the first element matching
	// selector and attaches onClick. It reports false when nothing matched.
	BindTrigger(ctx context.Context, selector string, onClick ClickFunc) (bool, error)

	// AppendButton creates a trigger button inside the first element matching
	// containerSelector. It reports false when no container matched.
	AppendButton(ctx context.Context, containerSelector string, btn Button, onClick ClickFunc) (bool, error)

	// Alert shows a blocking notification to the user
	Alert(ctx context.Context, message string) error

	// Open opens url in a new tab, leaving the page itself untouched
	Open(ctx context.Context, url string) error
}
