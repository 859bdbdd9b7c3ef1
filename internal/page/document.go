package page

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"strings"
	"sync"

	"sjsage522/dealbridge/logger"
	"sjsage522/dealbridge/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// HostScriptSelector locates an embedded copy of the host object in a saved page
const HostScriptSelector = `script[type="application/json"][data-hubspot-deal]`

// DocumentPage is a Page over an in-memory goquery document.
// It records alerts and opened URLs instead of showing them.
type DocumentPage struct {
	mu       sync.Mutex
	doc      *goquery.Document
	location string
	host     []byte
	ready    chan struct{}
	handlers map[string]ClickFunc
	nextID   int
	alerts   []string
	opened   []string
	log      *logger.Logger
}

// Ensure DocumentPage implements Page
var _ Page = (*DocumentPage)(nil)

// NewDocumentPage parses markup from r. The reader must already be UTF-8.
func NewDocumentPage(r io.Reader, location string) (*DocumentPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.NewParsing("page", "failed to parse HTML", err)
	}

	ready := make(chan struct{})
	close(ready)

	return &DocumentPage{
		doc:      doc,
		location: location,
		ready:    ready,
		handlers: make(map[string]ClickFunc),
		log:      logger.ForPage("document"),
	}, nil
}

// LoadFile reads a saved deal page, converting it to UTF-8 when needed
func LoadFile(path, location string) (*DocumentPage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeConfiguration, "page", "failed to open "+path, err)
	}
	defer f.Close()

	utf8Reader, err := charset.NewReader(f, "text/html")
	if err != nil {
		return nil, errors.NewParsing("page", "failed to detect encoding", err)
	}
	if location == "" {
		location = "file://" + path
	}
	return NewDocumentPage(utf8Reader, location)
}

// SetHostObject overrides the host object JSON returned by HostObject
func (p *DocumentPage) SetHostObject(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.host = data
}

// MarkLoading makes WaitReady block until MarkReady is called
func (p *DocumentPage) MarkLoading() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = make(chan struct{})
}

// MarkReady releases callers waiting in WaitReady
func (p *DocumentPage) MarkReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.ready:
	default:
		close(p.ready)
	}
}

// WaitReady implements Page
func (p *DocumentPage) WaitReady(ctx context.Context) error {
	p.mu.Lock()
	ready := p.ready
	p.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Document implements Page. The returned document is an independent copy.
func (p *DocumentPage) Document(ctx context.Context) (*goquery.Document, error) {
	p.mu.Lock()
	markup, err := goquery.OuterHtml(p.doc.Selection)
	p.mu.Unlock()
	if err != nil {
		return nil, errors.NewParsing("page", "failed to render document", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, errors.NewParsing("page", "failed to snapshot document", err)
	}
	return doc, nil
}

// Location implements Page
func (p *DocumentPage) Location(ctx context.Context) (string, error) {
	return p.location, nil
}

// HostObject implements Page. Without an override it reads an embedded
// application/json script tagged data-hubspot-deal.
func (p *DocumentPage) HostObject(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.host != nil {
		return p.host, nil
	}
	script := p.doc.Find(HostScriptSelector).First()
	if script.Length() == 0 {
		return nil, nil
	}
	return bytes.TrimSpace([]byte(script.Text())), nil
}

// Exists implements Page
func (p *DocumentPage) Exists(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find(selector).Length() > 0, nil
}

// BindTrigger implements Page
func (p *DocumentPage) BindTrigger(ctx context.Context, selector string, onClick ClickFunc) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	el := p.doc.Find(selector).First()
	if el.Length() == 0 {
		return false, nil
	}

	if previous, ok := el.Attr(HandlerAttr); ok {
		delete(p.handlers, previous)
	}
	el.RemoveAttr("onclick")
	el.SetAttr(HandlerAttr, p.register(onClick))
	return true, nil
}

// AppendButton implements Page
func (p *DocumentPage) AppendButton(ctx context.Context, containerSelector string, btn Button, onClick ClickFunc) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	container := p.doc.Find(containerSelector).First()
	if container.Length() == 0 {
		return false, nil
	}

	id := p.register(onClick)
	container.AppendHtml(fmt.Sprintf(
		`<button type="button" class="%s" style="%s" %s="" %s="%s">%s</button>`,
		html.EscapeString(btn.Class),
		html.EscapeString(btn.Style),
		TriggerMarker,
		HandlerAttr, id,
		html.EscapeString(btn.Label),
	))
	return true, nil
}

// register stores onClick and returns its handler id; callers hold p.mu
func (p *DocumentPage) register(onClick ClickFunc) string {
	p.nextID++
	id := fmt.Sprintf("h%d", p.nextID)
	p.handlers[id] = onClick
	return id
}

// Click simulates a user click on the first element matching selector.
// It reports false when the element is missing or has no bound handler.
func (p *DocumentPage) Click(ctx context.Context, selector string) bool {
	p.mu.Lock()
	id := p.doc.Find(selector).First().AttrOr(HandlerAttr, "")
	handler := p.handlers[id]
	p.mu.Unlock()

	if handler == nil {
		return false
	}
	handler(ctx)
	return true
}

// Alert implements Page
func (p *DocumentPage) Alert(ctx context.Context, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, message)
	p.log.Warn().Str("alert", message).Msg("Alert shown")
	return nil
}

// Open implements Page
func (p *DocumentPage) Open(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, url)
	p.log.Info().Str("url", url).Msg("Opened in new tab")
	return nil
}

// Alerts returns the messages shown so far
func (p *DocumentPage) Alerts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.alerts...)
}

// Opened returns the URLs opened so far
func (p *DocumentPage) Opened() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.opened...)
}

// HTML renders the current document, including any appended buttons
func (p *DocumentPage) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return goquery.OuterHtml(p.doc.Selection)
}
