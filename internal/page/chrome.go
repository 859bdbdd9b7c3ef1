package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"sjsage522/dealbridge/logger"
	"sjsage522/dealbridge/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// BindingName is the page-global function clicks are reported through
const BindingName = "dealBridgeTrigger"

const readyJS = `new Promise(function (resolve) {
	if (document.readyState === 'loading') {
		document.addEventListener('DOMContentLoaded', function () { resolve(true); }, { once: true });
	} else {
		resolve(true);
	}
})`

const hostObjectJS = `(function () {
	try {
		return JSON.stringify(window.hubspot === undefined ? null : window.hubspot);
	} catch (e) {
		return 'null';
	}
})()`

// listenJS installs at most one click listener per element. The handler id
// is read from the element at click time, so rebinding only swaps the attribute.
const listenJS = `function listen(el, binding) {
		if (el.__dealBridgeListening) { return; }
		el.__dealBridgeListening = true;
		el.addEventListener('click', function (e) {
			e.preventDefault();
			var id = el.getAttribute('` + HandlerAttr + `');
			if (id) { window[binding](id); }
		});
	}`

const bindJS = `(function (sel, id, binding) {
	` + listenJS + `
	var el = document.querySelector(sel);
	if (!el) { return {bound: false, previous: ''}; }
	var previous = el.getAttribute('` + HandlerAttr + `') || '';
	el.removeAttribute('onclick');
	el.onclick = null;
	el.setAttribute('` + HandlerAttr + `', id);
	listen(el, binding);
	return {bound: true, previous: previous};
})(%s, %s, %s)`

const appendJS = `(function (sel, id, binding, label, cls, style) {
	` + listenJS + `
	var container = document.querySelector(sel);
	if (!container) { return false; }
	var b = document.createElement('button');
	b.type = 'button';
	b.textContent = label;
	b.className = cls;
	b.style.cssText = style;
	b.setAttribute('` + TriggerMarker + `', '');
	b.setAttribute('` + HandlerAttr + `', id);
	listen(b, binding);
	container.appendChild(b);
	return true;
})(%s, %s, %s, %s, %s, %s)`

// bindResult is what bindJS reports back
type bindResult struct {
	Bound    bool   `json:"bound"`
	Previous string `json:"previous"`
}

// ChromeOptions configures how a browser is obtained
type ChromeOptions struct {
	// RemoteAddr is a DevTools websocket URL; empty launches a local browser
	RemoteAddr string
	Headless   bool
}

// LaunchChrome returns a tab context on a local or remote browser.
// Cancelling the returned function closes the tab and the allocator.
func LaunchChrome(ctx context.Context, opts ChromeOptions) (context.Context, context.CancelFunc) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if opts.RemoteAddr != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteAddr)
	} else {
		execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1440, 900),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, execOpts...)
	}

	log := logger.ForPage("chrome")
	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug().Msgf(format, args...)
		}),
	}
	if logger.IsDebugEnabled() {
		// raw CDP traffic
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(func(format string, args ...interface{}) {
			log.Debug().Str("cdp", "protocol").Msgf(format, args...)
		}))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	return tabCtx, func() {
		tabCancel()
		allocCancel()
	}
}

// ChromePage is a Page backed by a live browser tab
type ChromePage struct {
	tab context.Context
	log *logger.Logger

	mu       sync.Mutex
	handlers map[string]ClickFunc
	nextID   int

	listenOnce sync.Once
	bindMu     sync.Mutex
	bound      bool
	addBinding func(ctx context.Context) error
}

// Ensure ChromePage implements Page
var _ Page = (*ChromePage)(nil)

// NewChromePage wraps a chromedp tab context
func NewChromePage(tab context.Context) *ChromePage {
	p := &ChromePage{
		tab:      tab,
		log:      logger.ForPage("chrome"),
		handlers: make(map[string]ClickFunc),
	}
	p.addBinding = func(ctx context.Context) error {
		return p.run(ctx, runtime.AddBinding(BindingName))
	}
	return p
}

// run executes actions on the tab, aborting when ctx is done
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url in the tab
func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return errors.NewBrowser("page", "failed to navigate to "+url, err)
	}
	return nil
}

// WaitReady implements Page
func (p *ChromePage) WaitReady(ctx context.Context) error {
	var ok bool
	err := p.run(ctx, chromedp.Evaluate(readyJS, &ok, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
	if err != nil {
		return errors.NewBrowser("page", "failed waiting for DOMContentLoaded", err)
	}
	return nil
}

// Document implements Page
func (p *ChromePage) Document(ctx context.Context) (*goquery.Document, error) {
	var markup string
	if err := p.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return nil, errors.NewBrowser("page", "failed to read document", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, errors.NewParsing("page", "failed to parse document", err)
	}
	return doc, nil
}

// Location implements Page
func (p *ChromePage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", errors.NewBrowser("page", "failed to read location", err)
	}
	return loc, nil
}

// HostObject implements Page
func (p *ChromePage) HostObject(ctx context.Context) ([]byte, error) {
	var raw string
	if err := p.run(ctx, chromedp.Evaluate(hostObjectJS, &raw)); err != nil {
		return nil, errors.NewBrowser("page", "failed to read host object", err)
	}
	if raw == "null" {
		return nil, nil
	}
	return []byte(raw), nil
}

// Exists implements Page
func (p *ChromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	js := fmt.Sprintf("document.querySelector(%s) !== null", jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(js, &found)); err != nil {
		return false, errors.NewBrowser("page", "failed to query "+selector, err)
	}
	return found, nil
}

// BindTrigger implements Page
func (p *ChromePage) BindTrigger(ctx context.Context, selector string, onClick ClickFunc) (bool, error) {
	if err := p.ensureBinding(ctx); err != nil {
		return false, err
	}

	id := p.register(onClick)
	var res bindResult
	js := fmt.Sprintf(bindJS, jsString(selector), jsString(id), jsString(BindingName))
	if err := p.run(ctx, chromedp.Evaluate(js, &res)); err != nil {
		p.unregister(id)
		return false, errors.NewBrowser("page", "failed to bind "+selector, err)
	}
	p.settle(id, res)
	return res.Bound, nil
}

// settle drops the handlers a bind attempt made unreachable
func (p *ChromePage) settle(id string, res bindResult) {
	if !res.Bound {
		p.unregister(id)
		return
	}
	if res.Previous != "" && res.Previous != id {
		p.unregister(res.Previous)
	}
}

// AppendButton implements Page
func (p *ChromePage) AppendButton(ctx context.Context, containerSelector string, btn Button, onClick ClickFunc) (bool, error) {
	if err := p.ensureBinding(ctx); err != nil {
		return false, err
	}

	id := p.register(onClick)
	var appended bool
	js := fmt.Sprintf(appendJS,
		jsString(containerSelector), jsString(id), jsString(BindingName),
		jsString(btn.Label), jsString(btn.Class), jsString(btn.Style),
	)
	if err := p.run(ctx, chromedp.Evaluate(js, &appended)); err != nil {
		p.unregister(id)
		return false, errors.NewBrowser("page", "failed to append button to "+containerSelector, err)
	}
	if !appended {
		p.unregister(id)
	}
	return appended, nil
}

// Alert implements Page. The dialog is raised from a timer so the
// DevTools call returns without waiting for the user to dismiss it.
func (p *ChromePage) Alert(ctx context.Context, message string) error {
	var timer float64
	js := fmt.Sprintf("setTimeout(function () { alert(%s); }, 0)", jsString(message))
	if err := p.run(ctx, chromedp.Evaluate(js, &timer)); err != nil {
		return errors.NewBrowser("page", "failed to show alert", err)
	}
	return nil
}

// Open implements Page
func (p *ChromePage) Open(ctx context.Context, url string) error {
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		if c == nil || c.Browser == nil {
			return fmt.Errorf("no browser attached to context")
		}
		id, err := target.CreateTarget(url).Do(cdp.WithExecutor(ctx, c.Browser))
		if err != nil {
			return err
		}
		p.log.Info().Str("url", url).Str("target", string(id)).Msg("Opened in new tab")
		return nil
	}))
	if err != nil {
		return errors.NewBrowser("page", "failed to open "+url, err)
	}
	return nil
}

// Navigations reports the URL of every main-frame navigation, including
// history-API route changes, from now on.
// Events arriving while the previous one is unread replace it.
func (p *ChromePage) Navigations() <-chan string {
	ch := make(chan string, 1)
	chromedp.ListenTarget(p.tab, func(ev interface{}) {
		var url string
		switch e := ev.(type) {
		case *cdppage.EventFrameNavigated:
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			url = e.Frame.URL
		case *cdppage.EventNavigatedWithinDocument:
			// CRM single-page routing swaps the deal view without a full load
			url = e.URL
		default:
			return
		}
		for {
			select {
			case ch <- url:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	})
	return ch
}

// ensureBinding installs the click listener once per tab and the binding
// until it succeeds. A failed attempt, such as one cancelled by a page
// change, is retried on the next call.
func (p *ChromePage) ensureBinding(ctx context.Context) error {
	p.listenOnce.Do(func() {
		chromedp.ListenTarget(p.tab, func(ev interface{}) {
			called, ok := ev.(*runtime.EventBindingCalled)
			if !ok || called.Name != BindingName {
				return
			}
			// listeners must not block the event loop
			go p.dispatch(called.Payload)
		})
	})

	p.bindMu.Lock()
	defer p.bindMu.Unlock()
	if p.bound {
		return nil
	}
	if err := p.addBinding(ctx); err != nil {
		return errors.NewBrowser("page", "failed to add binding", err)
	}
	p.bound = true
	return nil
}

func (p *ChromePage) dispatch(id string) {
	p.mu.Lock()
	handler := p.handlers[id]
	p.mu.Unlock()

	if handler == nil {
		p.log.Warn().Str("handler", id).Msg("Click for unknown handler")
		return
	}
	p.log.Debug().Str("handler", id).Msg("Trigger clicked")
	handler(p.tab)
}

func (p *ChromePage) register(onClick ClickFunc) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := fmt.Sprintf("h%d", p.nextID)
	p.handlers[id] = onClick
	return id
}

func (p *ChromePage) unregister(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.handlers, id)
}

// jsString quotes s as a JavaScript string literal
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
