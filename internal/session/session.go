package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/justinrayshort/os-sub001/internal/config"
	"github.com/justinrayshort/os-sub001/internal/registry"
)

// defaultWaitTimeout bounds every selector wait and assertion probe.
// Deterministic scenes settle fast; anything slower is a real failure.
const defaultWaitTimeout = 10 * time.Second

// Session is one isolated browser context plus its single page. A session
// lives for exactly one slice attempt: the runner creates it, drives the
// slice's setup and capture through it, and closes it.
type Session struct {
	cfg     *config.RunConfig
	log     *slog.Logger
	browser string

	incog *rod.Browser
	page  *rod.Page

	events     *EventLog
	trace      *Trace
	stopEvents context.CancelFunc
}

func newSession(ctx context.Context, cfg *config.RunConfig, log *slog.Logger, b *rod.Browser, browserName string) (*Session, error) {
	incog, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("session: incognito context: %w", err)
	}

	page, err := incog.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("session: open page: %w", err)
	}
	page = page.Context(ctx)

	s := &Session{
		cfg:     cfg,
		log:     log,
		browser: browserName,
		incog:   incog,
		page:    page,
		events:  NewEventLog(defaultEventLimit),
		trace:   NewTrace(),
	}

	if err := s.bootstrap(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// bootstrap applies the determinism controls that must precede the first
// navigation: the clock/random pin, reduced-motion emulation, and the CDP
// domains the event log listens on.
func (s *Session) bootstrap(ctx context.Context) error {
	_, err := proto.PageAddScriptToEvaluateOnNewDocument{Source: determinismScript}.Call(s.page)
	if err != nil {
		return fmt.Errorf("session: install determinism script: %w", err)
	}

	err = proto.EmulationSetEmulatedMedia{
		Features: []*proto.EmulationMediaFeature{
			{Name: "prefers-reduced-motion", Value: "reduce"},
		},
	}.Call(s.page)
	if err != nil {
		return fmt.Errorf("session: emulate reduced motion: %w", err)
	}

	if err := (proto.RuntimeEnable{}).Call(s.page); err != nil {
		return fmt.Errorf("session: enable runtime domain: %w", err)
	}
	if s.cfg.CaptureNetwork {
		if err := (proto.NetworkEnable{}).Call(s.page); err != nil {
			return fmt.Errorf("session: enable network domain: %w", err)
		}
	}

	evCtx, cancel := context.WithCancel(ctx)
	s.stopEvents = cancel
	go s.listen(evCtx)

	s.trace.Record("session-start", map[string]any{"browser": s.browser})
	return nil
}

// listen subscribes to console, exception, and network events in a single
// goroutine. It returns when the session context is cancelled.
func (s *Session) listen(ctx context.Context) {
	p := s.page.Context(ctx)
	wait := p.EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			s.events.AddConsole(ConsoleEntry{
				Level: string(e.Type),
				Text:  renderConsoleArgs(e.Args),
			})
		},
		func(e *proto.RuntimeExceptionThrown) {
			s.events.AddPageError(PageError{Text: exceptionText(e)})
		},
		func(e *proto.NetworkRequestWillBeSent) {
			s.events.AddNetwork(NetworkEntry{
				Phase:  "request",
				Method: e.Request.Method,
				URL:    e.Request.URL,
			})
		},
		func(e *proto.NetworkResponseReceived) {
			s.events.AddNetwork(NetworkEntry{
				Phase:  "response",
				URL:    e.Response.URL,
				Status: e.Response.Status,
			})
		},
	)
	wait()
}

// SetViewport applies the slice viewport before navigation.
func (s *Session) SetViewport(vp registry.Viewport) error {
	err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
		Mobile:            false,
	})
	if err != nil {
		return fmt.Errorf("session: set viewport %s: %w", vp.ID, err)
	}
	s.trace.Record("set-viewport", map[string]any{"viewport": vp.ID, "width": vp.Width, "height": vp.Height})
	return nil
}

// Navigate resolves path against the configured base URL, loads it, waits
// for the load event, and freezes animations for the new document.
func (s *Session) Navigate(path string) error {
	target, err := resolveURL(s.cfg.BaseURL, path)
	if err != nil {
		return err
	}
	if err := s.page.Navigate(target); err != nil {
		return fmt.Errorf("session: navigate %s: %w", target, err)
	}
	if err := s.page.WaitLoad(); err != nil {
		return fmt.Errorf("session: wait for load of %s: %w", target, err)
	}
	if _, err := s.page.Eval(injectStyleScript, freezeAnimationsCSS); err != nil {
		return fmt.Errorf("session: freeze animations: %w", err)
	}
	s.trace.Record("navigate", map[string]any{"url": target})
	return nil
}

// WaitForSelector blocks until the selector appears or the wait budget runs
// out.
func (s *Session) WaitForSelector(selector string) error {
	_, err := s.page.Timeout(defaultWaitTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("session: selector %q did not appear: %w", selector, err)
	}
	s.trace.Record("wait-for-selector", map[string]any{"selector": selector})
	return nil
}

// Click clicks the first element matching the selector.
func (s *Session) Click(selector string) error {
	el, err := s.page.Timeout(defaultWaitTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("session: click target %q not found: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("session: click %q: %w", selector, err)
	}
	s.trace.Record("click", map[string]any{"selector": selector})
	return nil
}

// Keypress dispatches a named key to the page.
func (s *Session) Keypress(name string) error {
	key, err := keyFor(name)
	if err != nil {
		return err
	}
	if err := s.page.Keyboard.Press(key); err != nil {
		return fmt.Errorf("session: press %q: %w", name, err)
	}
	s.trace.Record("keypress", map[string]any{"key": name})
	return nil
}

// SetStorageKey plants a localStorage key via an init script, so the value
// is visible to the application from its very first load. Must run before
// Navigate to take effect for that navigation.
func (s *Session) SetStorageKey(key, value string) error {
	_, err := proto.PageAddScriptToEvaluateOnNewDocument{
		Source: storageSeedScript(key, value),
	}.Call(s.page)
	if err != nil {
		return fmt.Errorf("session: seed storage key %q: %w", key, err)
	}
	s.trace.Record("set-storage-key", map[string]any{"key": key})
	return nil
}

// HasSelector reports whether the selector is currently present, without
// waiting. Used by assertions after setup has settled.
func (s *Session) HasSelector(selector string) (bool, error) {
	has, _, err := s.page.Has(selector)
	if err != nil {
		return false, fmt.Errorf("session: probe selector %q: %w", selector, err)
	}
	return has, nil
}

// HasText reports whether the page body currently renders the given text.
func (s *Session) HasText(text string) (bool, error) {
	res, err := s.page.Eval(`(needle) => document.body.innerText.includes(needle)`, text)
	if err != nil {
		return false, fmt.Errorf("session: probe text %q: %w", text, err)
	}
	return res.Value.Bool(), nil
}

// Screenshot captures the whole document as PNG bytes, not just the
// viewport, so overflow below the fold is part of the comparison surface.
func (s *Session) Screenshot() ([]byte, error) {
	data, err := s.page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("session: screenshot: %w", err)
	}
	s.trace.Record("screenshot", map[string]any{"bytes": len(data)})
	return data, nil
}

// HTML returns the current outer HTML of the document.
func (s *Session) HTML() (string, error) {
	html, err := s.page.HTML()
	if err != nil {
		return "", fmt.Errorf("session: read html: %w", err)
	}
	return html, nil
}

// AXTree fetches the accessibility tree restricted to the subtree rooted at
// the element matching the selector. Chrome outside the tracked root stays
// out of the snapshot.
func (s *Session) AXTree(selector string) ([]*proto.AccessibilityAXNode, error) {
	if err := (proto.AccessibilityEnable{}).Call(s.page); err != nil {
		return nil, fmt.Errorf("session: enable accessibility domain: %w", err)
	}
	res, err := proto.AccessibilityGetFullAXTree{}.Call(s.page)
	if err != nil {
		return nil, fmt.Errorf("session: accessibility tree: %w", err)
	}

	el, err := s.page.Timeout(defaultWaitTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("session: a11y root %q not found: %w", selector, err)
	}
	desc, err := proto.DOMDescribeNode{ObjectID: el.Object.ObjectID}.Call(s.page)
	if err != nil {
		return nil, fmt.Errorf("session: describe a11y root %q: %w", selector, err)
	}
	return axSubtree(res.Nodes, desc.Node.BackendNodeID), nil
}

// axSubtree restricts the flat node list to the subtree whose AX node is
// backed by the given DOM node. When no AX node is backed by it (the element
// itself contributes nothing to the tree), the full list is returned so the
// capture degrades to document scope rather than an empty snapshot.
func axSubtree(nodes []*proto.AccessibilityAXNode, rootDOMNode proto.DOMBackendNodeID) []*proto.AccessibilityAXNode {
	byID := make(map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode, len(nodes))
	var root *proto.AccessibilityAXNode
	for _, n := range nodes {
		byID[n.NodeID] = n
		if root == nil && n.BackendDOMNodeID == rootDOMNode {
			root = n
		}
	}
	if root == nil {
		return nodes
	}

	var subtree []*proto.AccessibilityAXNode
	queue := []*proto.AccessibilityAXNode{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		subtree = append(subtree, n)
		for _, id := range n.ChildIDs {
			if child, ok := byID[id]; ok {
				queue = append(queue, child)
			}
		}
	}
	return subtree
}

// Eval runs a JS function in the page and returns its JSON-decoded result.
func (s *Session) Eval(js string, args ...any) (any, error) {
	res, err := s.page.Eval(js, args...)
	if err != nil {
		return nil, fmt.Errorf("session: eval: %w", err)
	}
	return res.Value.Val(), nil
}

// Events exposes the bounded event log collected so far.
func (s *Session) Events() *EventLog { return s.events }

// Trace exposes the action trace recorded so far.
func (s *Session) Trace() *Trace { return s.trace }

// Close tears the session down: event listeners first, then the page, then
// the incognito context. Errors here are logged, not returned; the attempt's
// verdict is already decided by the time teardown runs.
func (s *Session) Close() {
	if s.stopEvents != nil {
		s.stopEvents()
	}
	if err := s.page.Close(); err != nil {
		s.log.Warn("session: close page", "error", err)
	}
	err := proto.TargetDisposeBrowserContext{
		BrowserContextID: s.incog.BrowserContextID,
	}.Call(s.incog)
	if err != nil {
		s.log.Warn("session: dispose browser context", "error", err)
	}
}

// injectStyleScript appends a style element carrying the given CSS.
const injectStyleScript = `(css) => {
	const style = document.createElement('style');
	style.textContent = css;
	document.head.appendChild(style);
}`

func resolveURL(base, path string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("session: base URL is not configured")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("session: base URL %q: %w", base, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("session: path %q: %w", path, err)
	}
	return u.ResolveReference(ref).String(), nil
}

var namedKeys = map[string]input.Key{
	"Tab":        input.Tab,
	"Enter":      input.Enter,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Home":       input.Home,
	"End":        input.End,
	"Space":      input.Space,
}

func keyFor(name string) (input.Key, error) {
	if k, ok := namedKeys[name]; ok {
		return k, nil
	}
	if r := []rune(name); len(r) == 1 {
		return input.Key(r[0]), nil
	}
	return 0, fmt.Errorf("session: unknown key %q", name)
}

func renderConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a.Value.Nil() {
			parts = append(parts, a.Description)
			continue
		}
		parts = append(parts, a.Value.String())
	}
	return strings.Join(parts, " ")
}

func exceptionText(e *proto.RuntimeExceptionThrown) string {
	d := e.ExceptionDetails
	if d == nil {
		return "unknown page error"
	}
	if d.Exception != nil && d.Exception.Description != "" {
		return d.Exception.Description
	}
	return d.Text
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
