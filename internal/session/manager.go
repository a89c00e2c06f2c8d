// Package session owns the browser lifecycle: one long-lived browser process
// per configured browser id, and one isolated incognito session per slice
// attempt. Sessions apply the determinism bootstrap before the application
// loads, so captured artifacts are stable across runs.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/justinrayshort/os-sub001/internal/config"
)

// Manager launches and caches one browser process per browser id. Launching
// is lazy: a browser only starts when the first session for it is requested.
type Manager struct {
	cfg *config.RunConfig
	log *slog.Logger

	mu       sync.Mutex
	browsers map[string]*launched
	closed   bool
}

type launched struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
}

func NewManager(cfg *config.RunConfig, log *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		log:      log,
		browsers: make(map[string]*launched),
	}
}

// Browser returns the shared browser process for the given id, launching it
// on first use. "chromium" uses the managed download; "chrome" requires a
// locally installed Chrome and fails fast when none is found.
func (m *Manager) Browser(name string) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("session: manager is closed")
	}
	if l, ok := m.browsers[name]; ok {
		return l.browser, nil
	}

	l := launcher.New().Headless(m.cfg.Headless)
	if name == "chrome" {
		path, ok := launcher.LookPath()
		if !ok {
			return nil, fmt.Errorf("session: browser %q requested but no local installation found", name)
		}
		l = l.Bin(path)
	}

	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("session: launch %s: %w", name, err)
	}

	b := rod.New().ControlURL(wsURL)
	if m.cfg.SlowMo > 0 {
		b = b.SlowMotion(m.cfg.SlowMo)
	}
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("session: connect %s: %w", name, err)
	}

	m.log.Info("session: browser launched", "browser", name, "headless", m.cfg.Headless)
	m.browsers[name] = &launched{browser: b, lnch: l}
	return b, nil
}

// Close shuts down every launched browser. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	for name, l := range m.browsers {
		if err := l.browser.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("session: close %s: %w", name, err)
		}
		l.lnch.Cleanup()
	}
	m.browsers = nil
	return firstErr
}

// NewSession opens an isolated incognito session on the named browser.
// Every attempt gets a fresh session; nothing leaks between attempts.
func (m *Manager) NewSession(ctx context.Context, browserName string) (*Session, error) {
	b, err := m.Browser(browserName)
	if err != nil {
		return nil, err
	}
	return newSession(ctx, m.cfg, m.log, b, browserName)
}
