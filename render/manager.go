// CLAUDE:SUMMARY Chrome lifecycle for visibility queries: launch a local headless browser or connect to a remote one via Rod.
// Package render loads a page in a real browser so element visibility can be
// answered from computed layout rather than inline styles.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// ErrClosed is returned by a Manager after Close.
var ErrClosed = errors.New("render: manager is closed")

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local Chrome via launcher.
	RemoteURL string

	// Bin is the Chrome binary to launch. Empty lets launcher find or download one.
	Bin string

	// Headful disables headless mode.
	Headful bool

	// BlockResources lists DevTools resource types to fail while loading,
	// such as DefaultBlockResources. Documents, stylesheets and scripts
	// cannot be blocked.
	BlockResources []string

	// LoadTimeout bounds navigation and content loading. Default: 30s.
	LoadTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one browser connection.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome (or connects to RemoteURL). Calling Start on a
// running manager is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.browser != nil {
		return nil
	}
	b, err := m.launch(ctx)
	if err != nil {
		return err
	}
	m.browser = b
	return nil
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("render: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Context(ctx).Headless(!m.cfg.Headful)
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("render: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("render: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		m.cleanupLauncher()
		return nil, fmt.Errorf("render: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("render: ignore cert errors failed", "error", err)
	}
	return b, nil
}

// Browser returns the connected browser, or nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}

// Close shuts the browser down. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.cleanupLauncher()
	return err
}

func (m *Manager) cleanupLauncher() {
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}
