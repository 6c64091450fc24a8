package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/a11yfix/audit"
	"github.com/hazyhaar/a11yfix/dbopen"
	"github.com/hazyhaar/a11yfix/describe"
	"github.com/hazyhaar/a11yfix/provider"
	"github.com/hazyhaar/a11yfix/remedy"
	"github.com/hazyhaar/a11yfix/render"
)

// runtime holds everything a command opened, so it can be released at once.
type runtime struct {
	cfg     *remedy.Config
	logger  *slog.Logger
	cache   describe.Cache
	llm     *provider.LLM
	store   *audit.Store
	browser *render.Manager

	closers []func() error
}

func loadConfig(cmd *cobra.Command) (*remedy.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := remedy.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// openCache opens the description cache named by path: a .json file in the
// legacy format, any other path an SQLite database, nothing an in-memory map.
func openCache(path string, opts ...dbopen.Option) (describe.Cache, func() error, error) {
	switch {
	case path == "":
		return describe.NewMap(nil), func() error { return nil }, nil
	case strings.EqualFold(filepath.Ext(path), ".json"):
		f, err := describe.OpenJSONFile(path)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Flush, nil
	default:
		s, err := describe.OpenSQLite(path, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

func openRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}

	sync := dbopen.WithSynchronous(cfg.SQLiteSynchronous)
	cache, closeCache, err := openCache(cfg.CachePath, sync)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	rt.cache = cache
	rt.closers = append(rt.closers, closeCache)

	if cfg.AuditDB != "" {
		st, err := audit.Open(cfg.AuditDB, sync)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		rt.store = st
		rt.closers = append(rt.closers, st.Close)
	}

	if cfg.LLM.APIKey != "" || cfg.LLM.BaseURL != "" {
		llm, err := provider.NewOpenAI(cfg.LLM)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.llm = llm
	} else {
		logger.Warn("no llm configured: only removals and heuristics will apply")
	}

	if cfg.Browser.Enabled {
		rt.browser = render.NewManager(render.Config{
			RemoteURL:      cfg.Browser.RemoteURL,
			Bin:            cfg.Browser.Bin,
			Headful:        cfg.Browser.Headful,
			BlockResources: cfg.Browser.BlockResources,
			LoadTimeout:    cfg.Browser.LoadTimeout,
			Logger:         logger,
		})
		rt.closers = append(rt.closers, rt.browser.Close)
	}
	return rt, nil
}

func (rt *runtime) engine(metrics *remedy.Metrics) (*remedy.Engine, error) {
	opts := remedy.Options{
		Cache:   rt.cache,
		Browser: rt.browser,
		Store:   rt.store,
		Metrics: metrics,
		Logger:  rt.logger,
	}
	if rt.llm != nil {
		opts.Provider = rt.llm
		opts.Generator = rt.llm
	}
	return remedy.New(*rt.cfg, opts)
}

// Close releases resources in reverse order of opening.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && !errors.Is(err, render.ErrClosed) {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
