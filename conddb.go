// Package conddb is the public API for reading experiment condition stores.
//
// It covers two stores: the calibration constants store, queried by
// namespace path, run number, variation and as-of timestamp, and the
// run-conditions store, queried through a typed predicate algebra that
// selects runs out of a run period.
//
//	client, err := conddb.Open(ctx,
//	    conddb.WithConstantsPath("ccdb.sqlite"),
//	    conddb.WithConditionsPath("rcdb.sqlite"),
//	)
//	if err != nil { ... }
//	defer client.Close(ctx)
//
//	table, err := client.Fetch(ctx, "/CDC/dedx_gains:71350")
//
// The core types live in internal packages and are re-exported here as
// aliases, so this is the only import callers need.
package conddb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/halld-offline/conddb/internal/ccdb"
	"github.com/halld-offline/conddb/internal/config"
	"github.com/halld-offline/conddb/internal/model"
	"github.com/halld-offline/conddb/internal/rcdb"
	"github.com/halld-offline/conddb/internal/storage"
	"github.com/halld-offline/conddb/internal/telemetry"
)

// Re-exported core types. Aliases keep the internal packages as the single
// definition while giving callers one import.
type (
	// RunNumber identifies one data-taking run.
	RunNumber = model.RunNumber
	// CellValue is one dynamically typed store value.
	CellValue = model.CellValue
	// ColumnType enumerates the store's value types.
	ColumnType = model.ColumnType

	// Table is an immutable typed constants table.
	Table = ccdb.Table
	// Row is a view of one table row.
	Row = ccdb.Row
	// Col is a view of one table column.
	Col = ccdb.Col
	// Request is a parsed constants request string.
	Request = ccdb.Request

	// Registry holds condition definitions and predicate aliases.
	Registry = rcdb.Registry
	// Expr is a boolean predicate over run conditions.
	Expr = rcdb.Expr
	// Period is an inclusive run number range.
	Period = rcdb.Period
	// Selection is the outcome of evaluating a predicate over a period.
	Selection = rcdb.Selection
	// Diagnostic records a run excluded for a missing condition value.
	Diagnostic = rcdb.Diagnostic
)

// ErrConstantsNotConfigured is returned by constants operations when no
// constants snapshot path was configured.
var ErrConstantsNotConfigured = errors.New("conddb: constants store not configured")

// ErrConditionsNotConfigured is returned by run-condition operations when
// neither a conditions snapshot nor a mirror URL was configured.
var ErrConditionsNotConfigured = errors.New("conddb: run-conditions store not configured")

// runConditionSource is the slice of rcdb transport behaviour the client
// needs from either backing store.
type runConditionSource interface {
	rcdb.Transport
	Conditions() []rcdb.Condition
}

// Client is a handle on the configured condition stores. Construct with
// Open(), release with Close(). Safe for concurrent use.
type Client struct {
	cfg       config.Config
	logger    *slog.Logger
	variation string

	ccdbStore *storage.CCDBStore
	tables    *ccdb.TableCache

	rcdbStore *storage.RCDBStore
	mirror    *storage.RCDBMirror
	runSource runConditionSource
	registry  *rcdb.Registry
	selector  *rcdb.Selector

	otelShutdown telemetry.Shutdown
}

// Open loads configuration, connects the configured stores and returns a
// ready Client. A store whose path is not configured is simply absent;
// its operations fail with the matching sentinel error.
func Open(ctx context.Context, opts ...Option) (*Client, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.ccdbPath != "" {
		cfg.CCDBPath = o.ccdbPath
	}
	if o.rcdbPath != "" {
		cfg.RCDBPath = o.rcdbPath
	}
	if o.mirrorURL != "" {
		cfg.MirrorURL = o.mirrorURL
	}
	if o.variation != "" {
		cfg.Variation = o.variation
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	c := &Client{
		cfg:          cfg,
		logger:       logger,
		variation:    cfg.Variation,
		registry:     rcdb.NewRegistry(),
		otelShutdown: otelShutdown,
	}

	if cfg.CCDBPath != "" {
		store, err := storage.OpenCCDB(cfg.CCDBPath, logger)
		if err != nil {
			c.closeOnErr(ctx)
			return nil, fmt.Errorf("constants store: %w", err)
		}
		c.ccdbStore = store
		c.tables = ccdb.NewTableCache(store, logger)
	}

	switch {
	case cfg.MirrorURL != "":
		mirror, err := storage.OpenRCDBMirror(ctx, cfg.MirrorURL, logger)
		if err != nil {
			c.closeOnErr(ctx)
			return nil, fmt.Errorf("conditions mirror: %w", err)
		}
		c.mirror = mirror
		c.runSource = mirror
	case cfg.RCDBPath != "":
		store, err := storage.OpenRCDB(cfg.RCDBPath, logger)
		if err != nil {
			c.closeOnErr(ctx)
			return nil, fmt.Errorf("conditions store: %w", err)
		}
		c.rcdbStore = store
		c.runSource = store
	}

	if c.runSource != nil {
		for _, cond := range c.runSource.Conditions() {
			if err := c.registry.Register(cond.Name, cond.Type); err != nil {
				logger.Warn("condition registration skipped", "name", cond.Name, "error", err)
			}
		}
		if err := rcdb.RegisterDefaults(c.registry); err != nil {
			// The stock aliases need the standard condition set; a store
			// that declares different types for those names keeps working
			// without aliases.
			logger.Warn("stock aliases unavailable", "error", err)
		}
		c.selector = rcdb.NewSelector(c.runSource, logger)
	}

	logger.Info("conddb ready",
		"version", version,
		"constants", cfg.CCDBPath != "",
		"conditions", c.runSource != nil,
		"mirror", c.mirror != nil,
	)
	return c, nil
}

// closeOnErr tears down whatever Open managed to build before failing.
func (c *Client) closeOnErr(ctx context.Context) {
	if c.ccdbStore != nil {
		_ = c.ccdbStore.Close()
	}
	if c.rcdbStore != nil {
		_ = c.rcdbStore.Close()
	}
	if c.mirror != nil {
		c.mirror.Close()
	}
	_ = c.otelShutdown(ctx)
}

// Close releases store handles and flushes telemetry.
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if c.ccdbStore != nil {
		if err := c.ccdbStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.rcdbStore != nil {
		if err := c.rcdbStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.mirror != nil {
		c.mirror.Close()
	}
	if err := c.otelShutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ── Constants store ────────────────────────────────────────────────────────────

// Fetch resolves a one-line request string like
// "/CDC/dedx_gains:71350:mc:2024-05" against the constants store.
func (c *Client) Fetch(ctx context.Context, request string) (*Table, error) {
	req, err := ccdb.ParseRequest(request)
	if err != nil {
		return nil, err
	}
	if req.Variation == ccdb.DefaultVariation {
		req.Variation = c.variation
	}
	return c.ConstantsAt(ctx, req)
}

// Constants fetches the table at path for run, using the client's default
// variation and the latest assignment.
func (c *Client) Constants(ctx context.Context, path string, run RunNumber) (*Table, error) {
	p, err := ccdb.ParsePath(path)
	if err != nil {
		return nil, err
	}
	return c.ConstantsAt(ctx, Request{Path: p, Run: run, Variation: c.variation})
}

// ConstantsAt fetches the table selected by a fully specified request.
func (c *Client) ConstantsAt(ctx context.Context, req Request) (*Table, error) {
	if c.tables == nil {
		return nil, ErrConstantsNotConfigured
	}
	ctx, cancel := c.fetchContext(ctx)
	defer cancel()
	return c.tables.Get(ctx, req.Key())
}

// ── Run-conditions store ───────────────────────────────────────────────────────

// Registry returns the condition and alias registry. It is seeded from the
// conditions store's declared types plus the stock aliases; callers may
// register further conditions and aliases.
func (c *Client) Registry() *Registry { return c.registry }

// Conditions fetches the named condition values for one run. Names absent
// for the run are missing from the result map.
func (c *Client) Conditions(ctx context.Context, run RunNumber, names ...string) (map[string]CellValue, error) {
	if c.runSource == nil {
		return nil, ErrConditionsNotConfigured
	}
	ctx, cancel := c.fetchContext(ctx)
	defer cancel()
	byRun, err := c.runSource.FetchConditions(ctx, []RunNumber{run}, names)
	if err != nil {
		return nil, err
	}
	return byRun[run], nil
}

// Select evaluates pred over every run in period and returns the runs where
// it holds. Runs in skip are never considered; runs lacking a value for a
// referenced condition are excluded and reported in Selection.Diagnostics.
func (c *Client) Select(ctx context.Context, period Period, pred Expr, skip map[RunNumber]bool) (Selection, error) {
	if c.selector == nil {
		return Selection{}, ErrConditionsNotConfigured
	}
	ctx, cancel := c.fetchContext(ctx)
	defer cancel()
	return c.selector.Select(ctx, period, pred, skip)
}

// SelectAlias runs Select with a predicate previously registered under name.
func (c *Client) SelectAlias(ctx context.Context, name string, period Period, skip map[RunNumber]bool) (Selection, error) {
	expr, ok := c.registry.Alias(name)
	if !ok {
		return Selection{}, fmt.Errorf("conddb: unknown alias %q", name)
	}
	return c.Select(ctx, period, expr, skip)
}

// Period resolves a named run period ("2025-01" or its short label "S25").
func (c *Client) Period(name string) (Period, error) {
	return rcdb.PeriodByName(name)
}

// fetchContext applies the configured per-fetch deadline when the caller's
// context carries none.
func (c *Client) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.FetchTimeout)
}

// RunRange builds an ad-hoc period covering [min, max].
func RunRange(min, max RunNumber) Period { return rcdb.RunRange(min, max) }

// All is true when every child predicate is true. See rcdb.All.
func All(children ...Expr) Expr { return rcdb.All(children...) }

// Any is true when at least one child predicate is true. See rcdb.Any.
func Any(children ...Expr) Expr { return rcdb.Any(children...) }
