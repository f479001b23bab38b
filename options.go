package conddb

import "log/slog"

// Option configures a Client.
type Option func(*resolvedOptions)

// resolvedOptions holds all overrides after applying defaults. Callers
// build it through the With* functions.
type resolvedOptions struct {
	ccdbPath  string
	rcdbPath  string
	mirrorURL string
	variation string
	logger    *slog.Logger
	version   string
}

// WithConstantsPath overrides the constants snapshot path from config
// (CONDDB_CCDB_SQLITE env var).
func WithConstantsPath(path string) Option {
	return func(o *resolvedOptions) { o.ccdbPath = path }
}

// WithConditionsPath overrides the run-conditions snapshot path from config
// (CONDDB_RCDB_SQLITE env var).
func WithConditionsPath(path string) Option {
	return func(o *resolvedOptions) { o.rcdbPath = path }
}

// WithMirrorURL overrides the Postgres mirror URL from config
// (CONDDB_RCDB_MIRROR_URL env var). When set, run-condition queries go to
// the mirror instead of the snapshot.
func WithMirrorURL(url string) Option {
	return func(o *resolvedOptions) { o.mirrorURL = url }
}

// WithVariation sets the variation used when a request names none
// (CONDDB_VARIATION env var, "default" otherwise).
func WithVariation(name string) Option {
	return func(o *resolvedOptions) { o.variation = name }
}

// WithLogger sets the structured logger for the Client.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}
