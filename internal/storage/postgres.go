package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halld-offline/conddb/internal/model"
	"github.com/halld-offline/conddb/internal/rcdb"
)

// RCDBMirror reads a live Postgres mirror of the run-conditions store. The
// mirror carries the same schema as the SQLite snapshots, so it implements
// the same rcdb.Transport and is a drop-in replacement when the DSN is
// configured.
type RCDBMirror struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu    sync.RWMutex
	types map[string]conditionType
}

// OpenRCDBMirror connects to the mirror, verifies the schema version and
// loads the condition type index.
func OpenRCDBMirror(ctx context.Context, dsn string, logger *slog.Logger) (*RCDBMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse mirror DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create mirror pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping mirror: %w", err)
	}

	m := &RCDBMirror{pool: pool, logger: logger}
	if err := m.checkSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := m.loadTypes(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Debug("storage: rcdb mirror connected", "conditions", len(m.types))
	return m, nil
}

// Close shuts down the connection pool.
func (m *RCDBMirror) Close() { m.pool.Close() }

// Ping checks connectivity to the mirror.
func (m *RCDBMirror) Ping(ctx context.Context) error { return m.pool.Ping(ctx) }

func (m *RCDBMirror) checkSchema(ctx context.Context) error {
	var n int
	err := m.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM schema_versions WHERE version = $1`,
		supportedSchemaVersion).Scan(&n)
	if err != nil {
		return fmt.Errorf("storage: mirror schema version check: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage: mirror does not carry schema version %d", supportedSchemaVersion)
	}
	return nil
}

func (m *RCDBMirror) loadTypes(ctx context.Context) error {
	rows, err := m.pool.Query(ctx, `SELECT id, name, value_type FROM condition_types`)
	if err != nil {
		return fmt.Errorf("storage: mirror load condition types: %w", err)
	}
	defer rows.Close()
	types := make(map[string]conditionType)
	for rows.Next() {
		var id int64
		var name, valueType string
		if err := rows.Scan(&id, &name, &valueType); err != nil {
			return fmt.Errorf("storage: mirror scan condition type: %w", err)
		}
		typ, ok := model.ParseColumnType(valueType)
		if !ok {
			m.logger.Debug("storage: mirror skipping condition type",
				"name", name, "value_type", valueType)
			continue
		}
		types[name] = conditionType{id: id, typ: typ}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("storage: mirror load condition types: %w", err)
	}
	m.mu.Lock()
	m.types = types
	m.mu.Unlock()
	return nil
}

// Conditions lists every typed condition the mirror declares, for registry
// seeding.
func (m *RCDBMirror) Conditions() []rcdb.Condition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rcdb.Condition, 0, len(m.types))
	for name, ct := range m.types {
		out = append(out, rcdb.Condition{Name: name, Type: ct.typ})
	}
	return out
}

// ResolveRuns implements rcdb.Transport. Transient mirror errors retry
// with backoff before surfacing.
func (m *RCDBMirror) ResolveRuns(ctx context.Context, min, max model.RunNumber) ([]model.RunNumber, error) {
	var out []model.RunNumber
	err := withRetry(ctx, mirrorMaxRetries, mirrorRetryDelay, func() error {
		rows, err := m.pool.Query(ctx,
			`SELECT number FROM runs WHERE number BETWEEN $1 AND $2 ORDER BY number`,
			int64(min), int64(max))
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var n int64
			if err := rows.Scan(&n); err != nil {
				return err
			}
			out = append(out, model.RunNumber(n))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("storage: mirror resolve runs [%d, %d]: %w", min, max, err)
	}
	return out, nil
}

// FetchConditions implements rcdb.Transport.
func (m *RCDBMirror) FetchConditions(ctx context.Context, runs []model.RunNumber, names []string) (map[model.RunNumber]map[string]model.CellValue, error) {
	out := make(map[model.RunNumber]map[string]model.CellValue, len(runs))
	for _, run := range runs {
		out[run] = make(map[string]model.CellValue, len(names))
	}
	if len(runs) == 0 || len(names) == 0 {
		return out, nil
	}

	runNums := make([]int64, len(runs))
	for i, r := range runs {
		runNums[i] = int64(r)
	}

	for _, name := range names {
		m.mu.RLock()
		ct, ok := m.types[name]
		m.mu.RUnlock()
		if !ok {
			return nil, &rcdb.UnknownConditionError{Name: name}
		}
		err := withRetry(ctx, mirrorMaxRetries, mirrorRetryDelay, func() error {
			rows, err := m.pool.Query(ctx,
				`SELECT run_number, int_value, float_value, text_value, bool_value, time_value
				 FROM conditions
				 WHERE condition_type_id = $1 AND run_number = ANY($2)`,
				ct.id, runNums)
			if err != nil {
				return err
			}
			clearRuns(out, runs, name)
			return scanMirrorRows(rows, name, ct.typ, out)
		})
		if err != nil {
			return nil, fmt.Errorf("storage: mirror fetch condition %q: %w", name, err)
		}
	}
	return out, nil
}

// clearRuns drops any values already recorded for name so a retried query
// starts from a clean slate.
func clearRuns(out map[model.RunNumber]map[string]model.CellValue, runs []model.RunNumber, name string) {
	for _, run := range runs {
		delete(out[run], name)
	}
}

func scanMirrorRows(rows pgx.Rows, name string, typ model.ColumnType, out map[model.RunNumber]map[string]model.CellValue) error {
	defer rows.Close()
	for rows.Next() {
		var run int64
		var iv *int64
		var fv *float64
		var tv *string
		var bv *bool
		var timev *time.Time
		if err := rows.Scan(&run, &iv, &fv, &tv, &bv, &timev); err != nil {
			return err
		}
		val, ok, err := mirrorValue(typ, iv, fv, tv, bv, timev)
		if err != nil {
			return fmt.Errorf("run %d: %w", run, err)
		}
		if ok {
			out[model.RunNumber(run)][name] = val
		}
	}
	return rows.Err()
}

func mirrorValue(typ model.ColumnType, iv *int64, fv *float64, tv *string, bv *bool, timev *time.Time) (model.CellValue, bool, error) {
	switch typ {
	case model.TypeInt:
		if iv == nil {
			return model.CellValue{}, false, nil
		}
		return model.Int(*iv), true, nil
	case model.TypeUInt:
		if iv == nil {
			return model.CellValue{}, false, nil
		}
		if *iv < 0 {
			return model.CellValue{}, false, fmt.Errorf("negative value %d for unsigned condition", *iv)
		}
		return model.UInt(uint64(*iv)), true, nil
	case model.TypeFloat:
		if fv == nil {
			return model.CellValue{}, false, nil
		}
		return model.Float(*fv), true, nil
	case model.TypeString:
		if tv == nil {
			return model.CellValue{}, false, nil
		}
		return model.Str(*tv), true, nil
	case model.TypeBool:
		if bv == nil {
			return model.CellValue{}, false, nil
		}
		return model.Bool(*bv), true, nil
	case model.TypeTime:
		if timev == nil {
			return model.CellValue{}, false, nil
		}
		return model.Time(timev.UTC()), true, nil
	default:
		return model.CellValue{}, false, fmt.Errorf("unsupported condition type %s", typ)
	}
}
