package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/halld-offline/conddb/internal/model"
	"github.com/halld-offline/conddb/internal/rcdb"
)

// supportedSchemaVersion is the run-conditions schema this package can read.
const supportedSchemaVersion = 2

// RCDBStore reads the run-conditions SQLite snapshot format and implements
// rcdb.Transport. Condition types are loaded once at open so that name and
// type resolution never touches the database on the query path.
type RCDBStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	types map[string]conditionType
}

type conditionType struct {
	id  int64
	typ model.ColumnType
}

// OpenRCDB opens a run-conditions snapshot read-only, verifies the schema
// version and loads the condition type index.
func OpenRCDB(path string, logger *slog.Logger) (*RCDBStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	s := &RCDBStore{db: db, path: path, logger: logger}
	if err := s.checkSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadTypes(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("storage: rcdb snapshot opened", "path", path, "conditions", len(s.types))
	return s, nil
}

// Close releases the underlying database handle.
func (s *RCDBStore) Close() error { return s.db.Close() }

func (s *RCDBStore) checkSchema(ctx context.Context) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schema_versions WHERE version = ?`,
		supportedSchemaVersion).Scan(&n)
	if err != nil {
		return fmt.Errorf("storage: rcdb schema version check: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage: rcdb snapshot %s does not carry schema version %d",
			s.path, supportedSchemaVersion)
	}
	return nil
}

func (s *RCDBStore) loadTypes(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, value_type FROM condition_types`)
	if err != nil {
		return fmt.Errorf("storage: rcdb load condition types: %w", err)
	}
	defer rows.Close()
	types := make(map[string]conditionType)
	for rows.Next() {
		var id int64
		var name, valueType string
		if err := rows.Scan(&id, &name, &valueType); err != nil {
			return fmt.Errorf("storage: rcdb scan condition type: %w", err)
		}
		typ, ok := model.ParseColumnType(valueType)
		if !ok {
			// Blob and json conditions exist in old snapshots but are
			// never selectable; skip them rather than failing the open.
			s.logger.Debug("storage: rcdb skipping condition type",
				"name", name, "value_type", valueType)
			continue
		}
		types[name] = conditionType{id: id, typ: typ}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("storage: rcdb load condition types: %w", err)
	}
	s.mu.Lock()
	s.types = types
	s.mu.Unlock()
	return nil
}

// Conditions lists every typed condition the snapshot declares, for
// registry seeding.
func (s *RCDBStore) Conditions() []rcdb.Condition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rcdb.Condition, 0, len(s.types))
	for name, ct := range s.types {
		out = append(out, rcdb.Condition{Name: name, Type: ct.typ})
	}
	return out
}

// ResolveRuns implements rcdb.Transport.
func (s *RCDBStore) ResolveRuns(ctx context.Context, min, max model.RunNumber) ([]model.RunNumber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number FROM runs WHERE number BETWEEN ? AND ? ORDER BY number`,
		int64(min), int64(max))
	if err != nil {
		return nil, fmt.Errorf("storage: rcdb resolve runs [%d, %d]: %w", min, max, err)
	}
	defer rows.Close()
	var out []model.RunNumber
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("storage: rcdb scan run number: %w", err)
		}
		out = append(out, model.RunNumber(n))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: rcdb resolve runs [%d, %d]: %w", min, max, err)
	}
	return out, nil
}

// FetchConditions implements rcdb.Transport. Values come back in one query
// per requested condition name; a run with no stored value for a name is
// simply absent from that run's map.
func (s *RCDBStore) FetchConditions(ctx context.Context, runs []model.RunNumber, names []string) (map[model.RunNumber]map[string]model.CellValue, error) {
	out := make(map[model.RunNumber]map[string]model.CellValue, len(runs))
	for _, run := range runs {
		out[run] = make(map[string]model.CellValue, len(names))
	}
	if len(runs) == 0 || len(names) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(runs)), ",")
	runArgs := make([]any, len(runs))
	for i, r := range runs {
		runArgs[i] = int64(r)
	}

	for _, name := range names {
		s.mu.RLock()
		ct, ok := s.types[name]
		s.mu.RUnlock()
		if !ok {
			return nil, &rcdb.UnknownConditionError{Name: name}
		}
		query := `SELECT run_number, int_value, float_value, text_value, bool_value, time_value
			FROM conditions
			WHERE condition_type_id = ? AND run_number IN (` + placeholders + `)`
		args := append([]any{ct.id}, runArgs...)
		if err := s.scanConditionRows(ctx, query, args, name, ct.typ, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *RCDBStore) scanConditionRows(ctx context.Context, query string, args []any, name string, typ model.ColumnType, out map[model.RunNumber]map[string]model.CellValue) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("storage: rcdb fetch condition %q: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var run int64
		var iv sql.NullInt64
		var fv sql.NullFloat64
		var tv sql.NullString
		var bv sql.NullInt64
		var timev sql.NullString
		if err := rows.Scan(&run, &iv, &fv, &tv, &bv, &timev); err != nil {
			return fmt.Errorf("storage: rcdb scan condition %q: %w", name, err)
		}
		val, ok, err := conditionValue(typ, iv, fv, tv, bv, timev)
		if err != nil {
			return fmt.Errorf("storage: rcdb condition %q run %d: %w", name, run, err)
		}
		if ok {
			out[model.RunNumber(run)][name] = val
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("storage: rcdb fetch condition %q: %w", name, err)
	}
	return nil
}

// conditionValue picks the value column matching the declared type. A NULL
// in that column means the run has no value for the condition.
func conditionValue(typ model.ColumnType, iv sql.NullInt64, fv sql.NullFloat64, tv sql.NullString, bv sql.NullInt64, timev sql.NullString) (model.CellValue, bool, error) {
	switch typ {
	case model.TypeInt:
		if !iv.Valid {
			return model.CellValue{}, false, nil
		}
		return model.Int(iv.Int64), true, nil
	case model.TypeUInt:
		if !iv.Valid {
			return model.CellValue{}, false, nil
		}
		if iv.Int64 < 0 {
			return model.CellValue{}, false, fmt.Errorf("negative value %d for unsigned condition", iv.Int64)
		}
		return model.UInt(uint64(iv.Int64)), true, nil
	case model.TypeFloat:
		if !fv.Valid {
			return model.CellValue{}, false, nil
		}
		return model.Float(fv.Float64), true, nil
	case model.TypeString:
		if !tv.Valid {
			return model.CellValue{}, false, nil
		}
		return model.Str(tv.String), true, nil
	case model.TypeBool:
		if !bv.Valid {
			return model.CellValue{}, false, nil
		}
		return model.Bool(bv.Int64 != 0), true, nil
	case model.TypeTime:
		if !timev.Valid {
			return model.CellValue{}, false, nil
		}
		t, err := parseConditionTime(timev.String)
		if err != nil {
			return model.CellValue{}, false, err
		}
		return model.Time(t), true, nil
	default:
		return model.CellValue{}, false, fmt.Errorf("unsupported condition type %s", typ)
	}
}

// parseConditionTime accepts the canonical store layout plus the fractional
// variant some writers produce.
func parseConditionTime(s string) (time.Time, error) {
	if t, err := model.ParseStoreTime(s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05.999999", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time value %q", s)
	}
	return t, nil
}
