package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/halld-offline/conddb/internal/ccdb"
	"github.com/halld-offline/conddb/internal/model"
)

// tableMeta is the in-memory index entry for one constants table.
type tableMeta struct {
	id       int64
	nRows    int
	nColumns int
}

// CCDBStore reads the constants store's SQLite snapshot format and
// implements ccdb.Transport. The directory tree and table index are small
// and immutable, so they are loaded once at open; everything else is
// queried on demand.
type CCDBStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	tables map[ccdb.Path]tableMeta
}

// OpenCCDB opens a constants snapshot file read-only and indexes its
// namespace tree.
func OpenCCDB(path string, logger *slog.Logger) (*CCDBStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	s := &CCDBStore{db: db, path: path, logger: logger}
	if err := s.loadIndex(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("storage: ccdb snapshot opened", "path", path, "tables", len(s.tables))
	return s, nil
}

// Close releases the underlying database handle.
func (s *CCDBStore) Close() error { return s.db.Close() }

// loadIndex walks the directories table into full paths and maps every
// typeTable onto its namespace path.
func (s *CCDBStore) loadIndex(ctx context.Context) error {
	type dir struct {
		name   string
		parent int64
	}
	dirs := make(map[int64]dir)
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, parentId FROM directories`)
	if err != nil {
		return fmt.Errorf("storage: ccdb load directories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var d dir
		var parent sql.NullInt64
		if err := rows.Scan(&id, &d.name, &parent); err != nil {
			return fmt.Errorf("storage: ccdb scan directory: %w", err)
		}
		d.parent = parent.Int64
		dirs[id] = d
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("storage: ccdb load directories: %w", err)
	}

	dirPath := func(id int64) string {
		var parts []string
		for id != 0 {
			d, ok := dirs[id]
			if !ok {
				break
			}
			parts = append(parts, d.name)
			id = d.parent
		}
		var b strings.Builder
		for i := len(parts) - 1; i >= 0; i-- {
			b.WriteByte('/')
			b.WriteString(parts[i])
		}
		return b.String()
	}

	tables := make(map[ccdb.Path]tableMeta)
	trows, err := s.db.QueryContext(ctx,
		`SELECT id, directoryId, name, nRows, nColumns FROM typeTables`)
	if err != nil {
		return fmt.Errorf("storage: ccdb load tables: %w", err)
	}
	defer trows.Close()
	for trows.Next() {
		var meta tableMeta
		var dirID int64
		var name string
		if err := trows.Scan(&meta.id, &dirID, &name, &meta.nRows, &meta.nColumns); err != nil {
			return fmt.Errorf("storage: ccdb scan table: %w", err)
		}
		tables[ccdb.Path(dirPath(dirID)+"/"+name)] = meta
	}
	if err := trows.Err(); err != nil {
		return fmt.Errorf("storage: ccdb load tables: %w", err)
	}

	s.mu.Lock()
	s.tables = tables
	s.mu.Unlock()
	return nil
}

func (s *CCDBStore) lookup(path ccdb.Path) (tableMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.tables[path]
	return m, ok
}

// FetchSchema implements ccdb.Transport.
func (s *CCDBStore) FetchSchema(ctx context.Context, path ccdb.Path) ([]ccdb.RawColumn, error) {
	meta, ok := s.lookup(path)
	if !ok {
		return nil, &ccdb.PathNotFoundError{Path: path}
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, columnType FROM columns WHERE typeId = ? ORDER BY `order`", meta.id)
	if err != nil {
		return nil, fmt.Errorf("storage: ccdb fetch schema %s: %w", path, err)
	}
	defer rows.Close()
	var cols []ccdb.RawColumn
	for rows.Next() {
		var c ccdb.RawColumn
		if err := rows.Scan(&c.Name, &c.TypeID); err != nil {
			return nil, fmt.Errorf("storage: ccdb scan column for %s: %w", path, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: ccdb fetch schema %s: %w", path, err)
	}
	return cols, nil
}

// FetchAssignments implements ccdb.Transport. Each assignment's vault (the
// '|'-delimited cell payload) is chunked into rows using the table's
// declared column count; cells stay raw text for the codec to decode.
func (s *CCDBStore) FetchAssignments(ctx context.Context, path ccdb.Path, variation string) ([]ccdb.RawAssignment, error) {
	meta, ok := s.lookup(path)
	if !ok {
		return nil, &ccdb.PathNotFoundError{Path: path}
	}

	var variationID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM variations WHERE name = ?`, variation).Scan(&variationID)
	if err == sql.ErrNoRows {
		return nil, &ccdb.VariationNotFoundError{Variation: variation}
	}
	if err != nil {
		return nil, fmt.Errorf("storage: ccdb resolve variation %q: %w", variation, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.created, rr.runMin, rr.runMax, cs.vault
		 FROM assignments a
		 JOIN runRanges rr ON rr.id = a.runRangeId
		 JOIN constantSets cs ON cs.id = a.constantSetId
		 WHERE cs.constantTypeId = ? AND a.variationId = ?`,
		meta.id, variationID)
	if err != nil {
		return nil, fmt.Errorf("storage: ccdb fetch assignments %s: %w", path, err)
	}
	defer rows.Close()

	var out []ccdb.RawAssignment
	for rows.Next() {
		var created string
		var runMin, runMax int64
		var vault string
		if err := rows.Scan(&created, &runMin, &runMax, &vault); err != nil {
			return nil, fmt.Errorf("storage: ccdb scan assignment for %s: %w", path, err)
		}
		createdAt, err := model.ParseStoreTime(created)
		if err != nil {
			return nil, fmt.Errorf("storage: ccdb assignment for %s: %w", path, err)
		}
		cells, err := splitVault(vault, meta.nRows, meta.nColumns)
		if err != nil {
			return nil, fmt.Errorf("storage: ccdb assignment for %s: %w", path, err)
		}
		out = append(out, ccdb.RawAssignment{
			RunMin:    model.RunNumber(runMin),
			RunMax:    model.RunNumber(runMax),
			CreatedAt: createdAt,
			Rows:      cells,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: ccdb fetch assignments %s: %w", path, err)
	}
	return out, nil
}

// splitVault chunks the flat cell payload into rows. The cell count must
// match the table's declared shape exactly.
func splitVault(vault string, nRows, nCols int) ([][]string, error) {
	if nCols <= 0 {
		return nil, fmt.Errorf("table declares %d columns", nCols)
	}
	cells := strings.Split(vault, "|")
	if want := nRows * nCols; len(cells) != want {
		return nil, fmt.Errorf("vault has %d cells, table shape is %dx%d", len(cells), nRows, nCols)
	}
	rows := make([][]string, nRows)
	for i := range rows {
		rows[i] = cells[i*nCols : (i+1)*nCols]
	}
	return rows, nil
}
