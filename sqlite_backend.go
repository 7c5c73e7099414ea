package pitfeat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"

	"github.com/chronicle-db/pitfeat/internal/frame"
)

// timeDeclType marks INTEGER columns holding Unix nanoseconds. The name
// contains INT so SQLite gives it integer affinity.
const timeDeclType = "INTEGER_TIME"

// SQLiteConfig configures SQLiteTables.
type SQLiteConfig struct {
	// Path to the SQLite database file
	Path string `yaml:"path"`

	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, etc.)
	JournalMode string `yaml:"journal_mode"`

	// BusyTimeout is the timeout for acquiring locks.
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// MaxConnections is the max number of database connections
	MaxConnections int `yaml:"max_connections"`
}

// DefaultSQLiteConfig returns default configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:           "pitfeat.db",
		JournalMode:    "WAL",
		BusyTimeout:    5 * time.Second,
		MaxConnections: 4,
	}
}

// ColumnSpec names a table column and the kind it is read as.
type ColumnSpec struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`
}

// SQLiteTables reads and writes frames as SQLite tables. Strings map to
// TEXT, floats to REAL, ints to INTEGER and times to INTEGER nanoseconds;
// nulls map to NULL. It also stores snapshot blobs, see Snapshots.
type SQLiteTables struct {
	db     *sql.DB
	config SQLiteConfig
	mu     sync.RWMutex
	closed bool
}

// OpenSQLiteTables opens or creates the database at config.Path.
func OpenSQLiteTables(config SQLiteConfig) (*SQLiteTables, error) {
	def := DefaultSQLiteConfig()
	if config.Path == "" {
		config.Path = def.Path
	}
	if config.JournalMode == "" {
		config.JournalMode = def.JournalMode
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = def.BusyTimeout
	}
	if config.MaxConnections <= 0 {
		config.MaxConnections = def.MaxConnections
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)",
		config.Path, config.BusyTimeout.Milliseconds(), config.JournalMode)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(max(1, config.MaxConnections/2))

	t := &SQLiteTables{db: db, config: config}
	if err := t.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return t, nil
}

func (t *SQLiteTables) initSchema() error {
	_, err := t.db.Exec(`
		CREATE TABLE IF NOT EXISTS pitfeat_snapshots (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			size INTEGER NOT NULL
		)`)
	return err
}

func (t *SQLiteTables) checkOpen() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return errors.New("sqlite tables are closed")
	}
	return nil
}

// Close closes the database.
func (t *SQLiteTables) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func declType(k Kind) string {
	switch k {
	case frame.KindFloat:
		return "REAL"
	case frame.KindInt:
		return "INTEGER"
	case frame.KindTime:
		return timeDeclType
	}
	return "TEXT"
}

// kindOfDecl maps a declared column type to a kind following SQLite's
// affinity rules.
func kindOfDecl(decl string) Kind {
	d := strings.ToUpper(decl)
	switch {
	case d == timeDeclType:
		return frame.KindTime
	case strings.Contains(d, "INT"):
		return frame.KindInt
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return frame.KindString
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"),
		strings.Contains(d, "NUM"), strings.Contains(d, "DEC"):
		return frame.KindFloat
	}
	return frame.KindString
}

// Schema returns the columns of table with kinds derived from their
// declared types.
func (t *SQLiteTables) Schema(ctx context.Context, table string) ([]ColumnSpec, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := t.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema of %s: %w", table, err)
	}
	defer rows.Close()

	var specs []ColumnSpec
	for rows.Next() {
		var name, decl string
		if err := rows.Scan(&name, &decl); err != nil {
			return nil, err
		}
		specs = append(specs, ColumnSpec{Name: name, Kind: kindOfDecl(decl)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, fs.ErrNotExist)
	}
	return specs, nil
}

// ReadTable loads table into a frame. Without specs every column is read
// with the kind of its declared type.
func (t *SQLiteTables) ReadTable(ctx context.Context, table string, specs ...ColumnSpec) (*Frame, error) {
	if len(specs) == 0 {
		var err error
		if specs, err = t.Schema(ctx, table); err != nil {
			return nil, err
		}
	}
	if err := t.checkOpen(); err != nil {
		return nil, err
	}

	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = quoteIdent(s.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), quoteIdent(table))
	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	defer rows.Close()

	builders := make([]*columnBuilder, len(specs))
	dest := make([]any, len(specs))
	for i, s := range specs {
		builders[i] = newColumnBuilder(s)
		dest[i] = builders[i].target()
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan table %s: %w", table, err)
		}
		for _, b := range builders {
			b.appendScanned()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cols := make([]*frame.Column, len(builders))
	for i, b := range builders {
		cols[i] = b.column()
	}
	return frame.New(cols...)
}

// columnBuilder accumulates scanned values of one column.
type columnBuilder struct {
	spec    ColumnSpec
	str     sql.NullString
	flt     sql.NullFloat64
	integer sql.NullInt64
	strs    []string
	floats  []float64
	ints    []int64
	valid   []bool
}

func newColumnBuilder(s ColumnSpec) *columnBuilder {
	return &columnBuilder{spec: s}
}

func (b *columnBuilder) target() any {
	switch b.spec.Kind {
	case frame.KindString:
		return &b.str
	case frame.KindFloat:
		return &b.flt
	}
	return &b.integer
}

func (b *columnBuilder) appendScanned() {
	switch b.spec.Kind {
	case frame.KindString:
		b.strs = append(b.strs, b.str.String)
		b.valid = append(b.valid, b.str.Valid)
	case frame.KindFloat:
		b.floats = append(b.floats, b.flt.Float64)
		b.valid = append(b.valid, b.flt.Valid)
	default:
		b.ints = append(b.ints, b.integer.Int64)
		b.valid = append(b.valid, b.integer.Valid)
	}
}

func (b *columnBuilder) column() *frame.Column {
	n := b.spec.Name
	switch b.spec.Kind {
	case frame.KindString:
		return frame.NullableStrings(n, nonNil(b.strs), b.valid)
	case frame.KindFloat:
		return frame.NullableFloats(n, nonNil(b.floats), b.valid)
	case frame.KindTime:
		return frame.NullableTimes(n, nonNil(b.ints), b.valid)
	}
	return frame.NullableInts(n, nonNil(b.ints), b.valid)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// WriteTable replaces table with the contents of f in one transaction.
func (t *SQLiteTables) WriteTable(ctx context.Context, table string, f *Frame) (err error) {
	if err := t.checkOpen(); err != nil {
		return err
	}
	cols := f.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("write table %s: %w", table, ErrEmptyInput)
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
		defs[i] = names[i] + " " + declType(c.Kind)
		marks[i] = "?"
	}
	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err = tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(names, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for r := 0; r < f.Len(); r++ {
		for i, c := range cols {
			args[i] = cellValue(c, r)
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", r, table, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table %s: %w", table, err)
	}
	return nil
}

func cellValue(c *frame.Column, r int) any {
	if c.IsNull(r) {
		return nil
	}
	switch c.Kind {
	case frame.KindString:
		return c.Strings[r]
	case frame.KindFloat:
		return c.Floats[r]
	}
	return c.Ints[r]
}

// Snapshots returns a StorageBackend that keeps blobs in this database.
func (t *SQLiteTables) Snapshots() StorageBackend {
	return &sqliteBlobs{t: t}
}

type sqliteBlobs struct {
	t *SQLiteTables
}

var _ StorageBackend = (*sqliteBlobs)(nil)

func (s *sqliteBlobs) Read(ctx context.Context, key string) ([]byte, error) {
	if err := s.t.checkOpen(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.t.db.QueryRowContext(ctx, `SELECT data FROM pitfeat_snapshots WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot blob %s: %w", key, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot blob: %w", err)
	}
	return data, nil
}

func (s *sqliteBlobs) Write(ctx context.Context, key string, data []byte) error {
	if err := s.t.checkOpen(); err != nil {
		return err
	}
	_, err := s.t.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pitfeat_snapshots (key, data, updated_at, size)
		VALUES (?, ?, ?, ?)`, key, data, time.Now().UnixNano(), len(data))
	if err != nil {
		return fmt.Errorf("failed to write snapshot blob: %w", err)
	}
	return nil
}

func (s *sqliteBlobs) Delete(ctx context.Context, key string) error {
	if err := s.t.checkOpen(); err != nil {
		return err
	}
	if _, err := s.t.db.ExecContext(ctx, `DELETE FROM pitfeat_snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete snapshot blob: %w", err)
	}
	return nil
}

func (s *sqliteBlobs) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.t.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.t.db.QueryContext(ctx,
		`SELECT key FROM pitfeat_snapshots WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot blobs: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *sqliteBlobs) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.t.checkOpen(); err != nil {
		return false, err
	}
	var one int
	err := s.t.db.QueryRowContext(ctx, `SELECT 1 FROM pitfeat_snapshots WHERE key = ? LIMIT 1`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Close is a no-op; the owning SQLiteTables closes the database.
func (s *sqliteBlobs) Close() error {
	return nil
}
