package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver (cgo)
	_ "modernc.org/sqlite"          // "sqlite" driver (pure Go)
)

// Driver names accepted by NewSQLiteStore.
const (
	DriverSQLite  = "sqlite"
	DriverSQLite3 = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite backend.
type SQLiteConfig struct {
	// Driver is the database/sql driver: "sqlite" or "sqlite3".
	// Default: "sqlite"
	Driver string

	// Path is the database file path. Parent directories are created.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Driver:       DriverSQLite,
		Path:         ".twigpack/manifest.db",
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at config.Path and
// initializes its schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverSQLite
	}
	if config.Driver != DriverSQLite && config.Driver != DriverSQLite3 {
		return nil, NewStorageError(config.Driver, "open", fmt.Errorf("unsupported driver %q", config.Driver))
	}
	if config.Path == "" {
		return nil, NewStorageError(config.Driver, "open", errors.New("database path cannot be empty"))
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 4
	}

	logger := slog.Default().With("component", "manifest.sqlite")

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewStorageError(config.Driver, "open", err)
		}
	}

	db, err := sql.Open(config.Driver, dsn(config))
	if err != nil {
		return nil, NewStorageError(config.Driver, "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxOpenConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("manifest opened",
		"driver", config.Driver,
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// dsn builds a data source name setting the busy timeout and journal mode
// on every connection. The two drivers spell pragmas differently.
func dsn(cfg *SQLiteConfig) string {
	q := url.Values{}
	ms := cfg.BusyTimeout.Milliseconds()
	switch cfg.Driver {
	case DriverSQLite3:
		q.Set("_busy_timeout", fmt.Sprint(ms))
		if cfg.WALMode {
			q.Set("_journal_mode", "WAL")
		}
	default:
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", ms))
		if cfg.WALMode {
			q.Add("_pragma", "journal_mode(WAL)")
		}
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// initialize creates the schema and verifies its version.
func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError(s.config.Driver, "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError(s.config.Driver, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return NewStorageError(s.config.Driver, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError(s.config.Driver, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Record inserts or replaces the entry and its dependency list in one
// transaction.
func (s *SQLiteStore) Record(ctx context.Context, e *Entry) error {
	if err := validateEntry(e); err != nil {
		return NewStorageError(s.config.Driver, "record", err)
	}
	compiledAt := e.CompiledAt
	if compiledAt.IsZero() {
		compiledAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError(s.config.Driver, "record", err)
	}
	defer tx.Rollback()

	var output any
	if e.OutputPath != "" {
		output = e.OutputPath
	}
	if _, err := tx.ExecContext(ctx, upsertEntry,
		e.ResourcePath, e.Key, e.Mode, e.KeyMode, output, e.CompilationID,
		int64(e.Duration), compiledAt.UnixNano(),
	); err != nil {
		return NewStorageError(s.config.Driver, "record", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM dependencies WHERE resource_path = ?", e.ResourcePath); err != nil {
		return NewStorageError(s.config.Driver, "record", err)
	}
	for i, dep := range e.Dependencies {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO dependencies (resource_path, position, dependency) VALUES (?, ?, ?)",
			e.ResourcePath, i, dep,
		); err != nil {
			return NewStorageError(s.config.Driver, "record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError(s.config.Driver, "record", err)
	}
	return nil
}

// Get returns the entry for resourcePath.
func (s *SQLiteStore) Get(ctx context.Context, resourcePath string) (*Entry, error) {
	entries, err := s.query(ctx, "get", " WHERE resource_path = ?", resourcePath)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries[0], nil
}

// List returns every entry.
func (s *SQLiteStore) List(ctx context.Context) ([]*Entry, error) {
	return s.query(ctx, "list", "")
}

// Dependents returns the entries depending on path.
func (s *SQLiteStore) Dependents(ctx context.Context, path string) ([]*Entry, error) {
	return s.query(ctx, "dependents",
		" WHERE resource_path = ? OR resource_path IN (SELECT resource_path FROM dependencies WHERE dependency = ?)",
		path, path)
}

// Delete removes the entry for resourcePath.
func (s *SQLiteStore) Delete(ctx context.Context, resourcePath string) error {
	deleted, err := s.delete(ctx, "delete", "resource_path = ?", resourcePath)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune removes the entries compiled before olderThan.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	return s.delete(ctx, "prune", "compiled_at < ?", olderThan.UnixNano())
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError(s.config.Driver, "close", err)
	}
	s.logger.Debug("manifest closed")
	return nil
}

// delete removes the entries matching where together with their
// dependency rows.
func (s *SQLiteStore) delete(ctx context.Context, op, where string, args ...any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, NewStorageError(s.config.Driver, op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM dependencies WHERE resource_path IN (SELECT resource_path FROM entries WHERE "+where+")",
		args...,
	); err != nil {
		return 0, NewStorageError(s.config.Driver, op, err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE "+where, args...)
	if err != nil {
		return 0, NewStorageError(s.config.Driver, op, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, NewStorageError(s.config.Driver, op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, NewStorageError(s.config.Driver, op, err)
	}
	return deleted, nil
}

// query loads the entries matching where, then their dependencies.
func (s *SQLiteStore) query(ctx context.Context, op, where string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries+where+" ORDER BY resource_path", args...)
	if err != nil {
		return nil, NewStorageError(s.config.Driver, op, err)
	}
	defer rows.Close()

	entries := []*Entry{}
	byPath := make(map[string]*Entry)
	for rows.Next() {
		var e Entry
		var output sql.NullString
		var durationNs, compiledAt int64
		if err := rows.Scan(&e.ResourcePath, &e.Key, &e.Mode, &e.KeyMode, &output,
			&e.CompilationID, &durationNs, &compiledAt); err != nil {
			return nil, NewStorageError(s.config.Driver, "scan", err)
		}
		e.OutputPath = output.String
		e.Duration = time.Duration(durationNs)
		e.CompiledAt = time.Unix(0, compiledAt)
		e.Dependencies = []string{}
		entries = append(entries, &e)
		byPath[e.ResourcePath] = &e
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(s.config.Driver, op, err)
	}
	rows.Close()

	if len(entries) == 0 {
		return entries, nil
	}

	depQuery := selectDependencies
	var depArgs []any
	if len(entries) < 500 {
		placeholders := make([]string, len(entries))
		for i, e := range entries {
			placeholders[i] = "?"
			depArgs = append(depArgs, e.ResourcePath)
		}
		depQuery = "SELECT resource_path, dependency FROM dependencies WHERE resource_path IN (" +
			strings.Join(placeholders, ", ") + ") ORDER BY resource_path, position"
	}

	depRows, err := s.db.QueryContext(ctx, depQuery, depArgs...)
	if err != nil {
		return nil, NewStorageError(s.config.Driver, op, err)
	}
	defer depRows.Close()

	for depRows.Next() {
		var path, dep string
		if err := depRows.Scan(&path, &dep); err != nil {
			return nil, NewStorageError(s.config.Driver, "scan", err)
		}
		if e, ok := byPath[path]; ok {
			e.Dependencies = append(e.Dependencies, dep)
		}
	}
	if err := depRows.Err(); err != nil {
		return nil, NewStorageError(s.config.Driver, op, err)
	}

	return entries, nil
}
