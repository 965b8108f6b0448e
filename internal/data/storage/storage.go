// Package storage owns the single embedded database handle.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Executor runs statements. The engine itself and the transaction handed to
// InTransaction both implement it.
type Executor interface {
	// ExecuteBatch applies statements atomically.
	ExecuteBatch(ctx context.Context, stmts []query.Statement) error
	ExecuteOne(ctx context.Context, stmt query.Statement) ([]schema.Row, error)
}

// Engine executes statements against the local cache.
type Engine interface {
	Executor
	Open(ctx context.Context) error
	Close() error
	// InTransaction runs fn inside one transaction. Statements run through the
	// Executor passed to fn see each other's effects; everything commits when
	// fn returns nil and rolls back otherwise. fn must not use the engine
	// directly while it runs.
	InTransaction(ctx context.Context, fn func(tx Executor) error) error
	// Bootstrap recreates every table when the stored schema version differs
	// and creates missing tables and indexes.
	Bootstrap(ctx context.Context) error
	// Reset drops and recreates every non-durable table.
	Reset(ctx context.Context) error
	// DropAll drops every table, durable ones included, and bootstraps again.
	DropAll(ctx context.Context) error
}

// backend is a database/sql driver registered under a configuration name.
type backend struct {
	driverName string
	dsn        func(path string) string
}

var backends = map[string]backend{}

func registerBackend(name string, b backend) {
	backends[name] = b
}

// Drivers lists the configured driver names available in this build.
func Drivers() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SQLite is the Engine over an embedded SQLite database.
type SQLite struct {
	path    string
	backend backend
	log     waLog.Logger

	mu sync.Mutex
	db *sqlx.DB
}

var _ Engine = (*SQLite)(nil)

// New creates an engine for the database at path using the named driver.
// The engine is not opened.
func New(path, driver string, log waLog.Logger) (*SQLite, error) {
	b, ok := backends[driver]
	if !ok {
		return nil, fmt.Errorf("unknown database driver %q (available: %v)", driver, Drivers())
	}
	return &SQLite{path: path, backend: b, log: log.Sub("Storage")}, nil
}

// Open connects to the database and enables foreign keys. Opening an open
// engine is a no-op.
func (s *SQLite) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	if s.path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return newError("open", "mkdir", "", err)
		}
	}

	db, err := sqlx.Open(s.backend.driverName, s.backend.dsn(s.path))
	if err != nil {
		return newError("open", "connect", "", err)
	}
	// One connection: statements are serialized and :memory: stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return newError("open", "pragma", "PRAGMA foreign_keys = ON", err)
	}
	s.db = db
	s.log.Debugf("Opened %s database at %s", s.backend.driverName, s.path)
	return nil
}

// Close closes the handle. Closing a closed engine is a no-op.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return newError("close", "failed", "", err)
	}
	return nil
}

func (s *SQLite) handle(op string) (*sqlx.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, newError(op, "closed", "", ErrClosed)
	}
	return s.db, nil
}

// ExecuteBatch applies stmts in one transaction. On failure nothing is applied.
func (s *SQLite) ExecuteBatch(ctx context.Context, stmts []query.Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	db, err := s.handle("batch")
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return newError("batch", "begin", "", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt.Query, stmt.Args...); err != nil {
			s.log.Errorf("Statement failed, rolling back batch of %d: %s: %v", len(stmts), stmt.Query, err)
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Warnf("Rollback failed: %v", rbErr)
			}
			return newError("batch", "exec", stmt.Query, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return newError("batch", "commit", "", err)
	}
	return nil
}

// ExecuteOne runs a single statement and returns its rows. TEXT values are
// returned as strings.
func (s *SQLite) ExecuteOne(ctx context.Context, stmt query.Statement) ([]schema.Row, error) {
	db, err := s.handle("query")
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, db, s.log, stmt)
}

func queryRows(ctx context.Context, q sqlx.QueryerContext, log waLog.Logger, stmt query.Statement) ([]schema.Row, error) {
	rows, err := q.QueryxContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		log.Errorf("Statement failed: %s: %v", stmt.Query, err)
		return nil, newError("query", "exec", stmt.Query, err)
	}
	defer rows.Close()

	var out []schema.Row
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, newError("query", "scan", stmt.Query, err)
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, schema.Row(m))
	}
	if err := rows.Err(); err != nil {
		log.Errorf("Statement failed: %s: %v", stmt.Query, err)
		return nil, newError("query", "rows", stmt.Query, err)
	}
	return out, nil
}

// InTransaction runs fn in one transaction, committing when it returns nil.
func (s *SQLite) InTransaction(ctx context.Context, fn func(tx Executor) error) error {
	db, err := s.handle("transaction")
	if err != nil {
		return err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return newError("transaction", "begin", "", err)
	}
	if err := fn(&transaction{tx: tx, log: s.log}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warnf("Rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return newError("transaction", "commit", "", err)
	}
	return nil
}

// transaction is the Executor inside InTransaction. Each batch runs under its
// own savepoint so a failed batch leaves no partial writes behind.
type transaction struct {
	tx      *sqlx.Tx
	log     waLog.Logger
	batches int
}

func (t *transaction) ExecuteBatch(ctx context.Context, stmts []query.Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	t.batches++
	savepoint := fmt.Sprintf("batch_%d", t.batches)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return newError("batch", "savepoint", "SAVEPOINT "+savepoint, err)
	}
	for _, stmt := range stmts {
		if _, err := t.tx.ExecContext(ctx, stmt.Query, stmt.Args...); err != nil {
			t.log.Errorf("Statement failed, rolling back batch of %d: %s: %v", len(stmts), stmt.Query, err)
			if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO "+savepoint); rbErr != nil {
				t.log.Warnf("Rollback to %s failed: %v", savepoint, rbErr)
			}
			if _, relErr := t.tx.ExecContext(ctx, "RELEASE "+savepoint); relErr != nil {
				t.log.Warnf("Release of %s failed: %v", savepoint, relErr)
			}
			return newError("batch", "exec", stmt.Query, err)
		}
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE "+savepoint); err != nil {
		return newError("batch", "release", "RELEASE "+savepoint, err)
	}
	return nil
}

func (t *transaction) ExecuteOne(ctx context.Context, stmt query.Statement) ([]schema.Row, error) {
	return queryRows(ctx, t.tx, t.log, stmt)
}

// SchemaVersion returns the stored user_version.
func (s *SQLite) SchemaVersion(ctx context.Context) (int, error) {
	db, err := s.handle("version")
	if err != nil {
		return 0, err
	}
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, newError("version", "read", "PRAGMA user_version", err)
	}
	return version, nil
}

// Bootstrap recreates the schema on a version mismatch and then creates any
// missing table or index.
func (s *SQLite) Bootstrap(ctx context.Context) error {
	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	var stmts []query.Statement
	if version != schema.Version {
		if version != 0 {
			s.log.Infof("Schema version changed from %d to %d, recreating all tables", version, schema.Version)
		}
		stmts = append(stmts, dropStatements(false)...)
		stmts = append(stmts, query.Statement{Query: fmt.Sprintf("PRAGMA user_version = %d", schema.Version)})
	}
	stmts = append(stmts, createStatements(false)...)

	if err := s.ExecuteBatch(ctx, stmts); err != nil {
		return fmt.Errorf("failed to bootstrap schema: %w", err)
	}
	return nil
}

// Reset drops and recreates every table except durable ones.
func (s *SQLite) Reset(ctx context.Context) error {
	stmts := append(dropStatements(true), createStatements(true)...)
	if err := s.ExecuteBatch(ctx, stmts); err != nil {
		return fmt.Errorf("failed to reset cache: %w", err)
	}
	s.log.Infof("Local cache reset")
	return nil
}

// DropAll drops every table and bootstraps an empty schema.
func (s *SQLite) DropAll(ctx context.Context) error {
	stmts := append(dropStatements(false), createStatements(false)...)
	stmts = append(stmts, query.Statement{Query: fmt.Sprintf("PRAGMA user_version = %d", schema.Version)})
	if err := s.ExecuteBatch(ctx, stmts); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	s.log.Infof("All tables dropped and recreated")
	return nil
}

// dropStatements drops children before parents.
func dropStatements(skipDurable bool) []query.Statement {
	tables := schema.All()
	var out []query.Statement
	for i := len(tables) - 1; i >= 0; i-- {
		if skipDurable && tables[i].Durable {
			continue
		}
		out = append(out, query.Statement{Query: query.DropTable(tables[i])})
	}
	return out
}

func createStatements(skipDurable bool) []query.Statement {
	var out []query.Statement
	for _, t := range schema.All() {
		if skipDurable && t.Durable {
			continue
		}
		out = append(out, query.Statement{Query: query.CreateTable(t)})
		for _, idx := range query.CreateIndexes(t) {
			out = append(out, query.Statement{Query: idx})
		}
	}
	return out
}
