// Package store is the read and write API over the local cache.
//
// Every write method takes a flush flag. When flush is true the prepared
// statements run immediately as one batch; either way they are returned so
// callers can compose several writes into a single atomic batch.
package store

import (
	"context"

	waLog "go.mau.fi/whatsmeow/util/log"

	"chatcache/internal/data/query"
	"chatcache/internal/data/schema"
	"chatcache/internal/data/storage"
)

// DefaultMessageLimit is the number of recent messages read per channel.
const DefaultMessageLimit = 25

// Store is the shared core of all entity stores.
type Store struct {
	engine storage.Engine
	exec   storage.Executor
	log    waLog.Logger
}

// NewStore creates the core store over an open engine.
func NewStore(engine storage.Engine, log waLog.Logger) *Store {
	return &Store{engine: engine, exec: engine, log: log.Sub("Store")}
}

// Engine returns the underlying storage engine. Inside InTransaction it must
// not be used until fn returns.
func (s *Store) Engine() storage.Engine {
	return s.engine
}

// Execute runs statements as one batch.
func (s *Store) Execute(ctx context.Context, stmts []query.Statement) error {
	return s.exec.ExecuteBatch(ctx, stmts)
}

// InTransaction runs fn with a Container whose reads and writes share one
// transaction, so each write is visible to the reads that follow it. The
// transaction commits when fn returns nil.
func (s *Store) InTransaction(ctx context.Context, fn func(tx *Container) error) error {
	return s.engine.InTransaction(ctx, func(tx storage.Executor) error {
		return fn(NewContainer(&Store{engine: s.engine, exec: tx, log: s.log}))
	})
}

func (s *Store) apply(ctx context.Context, b *statements, flush bool) ([]query.Statement, error) {
	if b.err != nil {
		return nil, b.err
	}
	if flush && len(b.list) > 0 {
		if err := s.exec.ExecuteBatch(ctx, b.list); err != nil {
			return nil, err
		}
	}
	return b.list, nil
}

func (s *Store) rows(ctx context.Context, table string, p query.Predicate, orderBy ...query.OrderBy) ([]schema.Row, error) {
	stmt, err := query.Select(table, nil, p, orderBy...)
	if err != nil {
		return nil, err
	}
	return s.exec.ExecuteOne(ctx, stmt)
}

func (s *Store) exists(ctx context.Context, table string, p query.Predicate) (bool, error) {
	n, err := s.count(ctx, table, p)
	return n > 0, err
}

func (s *Store) count(ctx context.Context, table string, p query.Predicate) (int64, error) {
	stmt, err := query.Count(table, p)
	if err != nil {
		return 0, err
	}
	rows, err := s.exec.ExecuteOne(ctx, stmt)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	switch n := rows[0]["count"].(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	}
	return 0, nil
}

// statements accumulates prepared statements, keeping the first build error.
type statements struct {
	list []query.Statement
	err  error
}

func (b *statements) add(stmt query.Statement, err error) {
	if b.err != nil {
		return
	}
	if err != nil {
		b.err = err
		return
	}
	b.list = append(b.list, stmt)
}

func (b *statements) upsert(table string, row schema.Row) {
	b.add(query.Upsert(table, row))
}

func (b *statements) update(table string, set schema.Row, p query.Predicate) {
	b.add(query.Update(table, set, p))
}

func (b *statements) delete(table string, p query.Predicate) {
	b.add(query.Delete(table, p))
}
