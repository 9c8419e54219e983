package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// backend executes collection statements against one SQL engine.
type backend interface {
	name() string
	migrate(ctx context.Context, cols []collection) error
	insert(ctx context.Context, c collection, r doc) error
	insertIfAbsent(ctx context.Context, c collection, r doc) (bool, error)
	upsert(ctx context.Context, c collection, r doc) error
	update(ctx context.Context, c collection, r doc) error
	find(ctx context.Context, c collection, q query) ([][]byte, error)
	remove(ctx context.Context, c collection, conds []cond) (int64, error)
	close() error
}

// SQLStore implements Store over a SQLite or Postgres backend.
type SQLStore struct {
	b       backend
	nowFunc func() time.Time
}

var _ Store = (*SQLStore)(nil)

func newSQLStore(b backend) *SQLStore {
	return &SQLStore{b: b, nowFunc: func() time.Time { return time.Now().UTC() }}
}

// Driver returns the backend name.
func (s *SQLStore) Driver() string { return s.b.name() }

// Migrate creates all tables and indexes if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.b.migrate(ctx, allCollections)
}

// Close releases the underlying connection(s).
func (s *SQLStore) Close() error {
	return s.b.close()
}

func newID() string {
	return uuid.New().String()
}

func marshalDoc(id, userID string, v any, index map[string]any, created, updated time.Time) (doc, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return doc{}, eris.Wrap(err, "store: marshal")
	}
	return doc{id: id, userID: userID, index: index, data: data, createdAt: created, updatedAt: updated}, nil
}

func findAll[T any](ctx context.Context, s *SQLStore, c collection, q query) ([]T, error) {
	rows, err := s.b.find(ctx, c, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, data := range rows {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal %s", c.table)
		}
		out = append(out, v)
	}
	return out, nil
}

func findOne[T any](ctx context.Context, s *SQLStore, c collection, conds ...cond) (*T, error) {
	items, err := findAll[T](ctx, s, c, query{conds: conds, limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "%s", c.table)
	}
	return &items[0], nil
}

func exists(ctx context.Context, s *SQLStore, c collection, conds ...cond) (bool, error) {
	rows, err := s.b.find(ctx, c, query{conds: conds, limit: 1})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
