package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/db"
)

var postgresDialect = dialect{
	jsonType: "JSONB",
	kinds: map[columnKind]string{
		kindText: "TEXT",
		kindTime: "TIMESTAMPTZ",
		kindInt:  "BIGINT",
	},
	bind:  func(n int) string { return fmt.Sprintf("$%d", n) },
	value: func(v any) any { return v },
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

type postgresBackend struct {
	pool db.Pool
}

// NewPostgres creates a Postgres-backed store with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*SQLStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newSQLStore(&postgresBackend{pool: pool}), nil
}

// newPostgresWithPool wraps an existing pool, used by tests with pgxmock.
func newPostgresWithPool(pool db.Pool) *SQLStore {
	return newSQLStore(&postgresBackend{pool: pool})
}

func (b *postgresBackend) name() string { return "postgres" }

func (b *postgresBackend) migrate(ctx context.Context, cols []collection) error {
	return db.WithTx(ctx, b.pool, func(tx pgx.Tx) error {
		for _, c := range cols {
			for _, stmt := range postgresDialect.createStatements(c) {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return eris.Wrapf(err, "postgres: migrate %s", c.table)
				}
			}
		}
		return nil
	})
}

func (b *postgresBackend) insert(ctx context.Context, c collection, r doc) error {
	q, args := postgresDialect.insertSQL(c, r, "")
	_, err := b.pool.Exec(ctx, q, args...)
	return eris.Wrapf(err, "postgres: insert %s", c.table)
}

func (b *postgresBackend) insertIfAbsent(ctx context.Context, c collection, r doc) (bool, error) {
	q, args := postgresDialect.insertIgnoreSQL(c, r)
	tag, err := b.pool.Exec(ctx, q, args...)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert %s", c.table)
	}
	return tag.RowsAffected() > 0, nil
}

func (b *postgresBackend) upsert(ctx context.Context, c collection, r doc) error {
	q, args := postgresDialect.upsertSQL(c, r)
	_, err := b.pool.Exec(ctx, q, args...)
	return eris.Wrapf(err, "postgres: upsert %s", c.table)
}

func (b *postgresBackend) update(ctx context.Context, c collection, r doc) error {
	q, args := postgresDialect.updateSQL(c, r)
	tag, err := b.pool.Exec(ctx, q, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s %s", c.table, r.id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", c.table, r.id)
	}
	return nil
}

func (b *postgresBackend) find(ctx context.Context, c collection, qu query) ([][]byte, error) {
	q, args := postgresDialect.selectSQL(c, qu)
	rows, err := b.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", c.table)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", c.table)
		}
		out = append(out, data)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate %s", c.table)
}

func (b *postgresBackend) remove(ctx context.Context, c collection, conds []cond) (int64, error) {
	q, args := postgresDialect.deleteSQL(c, conds)
	tag, err := b.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete %s", c.table)
	}
	return tag.RowsAffected(), nil
}

func (b *postgresBackend) close() error {
	b.pool.Close()
	return nil
}
