package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is fixed-width so lexical comparison matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

var sqliteDialect = dialect{
	jsonType: "TEXT",
	kinds: map[columnKind]string{
		kindText: "TEXT",
		kindTime: "TEXT",
		kindInt:  "INTEGER",
	},
	bind: func(int) string { return "?" },
	value: func(v any) any {
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Format(sqliteTimeLayout)
		case []byte:
			return string(t)
		}
		return v
	},
}

type sqliteBackend struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer avoids SQLITE_BUSY between pipeline stages.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return newSQLStore(&sqliteBackend{db: db}), nil
}

func (b *sqliteBackend) name() string { return "sqlite" }

func (b *sqliteBackend) migrate(ctx context.Context, cols []collection) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin migrate")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range cols {
		for _, stmt := range sqliteDialect.createStatements(c) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return eris.Wrapf(err, "sqlite: migrate %s", c.table)
			}
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit migrate")
}

func (b *sqliteBackend) exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}

func (b *sqliteBackend) insert(ctx context.Context, c collection, r doc) error {
	q, args := sqliteDialect.insertSQL(c, r, "")
	_, err := b.exec(ctx, q, args)
	return eris.Wrapf(err, "sqlite: insert %s", c.table)
}

func (b *sqliteBackend) insertIfAbsent(ctx context.Context, c collection, r doc) (bool, error) {
	q, args := sqliteDialect.insertIgnoreSQL(c, r)
	n, err := b.exec(ctx, q, args)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert %s", c.table)
	}
	return n > 0, nil
}

func (b *sqliteBackend) upsert(ctx context.Context, c collection, r doc) error {
	q, args := sqliteDialect.upsertSQL(c, r)
	_, err := b.exec(ctx, q, args)
	return eris.Wrapf(err, "sqlite: upsert %s", c.table)
}

func (b *sqliteBackend) update(ctx context.Context, c collection, r doc) error {
	q, args := sqliteDialect.updateSQL(c, r)
	n, err := b.exec(ctx, q, args)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s %s", c.table, r.id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", c.table, r.id)
	}
	return nil
}

func (b *sqliteBackend) find(ctx context.Context, c collection, qu query) ([][]byte, error) {
	q, args := sqliteDialect.selectSQL(c, qu)
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", c.table)
	}
	defer rows.Close() //nolint:errcheck

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", c.table)
		}
		out = append(out, data)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate %s", c.table)
}

func (b *sqliteBackend) remove(ctx context.Context, c collection, conds []cond) (int64, error) {
	q, args := sqliteDialect.deleteSQL(c, conds)
	n, err := b.exec(ctx, q, args)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete %s", c.table)
	}
	return n, nil
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}
