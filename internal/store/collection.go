package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/dealflow-cli/internal/db"
)

type columnKind int

const (
	kindText columnKind = iota
	kindTime
	kindInt
)

// column is a secondary index column kept alongside the JSON document.
type column struct {
	name string
	kind columnKind
}

// collection describes one table: id, user_id, index columns, the JSON
// document and timestamps.
type collection struct {
	table   string
	columns []column
	unique  []string // unique together with user_id
}

var (
	companies = collection{
		table:   "companies",
		columns: []column{{"registry_id", kindText}, {"stage", kindText}},
		unique:  []string{"registry_id"},
	}
	founders = collection{
		table:   "founders",
		columns: []column{{"company_id", kindText}},
	}
	investors = collection{
		table:   "investors",
		columns: []column{{"external_id", kindText}},
	}
	introductions = collection{
		table:   "introductions",
		columns: []column{{"company_id", kindText}, {"investor_id", kindText}},
		unique:  []string{"company_id", "investor_id"},
	}
	outreach = collection{
		table: "outreach_items",
		columns: []column{
			{"founder_id", kindText}, {"status", kindText},
			{"channel", kindText}, {"due_at", kindTime},
		},
	}
	templates = collection{
		table:   "templates",
		columns: []column{{"channel", kindText}, {"is_default", kindInt}},
	}
	jobRuns = collection{
		table:   "job_runs",
		columns: []column{{"job_type", kindText}, {"status", kindText}, {"started_at", kindTime}},
	}
	rateLimits = collection{
		table:   "rate_limits",
		columns: []column{{"api_name", kindText}, {"window_end", kindTime}},
	}
	settings = collection{
		table: "settings",
	}

	allCollections = []collection{
		companies, founders, investors, introductions, outreach,
		templates, jobRuns, rateLimits, settings,
	}
)

// doc is one row: the marshaled record plus its index values.
type doc struct {
	id        string
	userID    string
	index     map[string]any
	data      []byte
	createdAt time.Time
	updatedAt time.Time
}

// cond is a single WHERE predicate. op is one of =, !=, <, <=, >, >=, in.
type cond struct {
	col string
	op  string
	val any
}

func eq(col string, val any) cond { return cond{col: col, op: "=", val: val} }

type query struct {
	conds []cond
	order string
	desc  bool
	limit int
}

// dialect renders collection statements for one SQL engine.
type dialect struct {
	jsonType string
	kinds    map[columnKind]string
	bind     func(n int) string
	value    func(v any) any
}

func (d dialect) createStatements(c collection) []string {
	cols := []string{
		"id TEXT PRIMARY KEY",
		"user_id TEXT NOT NULL",
	}
	for _, col := range c.columns {
		cols = append(cols, fmt.Sprintf("%s %s", db.QuoteIdent(col.name), d.kinds[col.kind]))
	}
	cols = append(cols,
		"data "+d.jsonType+" NOT NULL",
		"created_at "+d.kinds[kindTime]+" NOT NULL",
		"updated_at "+d.kinds[kindTime]+" NOT NULL",
	)

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", db.QuoteIdent(c.table), strings.Join(cols, ",\n\t")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(user_id)",
			db.QuoteIdent("idx_"+c.table+"_user"), db.QuoteIdent(c.table)),
	}
	for _, col := range c.columns {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(user_id, %s)",
			db.QuoteIdent("idx_"+c.table+"_"+col.name), db.QuoteIdent(c.table), db.QuoteIdent(col.name)))
	}
	if len(c.unique) > 0 {
		stmts = append(stmts, fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s(user_id, %s)",
			db.QuoteIdent("uq_"+c.table), db.QuoteIdent(c.table), db.QuoteAndJoin(c.unique)))
	}
	return stmts
}

func (c collection) columnNames() []string {
	names := make([]string, 0, len(c.columns)+5)
	names = append(names, "id", "user_id")
	for _, col := range c.columns {
		names = append(names, col.name)
	}
	return append(names, "data", "created_at", "updated_at")
}

func (d dialect) rowArgs(c collection, r doc) []any {
	args := []any{r.id, r.userID}
	for _, col := range c.columns {
		args = append(args, d.value(r.index[col.name]))
	}
	return append(args, d.value(r.data), d.value(r.createdAt), d.value(r.updatedAt))
}

func (d dialect) binds(from, n int) string {
	b := make([]string, n)
	for i := range b {
		b[i] = d.bind(from + i)
	}
	return strings.Join(b, ", ")
}

// insertSQL renders an INSERT with the given conflict clause.
func (d dialect) insertSQL(c collection, r doc, onConflict string) (string, []any) {
	names := c.columnNames()
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		db.QuoteIdent(c.table), db.QuoteAndJoin(names), d.binds(1, len(names)))
	if onConflict != "" {
		sql += " " + onConflict
	}
	return sql, d.rowArgs(c, r)
}

func (d dialect) insertIgnoreSQL(c collection, r doc) (string, []any) {
	return d.insertSQL(c, r, "ON CONFLICT DO NOTHING")
}

func (d dialect) upsertSQL(c collection, r doc) (string, []any) {
	var sets []string
	for _, col := range c.columns {
		q := db.QuoteIdent(col.name)
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", q, q))
	}
	sets = append(sets, "data = excluded.data", "updated_at = excluded.updated_at")
	return d.insertSQL(c, r, "ON CONFLICT (id) DO UPDATE SET "+strings.Join(sets, ", "))
}

func (d dialect) updateSQL(c collection, r doc) (string, []any) {
	var sets []string
	var args []any
	n := 1
	for _, col := range c.columns {
		sets = append(sets, fmt.Sprintf("%s = %s", db.QuoteIdent(col.name), d.bind(n)))
		args = append(args, d.value(r.index[col.name]))
		n++
	}
	sets = append(sets, "data = "+d.bind(n), "updated_at = "+d.bind(n+1))
	args = append(args, d.value(r.data), d.value(r.updatedAt))
	n += 2

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s AND user_id = %s",
		db.QuoteIdent(c.table), strings.Join(sets, ", "), d.bind(n), d.bind(n+1))
	return sql, append(args, r.id, r.userID)
}

func (d dialect) where(conds []cond, start int) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	var parts []string
	var args []any
	n := start
	for _, cd := range conds {
		col := db.QuoteIdent(cd.col)
		if cd.op == "in" {
			vals, _ := cd.val.([]string)
			if len(vals) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", col, d.binds(n, len(vals))))
			for _, v := range vals {
				args = append(args, v)
			}
			n += len(vals)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", col, cd.op, d.bind(n)))
		args = append(args, d.value(cd.val))
		n++
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func (d dialect) selectSQL(c collection, q query) (string, []any) {
	where, args := d.where(q.conds, 1)
	sql := fmt.Sprintf("SELECT data FROM %s%s", db.QuoteIdent(c.table), where)
	order := q.order
	if order == "" {
		order = "created_at"
	}
	sql += " ORDER BY " + db.QuoteIdent(order)
	if q.desc {
		sql += " DESC"
	}
	if q.limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.limit)
	}
	return sql, args
}

func (d dialect) deleteSQL(c collection, conds []cond) (string, []any) {
	where, args := d.where(conds, 1)
	return fmt.Sprintf("DELETE FROM %s%s", db.QuoteIdent(c.table), where), args
}
