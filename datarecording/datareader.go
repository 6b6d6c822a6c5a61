package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Query narrows down the rows read from a table.
type Query struct {
	// Where is a condition without the WHERE keyword, such as "Kind = ?".
	Where string
	Args  []any

	// OrderBy is a column list without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows. Zero reads all.
	Limit int
}

func (q Query) clauses() string {
	s := ""

	if q.Where != "" {
		s += " WHERE " + q.Where
	}

	if q.OrderBy != "" {
		s += " ORDER BY " + q.OrderBy
	}

	if q.Limit > 0 {
		s += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	return s
}

// A Reader reads a recording back.
type Reader struct {
	db *sql.DB
}

// OpenReader opens a recording. As with New, the ".sqlite3" suffix can be
// left out of the path.
func OpenReader(path string) (*Reader, error) {
	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	_, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open recording")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open recording")
	}

	return &Reader{db: db}, nil
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Tables lists the tables of the recording, sorted by name.
func (r *Reader) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string

		err = rows.Scan(&name)
		if err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

func (r *Reader) tableMustExist(ctx context.Context, table string) error {
	tables, err := r.Tables(ctx)
	if err != nil {
		return err
	}

	for _, t := range tables {
		if t == table {
			return nil
		}
	}

	return errors.Errorf("recording has no table %q", table)
}

// Count returns the number of rows of a table that match the query. The
// limit of the query is ignored.
func (r *Reader) Count(
	ctx context.Context,
	table string,
	q Query,
) (int, error) {
	err := r.tableMustExist(ctx, table)
	if err != nil {
		return 0, err
	}

	q.OrderBy = ""
	q.Limit = 0

	var n int

	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+table+q.clauses(), q.Args...).Scan(&n)

	return n, err
}

// ReadTable reads the rows of a table into entries of type T. The columns
// are matched to the exported fields of T by name, and the columns that T
// does not have are skipped.
func ReadTable[T any](
	ctx context.Context,
	r *Reader,
	table string,
	q Query,
) ([]T, error) {
	err := r.tableMustExist(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT * FROM "+table+q.clauses(), q.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var entries []T

	for rows.Next() {
		var entry T

		err = rows.Scan(scanTargets(reflect.ValueOf(&entry).Elem(), columns)...)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read table %s", table)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanTargets(entry reflect.Value, columns []string) []any {
	targets := make([]any, len(columns))

	for i, c := range columns {
		f := entry.FieldByName(c)
		if f.IsValid() && f.CanSet() {
			targets[i] = f.Addr().Interface()
			continue
		}

		var skipped any
		targets[i] = &skipped
	}

	return targets
}
