// Package datarecording stores simulation records, such as completed bus
// transactions and diagnostics, into a SQLite database.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/structs"
	"github.com/pkg/errors"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData writes an entry into a table that already exists. The entry
	// must have the same type as the sample entry of the table.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush flushes all the buffered entries into database
	Flush()

	// Close flushes the buffered entries and closes the database.
	Close() error
}

// flushThreshold is the number of buffered entries that triggers a flush.
const flushThreshold = 100000

// New creates a DataRecorder that writes to path + ".sqlite3". An empty path
// picks a unique name. Existing files are never overwritten. The recorder
// also keeps the run info table.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = "avalon_recording_" + xid.New().String()
	}

	filename := path + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		return nil, errors.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open recording database")
	}

	fmt.Fprintf(os.Stderr, "Recording to %s\n", filename)

	r := newSQLiteRecorder(db)
	r.runInfo = newRunInfoRecorder(r)

	atexit.Register(func() { _ = r.Close() })

	return r, nil
}

// NewWithDB creates a DataRecorder on an open database. Closing the recorder
// closes the database.
func NewWithDB(db *sql.DB) DataRecorder {
	return newSQLiteRecorder(db)
}

type pendingTable struct {
	entryType reflect.Type
	columns   []string
	entries   []any
}

type sqliteRecorder struct {
	db      *sql.DB
	tables  map[string]*pendingTable
	pending int
	runInfo *runInfoRecorder
	closed  bool
}

func newSQLiteRecorder(db *sql.DB) *sqliteRecorder {
	return &sqliteRecorder{
		db:     db,
		tables: make(map[string]*pendingTable),
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// columnType maps a field kind to the SQLite column type. Other kinds cannot
// be stored.
func columnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	}

	return "", false
}

func columnsOf(sample any) ([]string, error) {
	t := reflect.TypeOf(sample)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.Errorf("entry of type %v is not a struct", t)
	}

	columns := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			return nil, errors.Errorf("field %s is not exported", f.Name)
		}

		ct, ok := columnType(f.Type.Kind())
		if !ok {
			return nil, errors.Errorf("field %s of kind %s cannot be stored",
				f.Name, f.Type.Kind())
		}

		columns = append(columns, f.Name+" "+ct)
	}

	return columns, nil
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleEntry any) {
	if !identifier.MatchString(tableName) {
		panic(fmt.Sprintf("invalid table name %q", tableName))
	}

	if _, exists := r.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	columns, err := columnsOf(sampleEntry)
	if err != nil {
		panic(err)
	}

	_, err = r.db.Exec("CREATE TABLE " + tableName +
		" (" + strings.Join(columns, ", ") + ")")
	if err != nil {
		panic(errors.Wrapf(err, "cannot create table %s", tableName))
	}

	r.tables[tableName] = &pendingTable{
		entryType: reflect.TypeOf(sampleEntry),
		columns:   structs.Names(sampleEntry),
	}
}

func (r *sqliteRecorder) InsertData(tableName string, entry any) {
	t, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.entryType {
		panic(fmt.Sprintf("table %s expects %s, got %T",
			tableName, t.entryType, entry))
	}

	t.entries = append(t.entries, entry)
	r.pending++

	if r.pending >= flushThreshold {
		r.Flush()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Flush writes the buffered entries in one database transaction. A failure
// to write panics, as the recording would be incomplete.
func (r *sqliteRecorder) Flush() {
	if r.pending == 0 {
		return
	}

	err := r.flush()
	if err != nil {
		panic(errors.Wrap(err, "cannot write recording"))
	}

	r.pending = 0
}

func (r *sqliteRecorder) flush() error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	for _, name := range r.ListTables() {
		t := r.tables[name]
		if len(t.entries) == 0 {
			continue
		}

		err = insertAll(tx, name, t)
		if err != nil {
			_ = tx.Rollback()
			return err
		}

		t.entries = nil
	}

	return tx.Commit()
}

func insertAll(tx *sql.Tx, name string, t *pendingTable) error {
	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", len(t.columns)), ", ")

	stmt, err := tx.Prepare("INSERT INTO " + name +
		" (" + strings.Join(t.columns, ", ") + ") VALUES (" + placeholders + ")")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range t.entries {
		_, err = stmt.Exec(structs.Values(e)...)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *sqliteRecorder) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true

	if r.runInfo != nil {
		r.runInfo.finish()
	}

	r.Flush()

	return r.db.Close()
}
