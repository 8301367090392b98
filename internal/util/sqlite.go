package util

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const sqliteDriverName = "kugl_sqlite3"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// now() must not be pure; the clock moves between calls.
			if err := conn.RegisterFunc("now", func() int64 { return NowSecs() }, false); err != nil {
				return err
			}
			if err := conn.RegisterFunc("to_size", func(n int64) string { return ToSize(n) }, true); err != nil {
				return err
			}
			if err := conn.RegisterFunc("to_age", func(secs int64) string { return ToAge(secs) }, true); err != nil {
				return err
			}
			return conn.RegisterFunc("to_utc", func(epoch int64) string { return ToUTC(epoch) }, true)
		},
	})
}

// SqliteDb wraps an in-memory SQLite database pinned to a single
// connection, so attached databases and created tables stay visible
// across statements.
type SqliteDb struct {
	db   *sql.DB
	conn *sql.Conn
}

// NewSqliteDb opens a fresh in-memory database with the kugl scalar
// functions installed.
func NewSqliteDb() (*SqliteDb, error) {
	db, err := sql.Open(sqliteDriverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	conn, err := db.Conn(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: connect: %w", err)
	}
	return &SqliteDb{db: db, conn: conn}, nil
}

// Attach adds an in-memory logical database under the given schema name.
func (d *SqliteDb) Attach(schema string) error {
	stmt := fmt.Sprintf(`ATTACH DATABASE ':memory:' AS "%s"`, schema)
	if _, err := d.conn.ExecContext(context.Background(), stmt); err != nil {
		return &SqlError{Err: err}
	}
	Debug("sqlite", "attached database %s", schema)
	return nil
}

// Execute runs one statement with optional parameters.
func (d *SqliteDb) Execute(stmt string, args ...any) error {
	Debug("sqlite", "execute: %s", stmt)
	if _, err := d.conn.ExecContext(context.Background(), stmt, args...); err != nil {
		return &SqlError{Err: err}
	}
	return nil
}

// Query runs a select and returns column names plus all rows. Byte
// slices are converted to strings so callers see plain Go values.
func (d *SqliteDb) Query(stmt string) ([]string, [][]any, error) {
	Debug("sqlite", "query: %s", strings.TrimSpace(stmt))
	rows, err := d.conn.QueryContext(context.Background(), stmt)
	if err != nil {
		return nil, nil, &SqlError{Err: err}
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, &SqlError{Err: err}
	}
	var result [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, nil, &SqlError{Err: err}
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &SqlError{Err: err}
	}
	return columns, result, nil
}

// Close releases the pinned connection and the database.
func (d *SqliteDb) Close() error {
	if err := d.conn.Close(); err != nil {
		_ = d.db.Close()
		return err
	}
	return d.db.Close()
}
