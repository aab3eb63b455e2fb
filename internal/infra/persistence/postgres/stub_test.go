package postgres_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// stubConn fakes enough of database/sql/driver to exercise the store without
// a live server. Reads return an empty state table; writes succeed unless
// failWrites is set.
type stubConn struct {
	mu         sync.Mutex
	failWrites bool
}

func (c *stubConn) setFailWrites(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWrites = v
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub: prepare not supported")
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return stubTx{}, nil
}

func (c *stubConn) Ping(context.Context) error { return nil }

func (c *stubConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites && strings.HasPrefix(query, "INSERT") {
		return nil, errors.New("stub: write refused")
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return &stubRows{cols: []string{"bucket", "payload"}}, nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
}

func (r *stubRows) Columns() []string        { return r.cols }
func (r *stubRows) Close() error             { return nil }
func (r *stubRows) Next([]driver.Value) error { return io.EOF }

type stubDriver struct {
	conn *stubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// newStubDB registers a uniquely named stub driver and returns a database
// handle backed by it together with the shared connection for flipping
// failure modes.
func newStubDB() (*sql.DB, *stubConn, error) {
	conn := &stubConn{}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	return db, conn, err
}
