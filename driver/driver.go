package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/nao1215/sheetsql"
	"github.com/nao1215/sheetsql/domain/model"
)

// DriverName is the name the driver registers with database/sql
const DriverName = "sheetsql"

func init() {
	sql.Register(DriverName, NewDriver())
}

// Driver implements database/sql/driver.Driver interface.
type Driver struct{}

// Connector implements database/sql/driver.Connector interface. It owns the
// engine shared by its connections.
type Connector struct {
	driver *Driver
	dsn    DSN
	// engine, when set before the first Connect, is used instead of one
	// built from the DSN and is not closed by the connector
	engine *sheetsql.Engine
	shared bool

	once    sync.Once
	openErr error
}

// Connection implements database/sql/driver.Conn interface. It is one
// engine session.
type Connection struct {
	engine   *sheetsql.Engine
	session  *sheetsql.Session
	useCache bool
	// owned engines are closed with the connection
	owned  bool
	closed atomic.Bool
}

// Stmt implements database/sql/driver.Stmt interface. Statements are parsed
// when executed, after their arguments are bound.
type Stmt struct {
	conn  *Connection
	query string
}

// Result implements database/sql/driver.Result interface
type Result struct {
	affected int64
}

// Rows implements database/sql/driver.Rows interface over a buffered result
type Rows struct {
	result *model.QueryResult
	labels []string
	pos    int
}

// NewDriver creates a new sheetsql driver
func NewDriver() *Driver {
	return &Driver{}
}

// NewConnector creates a connector over an existing engine. The engine is
// not closed when the connector is.
func NewConnector(engine *sheetsql.Engine, dsn DSN) *Connector {
	return &Connector{driver: NewDriver(), dsn: dsn, engine: engine, shared: true}
}

// Open implements driver.Driver interface. The connection owns its engine.
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	c, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := c.Connect(context.Background())
	if err != nil {
		_ = c.(*Connector).Close()
		return nil, err
	}
	sc, _ := conn.(*Connection)
	sc.owned = true
	return sc, nil
}

// OpenConnector implements driver.DriverContext interface
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	parsed, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return &Connector{driver: d, dsn: parsed}, nil
}

// Connect implements driver.Connector interface
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	c.once.Do(func() {
		if c.engine != nil {
			return
		}
		cfg, err := c.dsn.Config()
		if err != nil {
			c.openErr = err
			return
		}
		if c.engine, err = sheetsql.New(cfg); err != nil {
			c.openErr = fmt.Errorf("failed to create engine: %w", err)
		}
	})
	if c.openErr != nil {
		return nil, c.openErr
	}

	conn := &Connection{engine: c.engine, session: c.engine.NewSession(), useCache: c.dsn.UseCache}
	if c.dsn.Workbook != "" {
		res := c.engine.Query(ctx, conn.session, "USE "+c.dsn.Workbook, sheetsql.ExecOptions{})
		if err := sheetsql.ResultError(res); err != nil {
			return nil, err
		}
	}
	return conn, nil
}

// Driver implements driver.Connector interface
func (c *Connector) Driver() driver.Driver {
	return c.driver
}

// Close releases the engine built by the connector. database/sql calls it
// when the *sql.DB is closed.
func (c *Connector) Close() error {
	if c.shared || c.engine == nil {
		return nil
	}
	return c.engine.Close()
}

var _ io.Closer = (*Connector)(nil)

// Session returns the engine session of the connection
func (c *Connection) Session() *sheetsql.Session {
	return c.session
}

// Prepare implements driver.Conn interface
func (c *Connection) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext implements driver.ConnPrepareContext interface
func (c *Connection) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	if c.closed.Load() {
		return nil, driver.ErrBadConn
	}
	return &Stmt{conn: c, query: query}, nil
}

// Close implements driver.Conn interface
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.owned {
		return c.engine.Close()
	}
	return nil
}

// Begin implements driver.Conn interface. Every statement commits on its
// own, so transactions are refused.
func (c *Connection) Begin() (driver.Tx, error) {
	return nil, ErrBeginTxNotSupported
}

// BeginTx implements driver.ConnBeginTx interface
func (c *Connection) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return nil, ErrBeginTxNotSupported
}

// ExecContext implements driver.ExecerContext interface
func (c *Connection) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	res, err := c.run(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return &Result{affected: res.AffectedRows}, nil
}

// QueryContext implements driver.QueryerContext interface
func (c *Connection) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	res, err := c.run(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return newRows(res), nil
}

// run binds the arguments and executes the statement in the connection's
// session.
func (c *Connection) run(ctx context.Context, query string, args []driver.NamedValue) (*model.QueryResult, error) {
	if c.closed.Load() {
		return nil, ErrConnClosed
	}
	bound, err := bind(query, args)
	if err != nil {
		return nil, err
	}
	res := c.engine.Query(ctx, c.session, bound, sheetsql.ExecOptions{UseCache: c.useCache})
	if err := sheetsql.ResultError(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Close implements driver.Stmt interface
func (s *Stmt) Close() error {
	return nil
}

// NumInput implements driver.Stmt interface
func (s *Stmt) NumInput() int {
	return countPlaceholders(s.query)
}

// Exec implements driver.Stmt interface
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), named(args))
}

// ExecContext implements driver.StmtExecContext interface
func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.ExecContext(ctx, s.query, args)
}

// Query implements driver.Stmt interface
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), named(args))
}

// QueryContext implements driver.StmtQueryContext interface
func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.QueryContext(ctx, s.query, args)
}

func named(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}

// LastInsertId implements driver.Result interface. Sheets have no row ids.
func (r *Result) LastInsertId() (int64, error) {
	return 0, fmt.Errorf("%w: LastInsertId", ErrUnsupportedArgument)
}

// RowsAffected implements driver.Result interface
func (r *Result) RowsAffected() (int64, error) {
	return r.affected, nil
}

func newRows(res *model.QueryResult) *Rows {
	return &Rows{result: res, labels: res.Labels()}
}

// Columns implements driver.Rows interface
func (r *Rows) Columns() []string {
	return r.labels
}

// Close implements driver.Rows interface
func (r *Rows) Close() error {
	r.pos = len(r.result.Rows)
	return nil
}

// Next implements driver.Rows interface
func (r *Rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.result.Rows) {
		return io.EOF
	}
	row := r.result.Rows[r.pos]
	r.pos++
	for i, label := range r.labels {
		if i >= len(dest) {
			break
		}
		dest[i] = driverValue(row[label])
	}
	return nil
}

// ColumnTypeDatabaseTypeName implements driver.RowsColumnTypeDatabaseTypeName interface
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.result.Columns[index].Type.String()
}

// ColumnTypeNullable implements driver.RowsColumnTypeNullable interface
func (r *Rows) ColumnTypeNullable(int) (nullable, ok bool) {
	return true, true
}

// driverValue converts a cell to one of the types database/sql accepts
func driverValue(v any) driver.Value {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

var (
	_ driver.DriverContext                  = (*Driver)(nil)
	_ driver.Connector                      = (*Connector)(nil)
	_ driver.Conn                           = (*Connection)(nil)
	_ driver.ConnPrepareContext             = (*Connection)(nil)
	_ driver.ConnBeginTx                    = (*Connection)(nil)
	_ driver.ExecerContext                  = (*Connection)(nil)
	_ driver.QueryerContext                 = (*Connection)(nil)
	_ driver.StmtExecContext                = (*Stmt)(nil)
	_ driver.StmtQueryContext               = (*Stmt)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*Rows)(nil)
	_ driver.RowsColumnTypeNullable         = (*Rows)(nil)
)
