package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/pkg/config"
)

var (
	// ErrNotConnected is returned while the pool has not been created yet.
	ErrNotConnected = errors.New("database: connection pool is not initialized")
	// ErrClosed is returned once the pool has been shut down.
	ErrClosed = errors.New("database: connection pool is closed")
	// ErrPoolExhausted is returned when every connection is busy and waiting is disabled.
	ErrPoolExhausted = errors.New("database: no free connection available")
	// ErrQueueFull is returned when the acquisition queue limit has been reached.
	ErrQueueFull = errors.New("database: connection queue limit reached")
)

// State describes the lifecycle of the pool.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateConnected     State = "connected"
	StateReady         State = "ready"
	StateUnhealthy     State = "unhealthy"
	StateClosed        State = "closed"
)

// Opener builds the underlying connection pool.
type Opener func(cfg config.DatabaseConfig) (*sqlx.DB, error)

// Option customises a Manager.
type Option func(*Manager)

// WithOpener replaces the driver-specific pool constructor.
func WithOpener(open Opener) Option {
	return func(m *Manager) {
		if open != nil {
			m.open = open
		}
	}
}

// Manager owns the process-wide connection pool. It is created by the
// application root and handed to every repository that needs the database.
type Manager struct {
	cfg     config.DatabaseConfig
	logger  *zap.Logger
	open    Opener
	dialect Dialect

	mu    sync.RWMutex
	db    *sqlx.DB
	gate  *gate
	state State
}

// NewManager constructs an unconnected pool manager.
func NewManager(cfg config.DatabaseConfig, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:     cfg,
		logger:  logger,
		open:    Open,
		dialect: DialectFor(cfg.Driver),
		state:   StateUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect creates the pool once. Later calls return the existing pool.
func (m *Manager) Connect(ctx context.Context) (*sqlx.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateClosed:
		return nil, ErrClosed
	case StateUninitialized:
	default:
		return m.db, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := m.open(m.cfg)
	if err != nil {
		m.logger.Error("database connection failed", zap.String("driver", m.cfg.Driver), zap.Error(err))
		return nil, fmt.Errorf("open %s pool: %w", m.cfg.Driver, err)
	}

	db.SetMaxOpenConns(m.cfg.ConnectionLimit)
	db.SetMaxIdleConns(m.cfg.MaxIdle)
	if m.cfg.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(m.cfg.IdleTimeout)
	}
	db.SetConnMaxLifetime(1 * time.Hour)

	m.db = db
	m.gate = newGate(m.cfg.ConnectionLimit, m.cfg.QueueLimit, m.cfg.WaitForConnections)
	m.state = StateConnected

	m.logger.Info("connected to database",
		zap.String("driver", m.cfg.Driver),
		zap.String("host", m.cfg.Host),
		zap.String("database", m.cfg.Name),
		zap.Int("connection_limit", m.cfg.ConnectionLimit),
		zap.Int("queue_limit", m.cfg.QueueLimit),
	)
	return db, nil
}

// Pool returns the shared pool or ErrNotConnected. It never connects lazily.
func (m *Manager) Pool() (*sqlx.DB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch m.state {
	case StateUninitialized:
		return nil, ErrNotConnected
	case StateClosed:
		return nil, ErrClosed
	}
	return m.db, nil
}

// Acquire admits the caller to the pool for a single statement. The returned
// release func must be called once the statement has completed.
func (m *Manager) Acquire(ctx context.Context) (*sqlx.DB, func(), error) {
	m.mu.RLock()
	db, g, state := m.db, m.gate, m.state
	m.mu.RUnlock()

	switch state {
	case StateUninitialized:
		return nil, nil, ErrNotConnected
	case StateClosed:
		return nil, nil, ErrClosed
	}

	release, err := g.enter(ctx)
	if err != nil {
		return nil, nil, err
	}
	return db, release, nil
}

// TestConnection borrows one connection, runs a trivial query and returns it.
// Failures are logged and reported as false.
func (m *Manager) TestConnection(ctx context.Context) bool {
	db, release, err := m.Acquire(ctx)
	if err != nil {
		m.logger.Error("test connection failed", zap.Error(err))
		m.markHealth(false)
		return false
	}
	defer release()

	m.logger.Debug("testing database connection")
	conn, err := db.Connx(ctx)
	if err != nil {
		m.logger.Error("test connection failed", zap.Error(err))
		m.markHealth(false)
		return false
	}
	defer conn.Close()

	var one int
	if err := conn.QueryRowxContext(ctx, "SELECT 1").Scan(&one); err != nil {
		m.logger.Error("test connection failed", zap.Error(err))
		m.markHealth(false)
		return false
	}

	m.logger.Debug("database test successful")
	m.markHealth(true)
	return true
}

func (m *Manager) markHealth(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateUninitialized || m.state == StateClosed {
		return
	}
	if ok {
		m.state = StateReady
	} else {
		m.state = StateUnhealthy
	}
}

// State reports the lifecycle state of the pool.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Dialect returns the SQL dialect of the configured driver.
func (m *Manager) Dialect() Dialect {
	return m.dialect
}

// Stats returns the pool statistics, or zero values before Connect.
func (m *Manager) Stats() sql.DBStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.db == nil {
		return sql.DBStats{}
	}
	return m.db.Stats()
}

// Waiting reports how many callers are queued for a connection.
func (m *Manager) Waiting() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.gate == nil {
		return 0
	}
	return m.gate.waiting.Load()
}

// Rejected reports how many acquisitions failed because of pool or queue limits.
func (m *Manager) Rejected() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.gate == nil {
		return 0
	}
	return m.gate.rejected.Load()
}

// Close shuts the pool down. The manager cannot be reconnected afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state
	m.state = StateClosed
	if prev == StateUninitialized || prev == StateClosed || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Open builds a pool for the configured driver without contacting the server.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(cfg)
	case config.DriverMySQL, "":
		return openMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openMySQL(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	connector, err := mysql.NewConnector(mysqlConfig(cfg))
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(sql.OpenDB(connector), config.DriverMySQL), nil
}

// mysqlConfig builds the driver config. ClientFoundRows makes UPDATE report
// matched rather than changed rows, so rewriting identical values still
// counts as a hit.
func mysqlConfig(cfg config.DatabaseConfig) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = registerMySQLDialer(cfg)
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.ClientFoundRows = true
	return mc
}

func openPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	if cfg.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": []string{cfg.SSLMode}}.Encode()
	}

	connector, err := pq.NewConnector(dsn.String())
	if err != nil {
		return nil, err
	}
	connector.Dialer(keepAliveDialer{dialer: newDialer(cfg)})
	return sqlx.NewDb(sql.OpenDB(connector), config.DriverPostgres), nil
}

// newDialer maps the keep-alive settings onto net.Dialer. A zero initial
// delay keeps the Go default probe interval.
func newDialer(cfg config.DatabaseConfig) net.Dialer {
	d := net.Dialer{Timeout: 10 * time.Second, KeepAlive: -1}
	if cfg.EnableKeepAlive {
		d.KeepAlive = cfg.KeepAliveInitialDelay
	}
	return d
}

func registerMySQLDialer(cfg config.DatabaseConfig) string {
	d := newDialer(cfg)
	name := "tcp-nokeepalive"
	if cfg.EnableKeepAlive {
		name = fmt.Sprintf("tcp-keepalive-%d", cfg.KeepAliveInitialDelay.Milliseconds())
	}
	mysql.RegisterDialContext(name, func(ctx context.Context, addr string) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	})
	return name
}

type keepAliveDialer struct {
	dialer net.Dialer
}

func (k keepAliveDialer) Dial(network, address string) (net.Conn, error) {
	return k.dialer.Dial(network, address)
}

func (k keepAliveDialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	d := k.dialer
	d.Timeout = timeout
	return d.Dial(network, address)
}

func (k keepAliveDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return k.dialer.DialContext(ctx, network, address)
}
