package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/syssam/aggregate/dialect"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing queries.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of queries exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of query errors.
	Errors atomic.Int64
	// Transactions is the count of outermost transactions.
	Transactions atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
		Transactions:  s.Transactions.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
	s.Transactions.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
	Transactions  int64
}

// AvgQueryDuration returns the average query duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d txs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.Transactions, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// Metrics holds the Prometheus collectors of a StatsDriver.
type Metrics struct {
	Statements *prometheus.CounterVec
	Errors     *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Slow       prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg registers with the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Statements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregate_sql_statements_total",
				Help: "Total number of executed SQL statements",
			},
			[]string{"dialect", "kind"},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregate_sql_errors_total",
				Help: "Total number of failed SQL statements",
			},
			[]string{"dialect", "kind"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aggregate_sql_duration_seconds",
				Help:    "SQL statement execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"dialect", "kind"},
		),
		Slow: factory.NewCounter(prometheus.CounterOpts{
			Name: "aggregate_sql_slow_statements_total",
			Help: "Total number of statements exceeding the slow threshold",
		}),
	}
}

// SlowQueryHook is a function called when a slow query is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver wraps a Driver with query statistics collection.
type StatsDriver struct {
	*Driver
	stats         *QueryStats
	metrics       *Metrics
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow query detection.
// Queries taking longer than this duration will be counted as slow queries.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow queries.
// The hook is called whenever a query exceeds the slow threshold.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow queries to the given logger, or the
// default logger if nil.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	if logger == nil {
		logger = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		logger.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", len(args))
	})
}

// WithMetrics records statements in the Prometheus collectors.
func WithMetrics(m *Metrics) StatsOption {
	return func(s *StatsDriver) {
		s.metrics = m
	}
}

// NewStatsDriver wraps a Driver with statistics collection.
//
// Example:
//
//	drv, _ := sql.Open("postgres", dsn)
//	conn := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(nil),
//	)
//	repo, _ := repository.New(conn, agg)
//
//	// Later, check statistics:
//	fmt.Println(conn.QueryStats().Stats())
func NewStatsDriver(drv *Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow query threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow query threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// Query executes a query and records statistics.
func (d *StatsDriver) Query(ctx context.Context, query string, args ...any) (*dialect.Rows, error) {
	start := time.Now()
	rows, err := d.Driver.Query(ctx, query, args...)
	d.record(ctx, query, args, start, err, true)
	return rows, err
}

// Exec executes a statement and records statistics.
func (d *StatsDriver) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	start := time.Now()
	n, err := d.Driver.Exec(ctx, query, args...)
	d.record(ctx, query, args, start, err, false)
	return n, err
}

// Transaction runs fn in a transaction and counts outermost transactions.
func (d *StatsDriver) Transaction(ctx context.Context, fn func(context.Context) error) error {
	if d.TxDepth(ctx) == 0 {
		d.stats.Transactions.Add(1)
	}
	return d.Driver.Transaction(ctx, fn)
}

func (d *StatsDriver) record(ctx context.Context, query string, args []any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	kind := "exec"
	if isQuery {
		kind = "query"
		d.stats.TotalQueries.Add(1)
	} else {
		d.stats.TotalExecs.Add(1)
	}
	d.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		d.stats.Errors.Add(1)
	}
	if m := d.metrics; m != nil {
		m.Statements.WithLabelValues(d.dialect, kind).Inc()
		m.Duration.WithLabelValues(d.dialect, kind).Observe(duration.Seconds())
		if err != nil {
			m.Errors.WithLabelValues(d.dialect, kind).Inc()
		}
	}

	d.mu.RLock()
	threshold := d.slowThreshold
	hook := d.slowHook
	d.mu.RUnlock()

	if duration > threshold {
		d.stats.SlowQueries.Add(1)
		if d.metrics != nil {
			d.metrics.Slow.Inc()
		}
		if hook != nil {
			hook(ctx, query, args, duration)
		}
	}
}

// DebugDriver wraps a Driver with debug logging of every statement.
type DebugDriver struct {
	dialect.Connection
	logger *slog.Logger
}

// NewDebugDriver wraps a connection with debug logging. A nil logger
// logs to the default logger.
func NewDebugDriver(conn dialect.Connection, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Connection: conn, logger: logger}
}

// Query logs and executes a query.
func (d *DebugDriver) Query(ctx context.Context, query string, args ...any) (*dialect.Rows, error) {
	d.logger.DebugContext(ctx, "query", "sql", query, "args", args)
	return d.Connection.Query(ctx, query, args...)
}

// Exec logs and executes a statement.
func (d *DebugDriver) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	d.logger.DebugContext(ctx, "exec", "sql", query, "args", args)
	return d.Connection.Exec(ctx, query, args...)
}

// Transaction logs the transaction boundaries.
func (d *DebugDriver) Transaction(ctx context.Context, fn func(context.Context) error) error {
	d.logger.DebugContext(ctx, "begin transaction")
	err := d.Connection.Transaction(ctx, fn)
	if err != nil {
		d.logger.DebugContext(ctx, "transaction rolled back", "error", err)
		return err
	}
	d.logger.DebugContext(ctx, "transaction committed")
	return nil
}

// Ensure interfaces are implemented.
var (
	_ dialect.Connection = (*StatsDriver)(nil)
	_ dialect.Connection = (*DebugDriver)(nil)
)

// OpenWithStats opens a database connection with statistics collection enabled.
func OpenWithStats(driverName, source string, opts ...StatsOption) (*StatsDriver, *QueryStats, error) {
	drv, err := Open(driverName, source)
	if err != nil {
		return nil, nil, err
	}
	statsDriver := NewStatsDriver(drv, opts...)
	return statsDriver, statsDriver.QueryStats(), nil
}
