// Package sql implements dialect.Connection on top of database/sql.
//
// A Driver rebinds "?" placeholders and encodes arguments with the
// dialect adapter, reads query results eagerly into dialect.Rows, and
// classifies native driver errors (lib/pq, pgconn, go-sql-driver/mysql,
// modernc sqlite) into *aggregate.Error values:
//
//	drv, err := sql.Open("sqlite", "file:app.db?_pragma=foreign_keys(1)")
//	if err != nil {
//	    return err
//	}
//	defer drv.Close()
//
// Transactions nest. Only the outermost Transaction call begins and
// commits; statements inside the callback must use its context:
//
//	err = drv.Transaction(ctx, func(ctx context.Context) error {
//	    _, err := drv.Exec(ctx, "DELETE FROM orders WHERE id = ?", id)
//	    return err
//	})
//
// # Statistics
//
// StatsDriver wraps a Driver with atomic counters, a slow-query hook and
// optional Prometheus collectors:
//
//	conn := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(logger),
//	    sql.WithMetrics(sql.NewMetrics(prometheus.DefaultRegisterer)),
//	)
package sql
