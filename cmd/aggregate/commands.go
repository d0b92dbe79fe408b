package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/syssam/aggregate/compiler/gen"
	"github.com/syssam/aggregate/dialect"
	dsql "github.com/syssam/aggregate/dialect/sql"
	"github.com/syssam/aggregate/dialect/sql/sqlgraph"
)

func (a *app) ddlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ddl",
		Short: "print the CREATE TABLE statements of the configured roots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.graph(cmd.Context())
			if err != nil {
				return err
			}
			return printStatements(cmd, dialect.CreateTables(a.adapter, g.Tables))
		},
	}
}

func (a *app) queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <Root>",
		Short: "print the query loading a whole aggregate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.graph(cmd.Context())
			if err != nil {
				return err
			}
			agg, ok := g.Aggregate(args[0])
			if !ok {
				return fmt.Errorf("aggregate: unknown root %q", args[0])
			}
			q := sqlgraph.BuildLoadQuery(agg.Table, agg.Tables, a.adapter)
			out := cmd.OutOrStdout()
			for _, e := range q.Cut {
				fmt.Fprintf(out, "-- loaded by follow-up queries: %s\n", e)
			}
			_, err = fmt.Fprintln(out, q.SQL+";")
			return err
		},
	}
}

func (a *app) generateCmd() *cobra.Command {
	var watching bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "generate the Go file holding table and column names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.generate(ctx, cmd); err != nil {
				if !watching {
					return err
				}
				a.logger.ErrorContext(ctx, "generate failed", "error", err)
			}
			if !watching {
				return nil
			}
			return watch(ctx, a.logger, a.cfg.Descriptors, func() error {
				return a.generate(ctx, cmd)
			})
		},
	}
	cmd.Flags().BoolVarP(&watching, "watch", "w", false, "regenerate when descriptor files change")
	cmd.Flags().StringP("output", "o", "", "output directory")
	cmd.Flags().String("package", "", "name of the generated package")
	return cmd
}

func (a *app) generate(ctx context.Context, cmd *cobra.Command) error {
	g, err := a.graph(ctx)
	if err != nil {
		return err
	}
	target, pkg := a.cfg.Output, a.cfg.Package
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		target = v
	}
	if v, _ := cmd.Flags().GetString("package"); v != "" {
		pkg = v
	}
	path, err := gen.WriteFile(g,
		gen.WithTarget(target),
		gen.WithPackage(pkg),
		gen.WithHeader(fmt.Sprintf("Dialect: %s.", a.adapter.Name())),
		gen.WithDDL(dialect.CreateTables(a.adapter, g.Tables)...),
	)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "generated", "path", path, "tables", len(g.Tables))
	return nil
}

func (a *app) snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "write the msgpack snapshot of the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.graph(cmd.Context())
			if err != nil {
				return err
			}
			b, err := g.Snapshot()
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("file")
			if path == "" || path == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if err := os.WriteFile(path, b, 0o644); err != nil {
				return fmt.Errorf("aggregate: write snapshot: %w", err)
			}
			a.logger.InfoContext(cmd.Context(), "snapshot written", "path", path, "bytes", len(b))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "output file (default: stdout)")
	return cmd
}

func (a *app) atlasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "atlas",
		Short: "print the statements planned by Atlas for the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.graph(cmd.Context())
			if err != nil {
				return err
			}
			stmts, err := a.adapter.Plan(cmd.Context(), g.Tables)
			if err != nil {
				return err
			}
			return printStatements(cmd, stmts)
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "create the missing tables of the schema in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			if a.cfg.DSN == "" {
				return errors.New("aggregate: no dsn configured")
			}
			g, err := a.graph(ctx)
			if err != nil {
				return err
			}
			opts := []dsql.StatsOption{
				dsql.WithSlowThreshold(a.cfg.SlowQueryThreshold),
				dsql.WithSlowQueryLog(a.logger),
			}
			if path := a.cfg.MetricsFile; path != "" {
				reg := prometheus.NewRegistry()
				opts = append(opts, dsql.WithMetrics(dsql.NewMetrics(reg)))
				defer func() {
					if werr := prometheus.WriteToTextfile(path, reg); werr != nil {
						err = errors.Join(err, fmt.Errorf("aggregate: write metrics: %w", werr))
					}
				}()
			}
			conn, stats, err := dsql.OpenWithStats(driverName(a.adapter.Name()), a.cfg.DSN, opts...)
			if err != nil {
				return err
			}
			defer conn.Close()
			stmts := dialect.CreateTables(a.adapter, g.Tables)
			err = conn.Transaction(ctx, func(ctx context.Context) error {
				for _, s := range stmts {
					if _, err := conn.Exec(ctx, s); err != nil {
						return fmt.Errorf("aggregate: %s: %w", firstLine(s), err)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "tables created", "statements", len(stmts), "stats", stats.Stats().String())
			return nil
		},
	}
	cmd.Flags().String("metrics-file", "", "write SQL metrics to this file in the Prometheus text format")
	if err := a.v.BindPFlag("metrics_file", cmd.Flags().Lookup("metrics-file")); err != nil {
		panic(err)
	}
	return cmd
}

// driverName returns the database/sql driver registered for a dialect.
func driverName(d string) string {
	if d == dialect.Postgres {
		return "pgx"
	}
	return d
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
