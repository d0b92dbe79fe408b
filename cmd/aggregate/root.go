package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syssam/aggregate/compiler/gen"
	"github.com/syssam/aggregate/compiler/load"
	"github.com/syssam/aggregate/config"
	"github.com/syssam/aggregate/dialect"
)

// app holds the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	adapter dialect.Adapter
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	var cfgFile string
	root := &cobra.Command{
		Use:          "aggregate",
		Short:        "build the relational schema of aggregate descriptors",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v, cfgFile)
			if err != nil {
				return err
			}
			level, err := cfg.Level()
			if err != nil {
				return err
			}
			if a.adapter, err = cfg.Adapter(); err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: aggregate.yaml)")
	flags.String("dialect", "", "database dialect: sqlite, mysql or postgres")
	flags.StringSlice("descriptors", nil, "descriptor files or directories")
	flags.StringSlice("roots", nil, "aggregate roots to build (default: all)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	for key, name := range map[string]string{
		"dialect":     "dialect",
		"descriptors": "descriptors",
		"roots":       "roots",
		"log_level":   "log-level",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	root.AddCommand(
		a.ddlCmd(),
		a.queryCmd(),
		a.generateCmd(),
		a.snapshotCmd(),
		a.atlasCmd(),
		a.createCmd(),
	)
	return root
}

// graph loads the configured descriptors and builds the schema of the
// configured roots.
func (a *app) graph(ctx context.Context) (*gen.Graph, error) {
	reg, err := load.Load(a.cfg.Descriptors...)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, reg.Len())
	for _, t := range reg.Types() {
		names = append(names, t.Name)
	}
	g, err := gen.BuildAll(ctx, reg, a.cfg.Roots,
		gen.WithSQLTypes(a.adapter.SQLType),
		gen.WithTables(a.cfg.TableOverrides(names)),
	)
	if err != nil {
		return nil, err
	}
	a.logger.DebugContext(ctx, "schema built", "aggregates", len(g.Aggregates), "tables", len(g.Tables))
	return g, nil
}

// printStatements writes the statements to the command output, one per line.
func printStatements(cmd *cobra.Command, stmts []string) error {
	for _, s := range stmts {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", s); err != nil {
			return err
		}
	}
	return nil
}
