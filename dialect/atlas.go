package dialect

import (
	"context"
	"fmt"

	"ariga.io/atlas/sql/migrate"

	"github.com/syssam/aggregate/dialect/sql/schema"
)

// plan converts the tables into Atlas changes and plans them without a
// database connection.
func plan(ctx context.Context, pa migrate.PlanApplier, a Adapter, tables []*schema.Table) ([]string, error) {
	s := schema.ToAtlas("", tables, a.AtlasType)
	p, err := pa.PlanChanges(ctx, "create_tables", schema.AddTables(s))
	if err != nil {
		return nil, fmt.Errorf("dialect: plan %s tables: %w", a.Name(), err)
	}
	stmts := make([]string, 0, len(p.Changes))
	for _, c := range p.Changes {
		stmts = append(stmts, c.Cmd)
	}
	return stmts, nil
}
