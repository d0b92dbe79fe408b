package gen

import (
	"context"

	"golang.org/x/sync/errgroup"

	sqlschema "github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/schema"
)

// Graph is the built schema of several aggregates. It is immutable and
// safe for concurrent use once built.
type Graph struct {
	// Aggregates in root order.
	Aggregates []*Aggregate
	// Tables of all aggregates, in aggregate order.
	Tables []*sqlschema.Table
}

// Aggregate returns the built aggregate of the named root.
func (g *Graph) Aggregate(root string) (*Aggregate, bool) {
	for _, a := range g.Aggregates {
		if a.Root.Name == root {
			return a, true
		}
	}
	return nil, false
}

// SortedTables returns all tables with referenced tables first.
func (g *Graph) SortedTables() []*sqlschema.Table {
	return sqlschema.Sort(g.Tables)
}

// BuildAll builds the aggregates of the given roots concurrently. Roots
// default to every aggregate root of the registry.
func BuildAll(ctx context.Context, reg *schema.Registry, roots []string, opts ...Option) (*Graph, error) {
	if len(roots) == 0 {
		roots = reg.Roots()
	}
	if _, err := NewConfig(opts...); err != nil {
		return nil, err
	}
	aggs := make([]*Aggregate, len(roots))
	eg, ctx := errgroup.WithContext(ctx)
	for i, name := range roots {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			root, ok := reg.Resolve(name)
			if !ok {
				return unsupported(name, "", ReasonUnresolvedType, "unknown aggregate root")
			}
			a, err := Build(reg, root, opts...)
			if err != nil {
				return err
			}
			aggs[i] = a
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return Merge(aggs...)
}

// Merge combines built aggregates into one graph. An entity type may
// belong to one aggregate only, and table names must be unique.
func Merge(aggs ...*Aggregate) (*Graph, error) {
	var (
		g     = &Graph{}
		owner = make(map[string]string)
	)
	for _, a := range aggs {
		for _, t := range a.Types {
			if t.Kind != schema.KindEntity {
				continue
			}
			if prev, ok := owner[t.Name]; ok && prev != a.Root.Name {
				return nil, unsupported(t.Name, "", ReasonSharedEntity, "owned by %s and %s", prev, a.Root.Name)
			}
			owner[t.Name] = a.Root.Name
		}
		g.Aggregates = append(g.Aggregates, a)
		g.Tables = append(g.Tables, a.Tables...)
	}
	if r := sqlschema.ValidateSchema(g.Tables); r.HasErrors() {
		return nil, &SchemaError{Message: "conflicting aggregates", Cause: r.Err()}
	}
	return g, nil
}
