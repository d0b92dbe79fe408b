// Package aggregate maps aggregate-oriented domain models onto relational
// tables.
//
// Types are described by schema.TypeDescriptor values, usually read from
// descriptor files with compiler/load. Building an aggregate root with
// compiler/gen classifies every reachable type and derives its tables:
// entities get a table with an "id" primary key, value objects are
// flattened into the columns of their owner, and collections of
// primitives or value objects get a dedicated child table.
//
//	reg, err := load.Load("types")
//	if err != nil {
//		return err
//	}
//	root, _ := reg.Resolve("Order")
//	agg, err := gen.Build(reg, root)
//	if err != nil {
//		return err
//	}
//	drv, err := sql.Open("sqlite", "file:shop.db")
//	if err != nil {
//		return err
//	}
//	repo, err := repository.New(drv, agg)
//	if err != nil {
//		return err
//	}
//	order, err := repo.GetByID(ctx, id)
//
// A repository loads a whole aggregate with one joined query, and saves or
// deletes all of its rows in one transaction. The errors of this package
// classify the failures of all layers.
package aggregate
