// Package gen builds the relational schema of aggregate roots and
// generates Go code from it.
//
// # Architecture
//
// The build pipeline follows this flow:
//
//	Type descriptors (schema.Registry, see compiler/load)
//	        ↓
//	   Classifier (kind of every reachable type)
//	        ↓
//	   Aggregate (tables, columns, foreign keys and mapping plans)
//	        ↓
//	   Graph (several aggregates, built concurrently)
//	        ↓
//	   Generated code, DDL and snapshots
//
// # Key Types
//
//   - Classifier: resolves field references and classifies types as
//     Primitive, Value, Entity or AggregateRoot
//   - Aggregate: the tables of one root with the Plan of every type
//   - Plan: how the fields of a type bind to columns and tables
//   - Graph: built aggregates with their tables in root order
//   - Config: naming overrides and code generation settings
//
// # Table Layout
//
//	Entity / AggregateRoot  => own table, "id" primary key
//	Value field             => columns flattened into the owner, "name_" prefix
//	Entity field            => "name_id" foreign key, cascading
//	AggregateRoot field     => "name_id" column without foreign key
//	List/Set/Map of entity  => "owner_id" and "path_ordinal" on the entity table
//	List/Set/Map of values  => dedicated table keyed by owner and ordinal or map key
//
// # Error Handling
//
// The package uses structured error types:
//
//   - UnsupportedGraphError: the type graph cannot be mapped
//   - SchemaError: the built tables are inconsistent
//   - ConfigError: an option has an invalid value
//   - GenerationError: code could not be rendered or written
//
// Example error handling:
//
//	a, err := gen.Build(reg, root)
//	if gen.IsUnsupportedGraph(err) {
//	    var ue *gen.UnsupportedGraphError
//	    errors.As(err, &ue)
//	    fmt.Printf("%s.%s: %s\n", ue.Type, ue.Field, ue.Reason)
//	}
//
// # Code Generation
//
//	g, err := gen.BuildAll(ctx, reg, nil, gen.WithSQLTypes(adapter.SQLType))
//	if err != nil {
//	    return err
//	}
//	path, err := gen.WriteFile(g,
//	    gen.WithTarget("./tables"),
//	    gen.WithPackage("tables"),
//	    gen.WithDDL(dialect.CreateTables(adapter, g.Tables)...),
//	)
//
// The generated file declares the name of every table and column as
// constants, e.g. OrdersTable and OrderTagsColumnValue.
package gen
