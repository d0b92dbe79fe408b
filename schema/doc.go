// Package schema holds the descriptor model of a domain object graph: the
// types reachable from an aggregate root, their fields and collections.
//
// Descriptors are produced by an external scanner (or loaded from a
// descriptor file, see compiler/load) and are index-addressable: fields refer
// to other types by name and names are resolved through a [Resolver], never
// through live reflective handles.
//
// # Quick Start
//
//	reg, err := schema.NewRegistry(
//	    schema.AggregateRoot("Order",
//	        schema.Field("totalAmount", "Money"),
//	        schema.Field("items", "List<OrderItem>"),
//	    ),
//	    schema.Value("Money",
//	        schema.Field("amount", "double"),
//	        schema.Field("currency", "string"),
//	    ),
//	    schema.Entity("OrderItem",
//	        schema.Field("sku", "string"),
//	        schema.Field("quantity", "int"),
//	    ),
//	)
//
// A trailing "?" marks a field nullable:
//
//	schema.Field("note", "string?")
//
// # Kinds
//
// Every descriptor is classified into one of four kinds by compiler/gen:
//
//   - AggregateRoot: consistency boundary, addressable by a repository
//   - Entity: identity-bearing object owned by an aggregate
//   - Value: identity-less object, always embedded in its owner's row
//   - Primitive: string, integer, float, boolean, datetime, uuid
package schema
