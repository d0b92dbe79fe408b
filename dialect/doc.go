// Package dialect abstracts the differences between the supported
// database backends.
//
// An Adapter is a stateless strategy value for one dialect. It maps
// column types, quotes identifiers, rebinds placeholders, encodes and
// decodes uuid and datetime values, and renders the CREATE TABLE, upsert
// and delete statements used by repositories:
//
//	a, err := dialect.Get(dialect.Postgres)
//	if err != nil {
//	    return err
//	}
//	for _, stmt := range dialect.CreateTables(a, tables) {
//	    fmt.Println(stmt)
//	}
//
// Connection is the interface repositories use to run statements. The
// database/sql implementation lives in dialect/sql.
//
// The following dialects are supported:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
package dialect
