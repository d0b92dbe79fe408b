package dialect

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	atlas "ariga.io/atlas/sql/schema"
	"github.com/google/uuid"

	"github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/schema/field"
)

// Adapter renders SQL and converts values for one database dialect.
// Adapters are stateless values and safe for concurrent use.
type Adapter interface {
	// Name returns the dialect name.
	Name() string
	// SQLType returns the column type used in CREATE TABLE statements.
	SQLType(c *schema.Column) string
	// AtlasType returns the Atlas type of the column.
	AtlasType(c *schema.Column) atlas.Type
	// Quote quotes an identifier.
	Quote(ident string) string
	// Rebind rewrites "?" placeholders into the dialect's placeholders.
	Rebind(query string) string

	EncodeUUID(id uuid.UUID) any
	DecodeUUID(v any) (uuid.UUID, error)
	EncodeTime(t time.Time) any
	DecodeTime(v any) (time.Time, error)
	// Encode converts a field value into a driver argument.
	Encode(v any) any
	// Decode converts a scanned driver value into the canonical Go value
	// of the field type.
	Decode(t field.Type, v any) (any, error)

	// CreateTable renders the CREATE TABLE statement of the table.
	CreateTable(t *schema.Table) string
	// AddForeignKey renders a statement adding the foreign key to an
	// existing table. It reports false if the dialect cannot alter
	// constraints of existing tables.
	AddForeignKey(t *schema.Table, fk *schema.ForeignKey) (string, bool)
	// Upsert renders an INSERT of the columns that updates the non-key
	// columns when a row with the same keys exists. Without keys, a plain
	// INSERT is rendered.
	Upsert(table string, columns, keys []string) string
	// Delete renders a DELETE matching all keys.
	Delete(table string, keys []string) string
	// Plan returns the Atlas-planned statements creating the tables.
	Plan(ctx context.Context, tables []*schema.Table) ([]string, error)
}

// CreateTables returns the statements creating the tables, referenced
// tables first. Foreign keys closing a reference cycle are added by
// separate statements where the dialect supports it.
func CreateTables(a Adapter, tables []*schema.Table) []string {
	var (
		stmts    []string
		deferred []string
		created  = make(map[string]bool, len(tables))
	)
	for _, t := range schema.Sort(tables) {
		cp := *t
		cp.ForeignKeys = nil
		for _, fk := range t.ForeignKeys {
			ref := fk.RefTable.Name
			if ref == t.Name || created[ref] {
				cp.ForeignKeys = append(cp.ForeignKeys, fk)
				continue
			}
			stmt, ok := a.AddForeignKey(t, fk)
			if !ok {
				cp.ForeignKeys = append(cp.ForeignKeys, fk)
				continue
			}
			deferred = append(deferred, stmt)
		}
		created[t.Name] = true
		stmts = append(stmts, a.CreateTable(&cp))
	}
	return append(stmts, deferred...)
}

// base holds the behavior shared by all dialects.
type base struct {
	name  string
	quote byte
}

func (b base) Name() string { return b.name }

func (b base) Quote(ident string) string {
	q := string(b.quote)
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

func (base) Rebind(query string) string { return query }

func (base) EncodeUUID(id uuid.UUID) any { return id.String() }

func (base) DecodeUUID(v any) (uuid.UUID, error) {
	id, err := field.Convert(field.TypeUUID, v)
	if err != nil {
		return uuid.Nil, err
	}
	return id.(uuid.UUID), nil
}

// EncodeTime returns t in UTC. MySQL DATETIME(6) and Postgres TIMESTAMPTZ
// keep microseconds, so finer digits are dropped here instead of by the
// database.
func (base) EncodeTime(t time.Time) any { return t.UTC().Truncate(time.Microsecond) }

// timeLayouts are the textual datetime formats returned by drivers.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func (base) DecodeTime(v any) (time.Time, error) {
	var s string
	switch v := v.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}, fmt.Errorf("dialect: cannot decode %T as datetime", v)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("dialect: invalid datetime %q", s)
}

func (b base) Delete(table string, keys []string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s", b.Quote(table), b.match(keys))
}

func (b base) match(keys []string) string {
	preds := make([]string, len(keys))
	for i, k := range keys {
		preds[i] = b.Quote(k) + " = ?"
	}
	return strings.Join(preds, " AND ")
}

func (b base) list(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = b.Quote(id)
	}
	return strings.Join(quoted, ", ")
}

func (b base) insert(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.Quote(table), b.list(columns), strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
}

// updates returns the non-key columns.
func updates(columns, keys []string) []string {
	var cols []string
	for _, c := range columns {
		if !contains(keys, c) {
			cols = append(cols, c)
		}
	}
	return cols
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// conflictUpsert renders the ON CONFLICT upsert of SQLite and Postgres.
func (b base) conflictUpsert(table string, columns, keys []string) string {
	stmt := b.insert(table, columns)
	if len(keys) == 0 {
		return stmt
	}
	set := updates(columns, keys)
	if len(set) == 0 {
		return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", stmt, b.list(keys))
	}
	assign := make([]string, len(set))
	for i, c := range set {
		assign[i] = fmt.Sprintf("%s = excluded.%s", b.Quote(c), b.Quote(c))
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", stmt, b.list(keys), strings.Join(assign, ", "))
}

func (b base) foreignKey(fk *schema.ForeignKey) string {
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s",
		b.Quote(fk.Column.Name), b.Quote(fk.RefTable.Name), b.Quote(fk.RefColumn.Name), fk.OnDelete)
}

func (b base) alterForeignKey(t *schema.Table, fk *schema.ForeignKey) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", b.Quote(t.Name), b.Quote(fk.Symbol), b.foreignKey(fk))
}

// createTable renders a CREATE TABLE statement with the column types of a.
func (b base) createTable(a Adapter, t *schema.Table) string {
	defs := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+1)
	for _, c := range t.Columns {
		typ := c.SQLType
		if typ == "" {
			typ = a.SQLType(c)
		}
		def := b.Quote(c.Name) + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", b.list(t.PrimaryKeyNames())))
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, b.foreignKey(fk))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", b.Quote(t.Name), strings.Join(defs, ", "))
}

// encode converts uuid and time values with the adapter encoders.
func encode(a Adapter, v any) any {
	switch v := v.(type) {
	case uuid.UUID:
		return a.EncodeUUID(v)
	case *uuid.UUID:
		if v == nil {
			return nil
		}
		return a.EncodeUUID(*v)
	case time.Time:
		return a.EncodeTime(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return a.EncodeTime(*v)
	}
	return v
}

// decode converts a scanned value. Drivers using the text protocol
// return numbers and booleans as bytes.
func decode(a Adapter, t field.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case field.TypeUUID:
		return a.DecodeUUID(v)
	case field.TypeTime:
		return a.DecodeTime(v)
	}
	var s string
	switch v := v.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return field.Convert(t, v)
	}
	switch t {
	case field.TypeInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("dialect: decode integer %q: %w", s, err)
		}
		return n, nil
	case field.TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("dialect: decode float %q: %w", s, err)
		}
		return f, nil
	case field.TypeBool:
		ok, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("dialect: decode boolean %q: %w", s, err)
		}
		return ok, nil
	}
	return field.Convert(t, s)
}

// isKey reports if the column takes part in a key or index.
func isKey(c *schema.Column) bool {
	return c.PrimaryKey || c.ForeignKey
}
