// Package schema holds the relational table model produced by the schema
// builder: tables, columns and foreign keys, together with structural
// validation, dependency ordering and an Atlas export.
package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/aggregate/schema/field"
)

// ReferenceOption for constraint actions.
type ReferenceOption string

// Reference options (actions) specified by ON DELETE clauses.
const (
	Cascade  ReferenceOption = "CASCADE"
	SetNull  ReferenceOption = "SET NULL"
	Restrict ReferenceOption = "RESTRICT"
)

// ConstName returns the constant name of a reference option. It's used by
// the code generator.
func (r ReferenceOption) ConstName() string {
	switch r {
	case SetNull:
		return "SetNull"
	case Restrict:
		return "Restrict"
	default:
		return "Cascade"
	}
}

// Table schema definition.
type Table struct {
	// Name of the table.
	Name string
	// Source is the class name the table was built from. For collection
	// tables, the owner class.
	Source string
	// Columns in declaration order.
	Columns     []*Column
	columns     map[string]*Column
	PrimaryKey  []*Column
	ForeignKeys []*ForeignKey
	// AggregateRoot marks the table of an aggregate root type.
	AggregateRoot bool
	// Collection marks a dedicated collection table.
	Collection bool
}

// NewTable returns a new table with the given name.
func NewTable(name string) *Table {
	return &Table{
		Name:    name,
		columns: make(map[string]*Column),
	}
}

// AddColumn adds a new column to the table.
func (t *Table) AddColumn(c *Column) *Table {
	if t.columns == nil {
		t.columns = make(map[string]*Column)
	}
	t.columns[c.Name] = c
	t.Columns = append(t.Columns, c)
	return t
}

// AddPrimary adds a new primary key to the table.
func (t *Table) AddPrimary(c *Column) *Table {
	c.PrimaryKey = true
	t.AddColumn(c)
	t.PrimaryKey = append(t.PrimaryKey, c)
	return t
}

// SetPrimaryKey marks existing columns as the composite primary key.
func (t *Table) SetPrimaryKey(names ...string) error {
	pk := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return fmt.Errorf("schema: primary key column %q not found in table %q", n, t.Name)
		}
		c.PrimaryKey = true
		pk = append(pk, c)
	}
	t.PrimaryKey = pk
	return nil
}

// AddForeignKey adds a foreign key to the table. The key column is
// flagged as a foreign key.
func (t *Table) AddForeignKey(fk *ForeignKey) *Table {
	fk.Column.ForeignKey = true
	if fk.Symbol == "" {
		fk.Symbol = fmt.Sprintf("%s_%s_%s", t.Name, fk.RefTable.Name, fk.Column.Name)
	}
	t.ForeignKeys = append(t.ForeignKeys, fk)
	return t
}

// HasColumn reports if the table contains a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Column returns the column with the given name, if it exists.
func (t *Table) Column(name string) (*Column, bool) {
	if c, ok := t.columns[name]; ok {
		return c, true
	}
	// In case the column was added directly to the Columns field.
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnNames returns the names of all columns in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKeyNames returns the names of the primary-key columns.
func (t *Table) PrimaryKeyNames() []string {
	names := make([]string, len(t.PrimaryKey))
	for i, c := range t.PrimaryKey {
		names[i] = c.Name
	}
	return names
}

// HasID reports if the table is keyed by a single "id" column. Tables of
// aggregate roots and entities always are.
func (t *Table) HasID() bool {
	return len(t.PrimaryKey) == 1 && t.PrimaryKey[0].Name == IDColumn
}

// ForeignKey returns the foreign key defined on the given column.
func (t *Table) ForeignKey(column string) (*ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.Column.Name == column {
			return fk, true
		}
	}
	return nil, false
}

// ForeignKeysTo returns the foreign keys of t that reference the table.
func (t *Table) ForeignKeysTo(ref *Table) []*ForeignKey {
	var fks []*ForeignKey
	for _, fk := range t.ForeignKeys {
		if fk.RefTable == ref {
			fks = append(fks, fk)
		}
	}
	return fks
}

// String implements the fmt.Stringer interface.
func (t *Table) String() string {
	return t.Name
}

// IDColumn is the primary-key column of entity tables.
const IDColumn = "id"

// Column schema definition.
type Column struct {
	Name string
	// Type is the source primitive type of the column.
	Type field.Type
	// SQLType is the dialect-resolved type. Empty until resolved.
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	ForeignKey bool
}

// String implements the fmt.Stringer interface.
func (c *Column) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte(' ')
	if c.SQLType != "" {
		b.WriteString(c.SQLType)
	} else {
		b.WriteString(c.Type.String())
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// ForeignKey definition for creation.
type ForeignKey struct {
	Symbol    string
	Column    *Column
	RefTable  *Table
	RefColumn *Column
	OnDelete  ReferenceOption
}

// String implements the fmt.Stringer interface.
func (fk *ForeignKey) String() string {
	return fmt.Sprintf("%s -> %s(%s) ON DELETE %s", fk.Column.Name, fk.RefTable.Name, fk.RefColumn.Name, fk.OnDelete)
}

// Find returns the table with the given name.
func Find(tables []*Table, name string) (*Table, bool) {
	for _, t := range tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Sort returns the tables ordered so that every table appears after the
// tables its foreign keys reference. Ties keep the input order. Self
// references are ignored, and an edge closing a cycle between tables is
// skipped.
func Sort(tables []*Table) []*Table {
	var (
		sorted  = make([]*Table, 0, len(tables))
		state   = make(map[*Table]uint8, len(tables))
		present = make(map[*Table]bool, len(tables))
		visit   func(*Table)
	)
	for _, t := range tables {
		present[t] = true
	}
	visit = func(t *Table) {
		if state[t] != 0 {
			return
		}
		state[t] = 1
		for _, fk := range t.ForeignKeys {
			if fk.RefTable != t && present[fk.RefTable] {
				visit(fk.RefTable)
			}
		}
		state[t] = 2
		sorted = append(sorted, t)
	}
	for _, t := range tables {
		visit(t)
	}
	return sorted
}
