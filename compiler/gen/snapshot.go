package gen

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	sqlschema "github.com/syssam/aggregate/dialect/sql/schema"
)

type (
	// Snapshot is the serializable form of a built table set. Encoding
	// the same table set always yields the same bytes.
	Snapshot struct {
		Tables []TableSnapshot `msgpack:"tables"`
	}

	// TableSnapshot represents a table in the snapshot.
	TableSnapshot struct {
		Name          string               `msgpack:"name"`
		Source        string               `msgpack:"source"`
		AggregateRoot bool                 `msgpack:"aggregate_root,omitempty"`
		Collection    bool                 `msgpack:"collection,omitempty"`
		Columns       []ColumnSnapshot     `msgpack:"columns"`
		PrimaryKey    []string             `msgpack:"primary_key,omitempty"`
		ForeignKeys   []ForeignKeySnapshot `msgpack:"foreign_keys,omitempty"`
	}

	// ColumnSnapshot represents a column in the snapshot.
	ColumnSnapshot struct {
		Name     string `msgpack:"name"`
		Type     string `msgpack:"type"`
		SQLType  string `msgpack:"sql_type,omitempty"`
		Nullable bool   `msgpack:"nullable,omitempty"`
	}

	// ForeignKeySnapshot represents a foreign key in the snapshot.
	ForeignKeySnapshot struct {
		Symbol    string `msgpack:"symbol"`
		Column    string `msgpack:"column"`
		RefTable  string `msgpack:"ref_table"`
		RefColumn string `msgpack:"ref_column"`
		OnDelete  string `msgpack:"on_delete"`
	}
)

// NewSnapshot returns the snapshot of the tables.
func NewSnapshot(tables []*sqlschema.Table) *Snapshot {
	s := &Snapshot{Tables: make([]TableSnapshot, 0, len(tables))}
	for _, t := range tables {
		ts := TableSnapshot{
			Name:          t.Name,
			Source:        t.Source,
			AggregateRoot: t.AggregateRoot,
			Collection:    t.Collection,
			PrimaryKey:    t.PrimaryKeyNames(),
		}
		for _, c := range t.Columns {
			ts.Columns = append(ts.Columns, ColumnSnapshot{
				Name:     c.Name,
				Type:     c.Type.String(),
				SQLType:  c.SQLType,
				Nullable: c.Nullable,
			})
		}
		for _, fk := range t.ForeignKeys {
			ts.ForeignKeys = append(ts.ForeignKeys, ForeignKeySnapshot{
				Symbol:    fk.Symbol,
				Column:    fk.Column.Name,
				RefTable:  fk.RefTable.Name,
				RefColumn: fk.RefColumn.Name,
				OnDelete:  string(fk.OnDelete),
			})
		}
		s.Tables = append(s.Tables, ts)
	}
	return s
}

// snapshot has the fields of Snapshot without its methods, so msgpack
// encodes the fields instead of calling MarshalBinary again.
type snapshot Snapshot

// MarshalBinary encodes the snapshot with msgpack.
func (s *Snapshot) MarshalBinary() ([]byte, error) {
	b, err := msgpack.Marshal((*snapshot)(s))
	if err != nil {
		return nil, fmt.Errorf("aggregate: encode snapshot: %w", err)
	}
	return b, nil
}

// ReadSnapshot decodes a snapshot encoded by MarshalBinary.
func ReadSnapshot(b []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := msgpack.Unmarshal(b, (*snapshot)(s)); err != nil {
		return nil, fmt.Errorf("aggregate: decode snapshot: %w", err)
	}
	return s, nil
}

// Table returns the snapshot of the named table.
func (s *Snapshot) Table(name string) (TableSnapshot, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableSnapshot{}, false
}

// Snapshot returns the encoded snapshot of the aggregate tables.
func (a *Aggregate) Snapshot() ([]byte, error) {
	return NewSnapshot(a.Tables).MarshalBinary()
}

// Snapshot returns the encoded snapshot of all tables of the graph.
func (g *Graph) Snapshot() ([]byte, error) {
	return NewSnapshot(g.Tables).MarshalBinary()
}
