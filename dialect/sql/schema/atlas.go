package schema

import (
	"ariga.io/atlas/sql/schema"
)

// AtlasTyper resolves the Atlas column type of a column for one dialect.
type AtlasTyper func(*Column) schema.Type

// ToAtlas converts the tables into an Atlas schema with the given name.
// Tables are added in dependency order so that planners emit referenced
// tables first.
func ToAtlas(name string, tables []*Table, typ AtlasTyper) *schema.Schema {
	var (
		s      = schema.New(name)
		sorted = Sort(tables)
		byName = make(map[string]*schema.Table, len(tables))
	)
	for _, t := range sorted {
		at := schema.NewTable(t.Name)
		for _, c := range t.Columns {
			at.AddColumns(schema.NewColumn(c.Name).
				SetType(typ(c)).
				SetNull(c.Nullable))
		}
		if len(t.PrimaryKey) > 0 {
			pk := make([]*schema.Column, len(t.PrimaryKey))
			for i, c := range t.PrimaryKey {
				pk[i], _ = at.Column(c.Name)
			}
			at.SetPrimaryKey(schema.NewPrimaryKey(pk...))
		}
		byName[t.Name] = at
		s.AddTables(at)
	}
	for _, t := range sorted {
		at := byName[t.Name]
		for _, fk := range t.ForeignKeys {
			ref, ok := byName[fk.RefTable.Name]
			if !ok {
				continue
			}
			col, _ := at.Column(fk.Column.Name)
			refCol, _ := ref.Column(fk.RefColumn.Name)
			at.AddForeignKeys(schema.NewForeignKey(fk.Symbol).
				AddColumns(col).
				SetRefTable(ref).
				AddRefColumns(refCol).
				SetOnDelete(atlasOption(fk.OnDelete)))
		}
	}
	return s
}

// AddTables returns the Atlas changes creating every table of the schema.
func AddTables(s *schema.Schema) []schema.Change {
	changes := make([]schema.Change, 0, len(s.Tables))
	for _, t := range s.Tables {
		changes = append(changes, &schema.AddTable{T: t})
	}
	return changes
}

func atlasOption(o ReferenceOption) schema.ReferenceOption {
	switch o {
	case SetNull:
		return schema.SetNull
	case Restrict:
		return schema.Restrict
	default:
		return schema.Cascade
	}
}
