package gen

import (
	"slices"
	"strings"

	sqlschema "github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/schema"
	"github.com/syssam/aggregate/schema/field"
)

// Column names of dedicated collection tables.
const (
	OrdinalColumn = "ordinal"
	MapKeyColumn  = "map_key"
	ValueColumn   = "value"
)

// BindingKind tells how a field is stored.
type BindingKind uint8

// Binding kinds.
const (
	BindColumn     BindingKind = iota + 1 // primitive column
	BindValue                             // flattened value object
	BindEntity                            // foreign key to an entity table of the aggregate
	BindReference                         // bare id of another aggregate root
	BindCollection                        // list, set or map
)

// String returns the name of the binding kind.
func (k BindingKind) String() string {
	switch k {
	case BindColumn:
		return "column"
	case BindValue:
		return "value"
	case BindEntity:
		return "entity"
	case BindReference:
		return "reference"
	case BindCollection:
		return "collection"
	default:
		return "invalid"
	}
}

type (
	// Plan is the storage plan of a table-owning type.
	Plan struct {
		Type     *schema.TypeDescriptor
		Table    *sqlschema.Table
		Bindings []*Binding
	}

	// Binding describes where one field is stored.
	Binding struct {
		Field *schema.FieldDescriptor
		Kind  BindingKind
		// Column holds the primitive, foreign-key or reference column.
		Column string
		// Target is the referenced table of entity bindings.
		Target     *sqlschema.Table
		Value      *ValuePlan
		Collection *CollectionPlan
	}

	// ValuePlan describes a flattened value object.
	ValuePlan struct {
		Type *schema.TypeDescriptor
		// Nullable reports if the whole group may be absent.
		Nullable bool
		// Columns holds every column of the group, nested groups included.
		Columns  []string
		Bindings []*Binding
	}

	// CollectionPlan describes the table rows of a collection field.
	CollectionPlan struct {
		Info *schema.CollectionInfo
		// Table is the dedicated table, or the element table for
		// collections of entities.
		Table     *sqlschema.Table
		Dedicated bool
		// OwnerColumn references the id of the owner row.
		OwnerColumn string
		// OrdinalColumn is set for lists, KeyColumn for maps.
		OrdinalColumn string
		KeyColumn     string
		// Element describes the element columns of dedicated tables.
		Element *Binding
	}
)

// Binding returns the binding of the named field.
func (p *Plan) Binding(name string) (*Binding, bool) {
	for _, b := range p.Bindings {
		if b.Field != nil && b.Field.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Aggregate is the built, read-only schema of one aggregate root.
type Aggregate struct {
	// Root is the classified root type.
	Root *schema.TypeDescriptor
	// Table is the table of the root.
	Table *sqlschema.Table
	// Tables holds all tables of the aggregate in build order: every
	// entity table followed by its dedicated collection tables.
	Tables []*sqlschema.Table
	// Types holds the classified types, leaves first.
	Types []*schema.TypeDescriptor
	plans []*Plan
}

// Plan returns the storage plan of the named type.
func (a *Aggregate) Plan(name string) (*Plan, bool) {
	for _, p := range a.plans {
		if p.Type.Name == name {
			return p, true
		}
	}
	return nil, false
}

// PlanOf returns the storage plan of the type stored in the table.
func (a *Aggregate) PlanOf(table string) (*Plan, bool) {
	for _, p := range a.plans {
		if p.Table.Name == table {
			return p, true
		}
	}
	return nil, false
}

// Plans returns the storage plans in build order.
func (a *Aggregate) Plans() []*Plan {
	return slices.Clone(a.plans)
}

// SortedTables returns the tables of the aggregate with referenced
// tables first.
func (a *Aggregate) SortedTables() []*sqlschema.Table {
	return sqlschema.Sort(a.Tables)
}

// Build classifies the types reachable from root and builds its tables.
func Build(r schema.Resolver, root *schema.TypeDescriptor, opts ...Option) (*Aggregate, error) {
	c, err := NewClassifier(r).ClassifyRoot(root)
	if err != nil {
		return nil, err
	}
	return BuildSchema(c, opts...)
}

// BuildSchema builds one table per aggregate root and entity of the
// classification, flattening value objects into their owner rows and
// materializing collection tables.
func BuildSchema(c *Classification, opts ...Option) (*Aggregate, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	b := &builder{
		cfg:      cfg,
		root:     c.Root,
		tables:   make(map[*schema.TypeDescriptor]*sqlschema.Table),
		children: make(map[*schema.TypeDescriptor][]*sqlschema.Table),
	}
	entities := c.Entities()
	for _, t := range entities {
		tbl := sqlschema.NewTable(cfg.table(t)).
			AddPrimary(&sqlschema.Column{Name: sqlschema.IDColumn, Type: field.TypeUUID})
		tbl.Source = t.Name
		tbl.AggregateRoot = t.Kind == schema.KindAggregateRoot
		b.tables[t] = tbl
	}
	a := &Aggregate{Root: c.Root, Table: b.tables[c.Root], Types: c.Types}
	for _, t := range entities {
		bindings, err := b.bindFields(scope{owner: t, table: b.tables[t]}, t.Fields)
		if err != nil {
			return nil, err
		}
		a.plans = append(a.plans, &Plan{Type: t, Table: b.tables[t], Bindings: bindings})
	}
	b.addMembership()
	for _, t := range entities {
		a.Tables = append(a.Tables, b.tables[t])
		a.Tables = append(a.Tables, b.children[t]...)
	}
	if r := sqlschema.ValidateSchema(a.Tables); r.HasErrors() {
		return nil, &SchemaError{Root: c.Root.Name, Message: "invalid tables", Cause: r.Err()}
	}
	if cfg.SQLType != nil {
		for _, t := range a.Tables {
			for _, col := range t.Columns {
				col.SQLType = cfg.SQLType(col)
			}
		}
	}
	return a, nil
}

type builder struct {
	cfg      *Config
	root     *schema.TypeDescriptor
	tables   map[*schema.TypeDescriptor]*sqlschema.Table
	children map[*schema.TypeDescriptor][]*sqlschema.Table
	// members holds collections of entities, resolved once all entity
	// tables carry their own columns.
	members []membership
}

type membership struct {
	owner *schema.TypeDescriptor
	path  string
	plan  *CollectionPlan
}

// scope is the binding context of a field list.
type scope struct {
	owner    *schema.TypeDescriptor
	table    *sqlschema.Table
	prefix   string
	path     string
	nullable bool
	element  bool
	values   []*schema.TypeDescriptor
}

func (s scope) fieldPath(name string) string {
	if s.path == "" {
		return name
	}
	return s.path + "." + name
}

func (b *builder) bindFields(s scope, fields []*schema.FieldDescriptor) ([]*Binding, error) {
	bindings := make([]*Binding, 0, len(fields))
	for _, f := range fields {
		if s.prefix == "" && !s.element && f.Name == sqlschema.IDColumn {
			if f.IsCollection() || f.Type != schema.Primitive(field.TypeUUID) {
				return nil, unsupported(s.owner.Name, f.Name, ReasonInvalidDescriptor, "identity field must be a uuid")
			}
			continue
		}
		bd, err := b.bindField(s, f)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, bd)
	}
	return bindings, nil
}

func (b *builder) bindField(s scope, f *schema.FieldDescriptor) (*Binding, error) {
	var (
		name     = s.prefix + f.Name
		path     = s.fieldPath(f.Name)
		nullable = s.nullable || f.Nullable
		bd       = &Binding{Field: f}
	)
	switch {
	case f.IsCollection():
		if s.element {
			return nil, unsupported(s.owner.Name, path, ReasonNestedCollection, "%s inside a collection element", f.Ref)
		}
		return b.bindCollection(s, f, path)
	case f.Type.Kind == schema.KindPrimitive:
		bd.Kind, bd.Column = BindColumn, name
		s.table.AddColumn(&sqlschema.Column{Name: name, Type: f.Type.Primitive, Nullable: nullable})
	case f.Type.Kind == schema.KindValue:
		if slices.Contains(s.values, f.Type) {
			return nil, unsupported(s.owner.Name, path, ReasonRecursiveValue, "%s", f.Type.Name)
		}
		inner := s
		inner.prefix, inner.path, inner.nullable = name+"_", path, nullable
		inner.values = append(slices.Clone(s.values), f.Type)
		vp, err := b.bindValue(inner, f.Type)
		if err != nil {
			return nil, err
		}
		vp.Nullable = f.Nullable
		bd.Kind, bd.Value = BindValue, vp
	case f.Type.Kind == schema.KindAggregateRoot && f.Type != b.root:
		bd.Kind, bd.Column = BindReference, name+"_id"
		s.table.AddColumn(&sqlschema.Column{Name: bd.Column, Type: field.TypeUUID, Nullable: nullable})
	default:
		target := b.tables[f.Type]
		col := &sqlschema.Column{Name: name + "_id", Type: field.TypeUUID, Nullable: nullable}
		s.table.AddColumn(col)
		s.table.AddForeignKey(&sqlschema.ForeignKey{
			Column:    col,
			RefTable:  target,
			RefColumn: target.PrimaryKey[0],
			OnDelete:  sqlschema.Cascade,
		})
		bd.Kind, bd.Column, bd.Target = BindEntity, col.Name, target
	}
	return bd, nil
}

func (b *builder) bindValue(s scope, t *schema.TypeDescriptor) (*ValuePlan, error) {
	start := len(s.table.Columns)
	bindings, err := b.bindFields(s, t.Fields)
	if err != nil {
		return nil, err
	}
	vp := &ValuePlan{Type: t, Bindings: bindings}
	for _, c := range s.table.Columns[start:] {
		vp.Columns = append(vp.Columns, c.Name)
	}
	return vp, nil
}

func (b *builder) bindCollection(s scope, f *schema.FieldDescriptor, path string) (*Binding, error) {
	info := f.Collection
	cp := &CollectionPlan{Info: info}
	bd := &Binding{Field: f, Kind: BindCollection, Collection: cp}
	if info.ElementKind == schema.KindEntity {
		cp.Table = b.tables[info.ElementType]
		b.members = append(b.members, membership{owner: s.owner, path: path, plan: cp})
		return bd, nil
	}
	var (
		owner = b.tables[s.owner]
		t     = sqlschema.NewTable(CollectionTableName(s.owner.Name, path))
		col   = &sqlschema.Column{Name: OwnerColumn(s.owner.Name), Type: field.TypeUUID}
		pk    = []string{col.Name}
	)
	t.Source, t.Collection = s.owner.Name, true
	t.AddColumn(col)
	t.AddForeignKey(&sqlschema.ForeignKey{
		Column:    col,
		RefTable:  owner,
		RefColumn: owner.PrimaryKey[0],
		OnDelete:  sqlschema.Cascade,
	})
	cp.Table, cp.Dedicated, cp.OwnerColumn = t, true, col.Name
	switch info.Kind {
	case schema.CollectionList:
		t.AddColumn(&sqlschema.Column{Name: OrdinalColumn, Type: field.TypeInt})
		cp.OrdinalColumn = OrdinalColumn
		pk = append(pk, OrdinalColumn)
	case schema.CollectionMap:
		t.AddColumn(&sqlschema.Column{Name: MapKeyColumn, Type: info.KeyType.Primitive})
		cp.KeyColumn = MapKeyColumn
		pk = append(pk, MapKeyColumn)
	}
	switch info.ElementKind {
	case schema.KindPrimitive:
		t.AddColumn(&sqlschema.Column{Name: ValueColumn, Type: info.ElementType.Primitive})
		cp.Element = &Binding{Kind: BindColumn, Column: ValueColumn}
	case schema.KindValue:
		es := scope{owner: s.owner, table: t, path: path, element: true, values: []*schema.TypeDescriptor{info.ElementType}}
		vp, err := b.bindValue(es, info.ElementType)
		if err != nil {
			return nil, err
		}
		cp.Element = &Binding{Kind: BindValue, Value: vp}
	}
	if info.Kind != schema.CollectionSet {
		if err := t.SetPrimaryKey(pk...); err != nil {
			return nil, &SchemaError{Root: b.root.Name, Cause: err}
		}
	}
	b.children[s.owner] = append(b.children[s.owner], t)
	return bd, nil
}

// addMembership adds the owner foreign key, and the ordinal or key
// column, of every collection of entities to the element table.
func (b *builder) addMembership() {
	for _, m := range b.members {
		var (
			cp    = m.plan
			et    = cp.Table
			owner = b.tables[m.owner]
			name  = OwnerColumn(m.owner.Name)
			stem  = strings.ReplaceAll(m.path, ".", "_")
		)
		if et.HasColumn(name) {
			name = snake(m.owner.Name) + "_" + pathSnake(m.path) + "_id"
		}
		col := &sqlschema.Column{Name: name, Type: field.TypeUUID, Nullable: true}
		et.AddColumn(col)
		et.AddForeignKey(&sqlschema.ForeignKey{
			Column:    col,
			RefTable:  owner,
			RefColumn: owner.PrimaryKey[0],
			OnDelete:  sqlschema.Cascade,
		})
		cp.OwnerColumn = name
		switch cp.Info.Kind {
		case schema.CollectionList:
			cp.OrdinalColumn = stem + "_ordinal"
			et.AddColumn(&sqlschema.Column{Name: cp.OrdinalColumn, Type: field.TypeInt, Nullable: true})
		case schema.CollectionMap:
			cp.KeyColumn = stem + "_key"
			et.AddColumn(&sqlschema.Column{Name: cp.KeyColumn, Type: cp.Info.KeyType.Primitive, Nullable: true})
		}
	}
}
