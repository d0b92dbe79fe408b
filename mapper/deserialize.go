package mapper

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/syssam/aggregate/compiler/gen"
	sqlschema "github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/schema"
	"github.com/syssam/aggregate/schema/field"
)

// Deserialize rebuilds the aggregate instance from its rows. The root is
// the first row of the root table. Flattened columns are regrouped into
// value objects, collections are rebuilt from the rows carrying the owner
// id, and entity references resolve to one *Object per identity, so shared
// and cyclic references are preserved.
func Deserialize(rs RowSet, a *gen.Aggregate) (*Object, error) {
	roots := rs[a.Table.Name]
	if len(roots) == 0 {
		return nil, &MappingError{Type: a.Root.Name, Table: a.Table.Name, Msg: "no root row"}
	}
	d := &deserializer{
		agg:     a,
		rows:    rs,
		objects: make(map[entityKey]*Object),
		index:   make(map[string]map[uuid.UUID]Row),
	}
	return d.entity(a.Table, roots[0])
}

type deserializer struct {
	agg     *gen.Aggregate
	rows    RowSet
	objects map[entityKey]*Object
	// index holds the rows of entity tables by id, built on first use.
	index map[string]map[uuid.UUID]Row
}

func (d *deserializer) lookup(t *sqlschema.Table, id uuid.UUID) (Row, error) {
	idx, ok := d.index[t.Name]
	if !ok {
		idx = make(map[uuid.UUID]Row, len(d.rows[t.Name]))
		for _, row := range d.rows[t.Name] {
			rid, err := d.uuid(t, row, sqlschema.IDColumn)
			if err != nil {
				return nil, err
			}
			if rid == nil {
				return nil, &MappingError{Type: t.Source, Table: t.Name, Column: sqlschema.IDColumn, Msg: "row without id"}
			}
			idx[*rid] = row
		}
		d.index[t.Name] = idx
	}
	return idx[id], nil
}

// uuid reads a uuid column. A nil value returns a nil id.
func (d *deserializer) uuid(t *sqlschema.Table, row Row, column string) (*uuid.UUID, error) {
	v, ok := row[column]
	if !ok {
		return nil, &MappingError{Type: t.Source, Table: t.Name, Column: column, Msg: "missing column"}
	}
	cv, err := field.Convert(field.TypeUUID, v)
	if err != nil {
		return nil, &MappingError{Type: t.Source, Table: t.Name, Column: column, Msg: "invalid id", Err: err}
	}
	if cv == nil {
		return nil, nil
	}
	id := cv.(uuid.UUID)
	return &id, nil
}

func (d *deserializer) entity(t *sqlschema.Table, row Row) (*Object, error) {
	plan, ok := d.agg.PlanOf(t.Name)
	if !ok {
		return nil, &MappingError{Type: t.Source, Table: t.Name, Msg: "table has no storage plan"}
	}
	id, err := d.uuid(t, row, sqlschema.IDColumn)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, &MappingError{Type: plan.Type.Name, Table: t.Name, Column: sqlschema.IDColumn, Msg: "row without id"}
	}
	k := entityKey{table: t.Name, id: *id}
	if o, ok := d.objects[k]; ok {
		return o, nil
	}
	o := New(plan.Type.Name, *id)
	d.objects[k] = o
	if err := d.fields(o, o, "", plan.Bindings, row, t); err != nil {
		return nil, err
	}
	return o, nil
}

// fields reads the fields of dst from row. owner is the entity owning
// row; dst is the owner itself or one of its value objects.
func (d *deserializer) fields(owner, dst *Object, path string, bindings []*gen.Binding, row Row, t *sqlschema.Table) error {
	for _, bd := range bindings {
		var (
			name  = bd.Field.Name
			fpath = join(path, name)
		)
		switch bd.Kind {
		case gen.BindColumn:
			v, err := d.column(owner, fpath, bd.Field.Type.Primitive, row, t, bd.Column)
			if err != nil {
				return err
			}
			dst.Set(name, v)
		case gen.BindValue:
			absent := true
			for _, c := range bd.Value.Columns {
				v, ok := row[c]
				if !ok {
					return &MappingError{Type: owner.Type, Field: fpath, Table: t.Name, Column: c, Msg: "incomplete value group"}
				}
				absent = absent && v == nil
			}
			if absent && bd.Value.Nullable {
				dst.Set(name, nil)
				continue
			}
			vo := NewValue(bd.Value.Type.Name)
			if err := d.fields(owner, vo, fpath, bd.Value.Bindings, row, t); err != nil {
				return err
			}
			dst.Set(name, vo)
		case gen.BindEntity:
			id, err := d.uuid(t, row, bd.Column)
			if err != nil {
				return withField(err, owner.Type, fpath)
			}
			if id == nil {
				if required(t, bd.Column) {
					return &MappingError{Type: owner.Type, Field: fpath, Table: t.Name, Column: bd.Column, Msg: "required entity is null"}
				}
				dst.Set(name, nil)
				continue
			}
			target, err := d.lookup(bd.Target, *id)
			if err != nil {
				return err
			}
			if target == nil {
				return &MappingError{Type: owner.Type, Field: fpath, Table: bd.Target.Name, Msg: fmt.Sprintf("no row with id %s", id)}
			}
			eo, err := d.entity(bd.Target, target)
			if err != nil {
				return err
			}
			dst.Set(name, eo)
		case gen.BindReference:
			id, err := d.uuid(t, row, bd.Column)
			if err != nil {
				return withField(err, owner.Type, fpath)
			}
			if id == nil {
				dst.Set(name, nil)
				continue
			}
			dst.Set(name, *id)
		case gen.BindCollection:
			v, err := d.collection(owner, fpath, bd.Collection)
			if err != nil {
				return err
			}
			dst.Set(name, v)
		}
	}
	return nil
}

// column reads a primitive column. Nulls in NOT NULL columns are
// reported, never defaulted.
func (d *deserializer) column(owner *Object, path string, typ field.Type, row Row, t *sqlschema.Table, column string) (any, error) {
	v, ok := row[column]
	if !ok {
		return nil, &MappingError{Type: owner.Type, Field: path, Table: t.Name, Column: column, Msg: "missing column"}
	}
	cv, err := field.Convert(typ, v)
	if err != nil {
		return nil, &MappingError{Type: owner.Type, Field: path, Table: t.Name, Column: column, Msg: "invalid value", Err: err}
	}
	if cv == nil && required(t, column) {
		return nil, &MappingError{Type: owner.Type, Field: path, Table: t.Name, Column: column, Msg: "required column is null"}
	}
	return cv, nil
}

func (d *deserializer) collection(owner *Object, path string, cp *gen.CollectionPlan) (any, error) {
	t := cp.Table
	var members []Row
	for _, row := range d.rows[t.Name] {
		id, err := d.uuid(t, row, cp.OwnerColumn)
		if err != nil {
			return nil, withField(err, owner.Type, path)
		}
		if id != nil && *id == owner.ID {
			members = append(members, row)
		}
	}
	switch cp.Info.Kind {
	case schema.CollectionMap:
		m := make(map[any]any, len(members))
		for _, row := range members {
			k, err := d.column(owner, path, cp.Info.KeyType.Primitive, row, t, cp.KeyColumn)
			if err != nil {
				return nil, err
			}
			if k == nil {
				return nil, &MappingError{Type: owner.Type, Field: path, Table: t.Name, Column: cp.KeyColumn, Msg: "null map key"}
			}
			v, err := d.element(owner, path, cp, row)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	case schema.CollectionList:
		type item struct {
			ordinal int64
			row     Row
		}
		items := make([]item, len(members))
		for i, row := range members {
			o, err := d.column(owner, path, field.TypeInt, row, t, cp.OrdinalColumn)
			if err != nil {
				return nil, err
			}
			if o == nil {
				return nil, &MappingError{Type: owner.Type, Field: path, Table: t.Name, Column: cp.OrdinalColumn, Msg: "null ordinal"}
			}
			items[i] = item{ordinal: o.(int64), row: row}
		}
		slices.SortStableFunc(items, func(a, b item) int {
			return cmp.Compare(a.ordinal, b.ordinal)
		})
		list := make([]any, 0, len(items))
		for _, it := range items {
			v, err := d.element(owner, path, cp, it.row)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	default:
		set := make([]any, 0, len(members))
		for _, row := range members {
			v, err := d.element(owner, path, cp, row)
			if err != nil {
				return nil, err
			}
			set = append(set, v)
		}
		return set, nil
	}
}

func (d *deserializer) element(owner *Object, path string, cp *gen.CollectionPlan, row Row) (any, error) {
	if !cp.Dedicated {
		return d.entity(cp.Table, row)
	}
	switch cp.Element.Kind {
	case gen.BindColumn:
		return d.column(owner, path, cp.Info.ElementType.Primitive, row, cp.Table, cp.Element.Column)
	case gen.BindValue:
		vo := NewValue(cp.Element.Value.Type.Name)
		if err := d.fields(owner, vo, path, cp.Element.Value.Bindings, row, cp.Table); err != nil {
			return nil, err
		}
		return vo, nil
	}
	return nil, &MappingError{Type: owner.Type, Field: path, Msg: "unknown element binding"}
}

// withField adds the type and field path to a mapping error.
func withField(err error, typ, path string) error {
	if me, ok := err.(*MappingError); ok && me.Field == "" {
		me.Type, me.Field = typ, path
	}
	return err
}
