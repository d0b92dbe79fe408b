package mapper

import (
	"bytes"
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/aggregate/compiler/gen"
	sqlschema "github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/schema"
	"github.com/syssam/aggregate/schema/field"
)

// entityKey identifies an entity row.
type entityKey struct {
	table string
	id    uuid.UUID
}

// Serialize flattens an aggregate instance into table rows. Value objects
// are flattened into their owner rows, entities and collections are
// serialized recursively and stamped with their owner id, ordinal or key.
// Entities are written once per identity; the root row is the first row
// of its table. Serialize does not modify obj.
func Serialize(obj *Object, a *gen.Aggregate) (RowSet, error) {
	if obj == nil {
		return nil, &MappingError{Type: a.Root.Name, Msg: "nil aggregate"}
	}
	if obj.Type != a.Root.Name {
		return nil, &MappingError{Type: a.Root.Name, Msg: fmt.Sprintf("got object of type %q", obj.Type)}
	}
	s := &serializer{
		agg:  a,
		rows: make(RowSet),
		seen: make(map[entityKey]Row),
	}
	if _, err := s.entity(obj, a.Table); err != nil {
		return nil, err
	}
	return s.rows, nil
}

type serializer struct {
	agg  *gen.Aggregate
	rows RowSet
	seen map[entityKey]Row
}

func (s *serializer) entity(o *Object, t *sqlschema.Table) (Row, error) {
	plan, ok := s.agg.PlanOf(t.Name)
	if !ok {
		return nil, &MappingError{Type: o.Type, Table: t.Name, Msg: "table has no storage plan"}
	}
	if o.Type != plan.Type.Name {
		return nil, &MappingError{Type: plan.Type.Name, Table: t.Name, Msg: fmt.Sprintf("got object of type %q", o.Type)}
	}
	if o.ID == uuid.Nil {
		return nil, &MappingError{Type: o.Type, Table: t.Name, Column: sqlschema.IDColumn, Msg: "entity without id"}
	}
	k := entityKey{table: t.Name, id: o.ID}
	if row, ok := s.seen[k]; ok {
		return row, nil
	}
	row := make(Row, len(t.Columns))
	for _, c := range t.Columns {
		row[c.Name] = nil
	}
	row[sqlschema.IDColumn] = o.ID
	s.seen[k] = row
	s.rows.Add(t.Name, row)
	if err := s.fields(o, o, "", plan.Bindings, row, t); err != nil {
		return nil, err
	}
	return row, nil
}

// fields writes the fields of src into row. owner is the entity owning
// row; src is the owner itself or one of its value objects.
func (s *serializer) fields(owner, src *Object, path string, bindings []*gen.Binding, row Row, t *sqlschema.Table) error {
	for _, bd := range bindings {
		var (
			name  = bd.Field.Name
			fpath = join(path, name)
			v     = src.Fields[name]
		)
		if o, ok := v.(*Object); ok && o == nil {
			v = nil
		}
		switch bd.Kind {
		case gen.BindColumn:
			cv, err := field.Convert(bd.Field.Type.Primitive, v)
			if err != nil {
				return &MappingError{Type: owner.Type, Field: fpath, Table: t.Name, Column: bd.Column, Msg: "invalid value", Err: err}
			}
			if cv == nil && required(t, bd.Column) {
				return &MappingError{Type: owner.Type, Field: fpath, Table: t.Name, Column: bd.Column, Msg: "required field has no value"}
			}
			row[bd.Column] = cv
		case gen.BindValue:
			if v == nil {
				for _, c := range bd.Value.Columns {
					if required(t, c) {
						return &MappingError{Type: owner.Type, Field: fpath, Table: t.Name, Column: c, Msg: "required value has no value"}
					}
				}
				continue
			}
			vo, ok := v.(*Object)
			if !ok {
				return &MappingError{Type: owner.Type, Field: fpath, Msg: fmt.Sprintf("expected value object, got %T", v)}
			}
			if err := s.fields(owner, vo, fpath, bd.Value.Bindings, row, t); err != nil {
				return err
			}
		case gen.BindEntity:
			if v == nil {
				if required(t, bd.Column) {
					return &MappingError{Type: owner.Type, Field: fpath, Table: t.Name, Column: bd.Column, Msg: "required entity has no value"}
				}
				continue
			}
			eo, ok := v.(*Object)
			if !ok {
				return &MappingError{Type: owner.Type, Field: fpath, Msg: fmt.Sprintf("expected entity, got %T", v)}
			}
			if _, err := s.entity(eo, bd.Target); err != nil {
				return err
			}
			row[bd.Column] = eo.ID
		case gen.BindReference:
			id, err := referenceID(v)
			if err != nil {
				return &MappingError{Type: owner.Type, Field: fpath, Table: t.Name, Column: bd.Column, Msg: "invalid reference", Err: err}
			}
			if id == nil && required(t, bd.Column) {
				return &MappingError{Type: owner.Type, Field: fpath, Table: t.Name, Column: bd.Column, Msg: "required reference has no value"}
			}
			row[bd.Column] = id
		case gen.BindCollection:
			if err := s.collection(owner, fpath, bd.Collection, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// element is one collection element with its position or key.
type element struct {
	ordinal int64
	key     any
	value   any
}

func (s *serializer) collection(owner *Object, path string, cp *gen.CollectionPlan, v any) error {
	elems, err := elements(cp, v)
	if err != nil {
		return &MappingError{Type: owner.Type, Field: path, Msg: "invalid collection", Err: err}
	}
	t := cp.Table
	var (
		contents map[string]bool
		members  map[uuid.UUID]bool
	)
	switch {
	case cp.Info.Kind == schema.CollectionSet && cp.Dedicated:
		contents = make(map[string]bool)
	case !cp.Dedicated:
		members = make(map[uuid.UUID]bool)
	}
	for _, e := range elems {
		var row Row
		if cp.Dedicated {
			row = make(Row, len(t.Columns))
			for _, c := range t.Columns {
				row[c.Name] = nil
			}
		} else {
			eo, ok := e.value.(*Object)
			if !ok {
				return &MappingError{Type: owner.Type, Field: path, Msg: fmt.Sprintf("expected entity element, got %T", e.value)}
			}
			if eo == nil {
				return &MappingError{Type: owner.Type, Field: path, Table: t.Name, Msg: "nil element"}
			}
			if members[eo.ID] {
				// A set holds an entity once, a list or map would lose the position.
				if cp.Info.Kind == schema.CollectionSet {
					continue
				}
				return &MappingError{Type: owner.Type, Field: path, Table: t.Name, Msg: fmt.Sprintf("entity %s listed twice", eo)}
			}
			members[eo.ID] = true
			if row, err = s.entity(eo, t); err != nil {
				return err
			}
			if prev, ok := row[cp.OwnerColumn].(uuid.UUID); ok && prev != owner.ID {
				return &MappingError{Type: owner.Type, Field: path, Table: t.Name, Column: cp.OwnerColumn, Msg: fmt.Sprintf("entity %s is owned by %s", eo, prev)}
			}
		}
		row[cp.OwnerColumn] = owner.ID
		switch cp.Info.Kind {
		case schema.CollectionList:
			row[cp.OrdinalColumn] = e.ordinal
		case schema.CollectionMap:
			row[cp.KeyColumn] = e.key
		}
		if !cp.Dedicated {
			continue
		}
		switch cp.Element.Kind {
		case gen.BindColumn:
			cv, err := field.Convert(cp.Info.ElementType.Primitive, e.value)
			if err != nil {
				return &MappingError{Type: owner.Type, Field: path, Table: t.Name, Column: cp.Element.Column, Msg: "invalid element", Err: err}
			}
			if cv == nil {
				return &MappingError{Type: owner.Type, Field: path, Table: t.Name, Column: cp.Element.Column, Msg: "nil element"}
			}
			row[cp.Element.Column] = cv
		case gen.BindValue:
			vo, ok := e.value.(*Object)
			if !ok {
				return &MappingError{Type: owner.Type, Field: path, Msg: fmt.Sprintf("expected value element, got %T", e.value)}
			}
			if vo == nil {
				return &MappingError{Type: owner.Type, Field: path, Table: t.Name, Msg: "nil element"}
			}
			if err := s.fields(owner, vo, path, cp.Element.Value.Bindings, row, t); err != nil {
				return err
			}
		}
		if contents != nil {
			k := fmt.Sprint(row)
			if contents[k] {
				continue
			}
			contents[k] = true
		}
		s.rows.Add(t.Name, row)
	}
	return nil
}

// elements returns the elements of a list, set or map value. Map
// entries are ordered by key.
func elements(cp *gen.CollectionPlan, v any) ([]element, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if cp.Info.Kind != schema.CollectionMap {
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected slice, got %T", v)
		}
		elems := make([]element, rv.Len())
		for i := range elems {
			elems[i] = element{ordinal: int64(i), value: rv.Index(i).Interface()}
		}
		return elems, nil
	}
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("expected map, got %T", v)
	}
	elems := make([]element, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := field.Convert(cp.Info.KeyType.Primitive, iter.Key().Interface())
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		if k == nil {
			return nil, fmt.Errorf("nil map key")
		}
		elems = append(elems, element{key: k, value: iter.Value().Interface()})
	}
	slices.SortFunc(elems, func(a, b element) int {
		return compareKeys(a.key, b.key)
	})
	return elems, nil
}

// referenceID returns the id of a reference to another aggregate root.
func referenceID(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case *Object:
		if v == nil {
			return nil, nil
		}
		return v.ID, nil
	}
	return field.Convert(field.TypeUUID, v)
}

func required(t *sqlschema.Table, column string) bool {
	c, ok := t.Column(column)
	return ok && !c.Nullable
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// compareKeys orders map keys of the same primitive type.
func compareKeys(a, b any) int {
	switch a := a.(type) {
	case string:
		return cmp.Compare(a, b.(string))
	case int64:
		return cmp.Compare(a, b.(int64))
	case float64:
		return cmp.Compare(a, b.(float64))
	case time.Time:
		return a.Compare(b.(time.Time))
	case uuid.UUID:
		bu := b.(uuid.UUID)
		return bytes.Compare(a[:], bu[:])
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
