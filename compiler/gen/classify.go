package gen

import (
	"github.com/syssam/aggregate/schema"
	"github.com/syssam/aggregate/schema/field"
)

// Classification is the result of classifying the types reachable from
// one aggregate root. The descriptors are copies owned by the
// classification; the input descriptors are never modified.
type Classification struct {
	// Root is the classified aggregate root.
	Root *schema.TypeDescriptor
	// Types holds every reachable type exactly once, leaves first.
	// Other aggregate roots are referenced by id and never listed.
	Types []*schema.TypeDescriptor
}

// Entities returns the classified types that own a table, leaves first.
func (c *Classification) Entities() []*schema.TypeDescriptor {
	var types []*schema.TypeDescriptor
	for _, t := range c.Types {
		if t.Kind.HasTable() {
			types = append(types, t)
		}
	}
	return types
}

// Type returns the classified type with the given name.
func (c *Classification) Type(name string) (*schema.TypeDescriptor, bool) {
	for _, t := range c.Types {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Classify returns the kind of a type descriptor.
func Classify(t *schema.TypeDescriptor) (schema.Kind, error) {
	switch {
	case t == nil:
		return schema.KindInvalid, unsupported("", "", ReasonUnresolvedType, "nil descriptor")
	case t.IsPrimitive():
		return schema.KindPrimitive, nil
	case t.Base == schema.BaseAggregateRoot:
		return schema.KindAggregateRoot, nil
	case t.Base == schema.BaseEntity:
		return schema.KindEntity, nil
	case t.Base == schema.BaseValue:
		return schema.KindValue, nil
	}
	return schema.KindInvalid, unsupported(t.Name, "", ReasonUnclassified, "declared base %q", t.Base)
}

// Classifier walks a descriptor graph from an aggregate root.
type Classifier struct {
	resolver schema.Resolver
}

// NewClassifier returns a classifier resolving type names with r.
func NewClassifier(r schema.Resolver) *Classifier {
	return &Classifier{resolver: r}
}

// Resolve returns the descriptor a type name refers to. Primitive names
// resolve to the shared primitive descriptors.
func (c *Classifier) Resolve(name string) (*schema.TypeDescriptor, bool) {
	if t, ok := field.Lookup(name); ok {
		return schema.Primitive(t), true
	}
	if c.resolver == nil {
		return nil, false
	}
	return c.resolver.Resolve(name)
}

// AnalyzeCollection returns the collection info of a field, or nil if
// the field is not a collection. The element (and key) types are
// resolved and classified. The returned info references the input
// descriptors.
func (c *Classifier) AnalyzeCollection(owner *schema.TypeDescriptor, f *schema.FieldDescriptor) (*schema.CollectionInfo, error) {
	kind, ok := f.Ref.Collection()
	if !ok {
		return nil, nil
	}
	want := 1
	if kind == schema.CollectionMap {
		want = 2
	}
	if len(f.Ref.Args) == 0 {
		return nil, unsupported(owner.Name, f.Name, ReasonUntypedElement, "%s", f.Ref)
	}
	if len(f.Ref.Args) != want {
		return nil, unsupported(owner.Name, f.Name, ReasonInvalidDescriptor, "%s expects %d type arguments", kind, want)
	}
	elemRef := f.Ref.Args[want-1]
	elem, elemKind, err := c.element(owner, f, elemRef)
	if err != nil {
		return nil, err
	}
	if elemKind == schema.KindAggregateRoot {
		return nil, unsupported(owner.Name, f.Name, ReasonRootInCollection, "%s must be referenced by id", elem.Name)
	}
	info := &schema.CollectionInfo{
		Kind:        kind,
		ElementKind: elemKind,
		ElementType: elem,
	}
	if kind == schema.CollectionMap {
		key, keyKind, err := c.element(owner, f, f.Ref.Args[0])
		if err != nil {
			return nil, err
		}
		switch keyKind {
		case schema.KindPrimitive:
			info.KeyType = key
		case schema.KindValue:
			return nil, unsupported(owner.Name, f.Name, ReasonValueMapKey, "%s", key.Name)
		default:
			return nil, unsupported(owner.Name, f.Name, ReasonEntityMapKey, "%s", key.Name)
		}
	}
	return info, nil
}

// element resolves one type argument of a collection field.
func (c *Classifier) element(owner *schema.TypeDescriptor, f *schema.FieldDescriptor, ref schema.TypeRef) (*schema.TypeDescriptor, schema.Kind, error) {
	if _, ok := ref.Collection(); ok {
		return nil, schema.KindInvalid, unsupported(owner.Name, f.Name, ReasonNestedCollection, "%s", f.Ref)
	}
	if ref.Dynamic() {
		return nil, schema.KindInvalid, unsupported(owner.Name, f.Name, ReasonUntypedElement, "%s", f.Ref)
	}
	return c.resolveRef(owner, f, ref)
}

func (c *Classifier) resolveRef(owner *schema.TypeDescriptor, f *schema.FieldDescriptor, ref schema.TypeRef) (*schema.TypeDescriptor, schema.Kind, error) {
	if len(ref.Args) > 0 {
		return nil, schema.KindInvalid, unsupported(owner.Name, f.Name, ReasonUnresolvedType, "generic type %s", ref)
	}
	t, ok := c.Resolve(ref.Name)
	if !ok {
		return nil, schema.KindInvalid, unsupported(owner.Name, f.Name, ReasonUnresolvedType, "%s", ref.Name)
	}
	kind, err := Classify(t)
	if err != nil {
		return nil, schema.KindInvalid, &UnsupportedGraphError{Type: owner.Name, Field: f.Name, Reason: ReasonUnclassified, Detail: t.Name, Cause: err}
	}
	return t, kind, nil
}

// Validate checks that a field can be mapped. It resolves the field type
// and applies the collection rules.
func (c *Classifier) Validate(owner *schema.TypeDescriptor, f *schema.FieldDescriptor) error {
	_, _, err := c.target(owner, f)
	return err
}

// target validates a field and returns its collection info (if any) and
// the resolved target type: the element type for collections.
func (c *Classifier) target(owner *schema.TypeDescriptor, f *schema.FieldDescriptor) (*schema.CollectionInfo, *schema.TypeDescriptor, error) {
	if f.Err != nil {
		return nil, nil, &UnsupportedGraphError{Type: owner.Name, Field: f.Name, Reason: ReasonInvalidDescriptor, Cause: f.Err}
	}
	if f.Name == "" {
		return nil, nil, unsupported(owner.Name, "", ReasonInvalidDescriptor, "field without name")
	}
	info, err := c.AnalyzeCollection(owner, f)
	if err != nil {
		return nil, nil, err
	}
	if info != nil {
		return info, info.ElementType, nil
	}
	if f.Ref.Dynamic() {
		return nil, nil, unsupported(owner.Name, f.Name, ReasonUntypedElement, "%s", f.Ref)
	}
	t, _, err := c.resolveRef(owner, f, f.Ref)
	if err != nil {
		return nil, nil, err
	}
	return nil, t, nil
}

// ClassifyRoot classifies every type reachable from the aggregate root.
// Every field is validated before its subtree is traversed; the first
// failure aborts the classification.
func (c *Classifier) ClassifyRoot(root *schema.TypeDescriptor) (*Classification, error) {
	kind, err := Classify(root)
	if err != nil {
		return nil, err
	}
	if kind != schema.KindAggregateRoot {
		return nil, unsupported(root.Name, "", ReasonNotAggregateRoot, "%s", kind)
	}
	w := &walker{
		Classifier: c,
		root:       root,
		copies:     make(map[*schema.TypeDescriptor]*schema.TypeDescriptor),
		listed:     make(map[*schema.TypeDescriptor]bool),
		foreign:    make(map[*schema.TypeDescriptor]*schema.TypeDescriptor),
	}
	cp, err := w.visit(root, kind)
	if err != nil {
		return nil, err
	}
	return &Classification{Root: cp, Types: w.order}, nil
}

// walker holds the traversal state of one classification.
type walker struct {
	*Classifier
	root *schema.TypeDescriptor
	// copies is the visited set, keyed by descriptor identity.
	copies  map[*schema.TypeDescriptor]*schema.TypeDescriptor
	listed  map[*schema.TypeDescriptor]bool
	foreign map[*schema.TypeDescriptor]*schema.TypeDescriptor
	order   []*schema.TypeDescriptor
}

func (w *walker) visit(t *schema.TypeDescriptor, kind schema.Kind) (*schema.TypeDescriptor, error) {
	if cp, ok := w.copies[t]; ok {
		return cp, nil
	}
	cp := &schema.TypeDescriptor{
		Name:  t.Name,
		Base:  t.Base,
		Kind:  kind,
		Table: t.Table,
	}
	w.copies[t] = cp
	for _, f := range t.Fields {
		info, target, err := w.target(t, f)
		if err != nil {
			return nil, err
		}
		if _, dup := cp.Field(f.Name); dup {
			return nil, unsupported(t.Name, f.Name, ReasonInvalidDescriptor, "duplicate field")
		}
		resolved, err := w.link(target)
		if err != nil {
			return nil, err
		}
		nf := &schema.FieldDescriptor{
			Name:     f.Name,
			Ref:      f.Ref,
			Nullable: f.Nullable,
			Type:     resolved,
		}
		if info != nil {
			nf.Collection = &schema.CollectionInfo{
				Kind:        info.Kind,
				ElementKind: info.ElementKind,
				ElementType: resolved,
			}
			if info.KeyType != nil {
				nf.Collection.KeyType = info.KeyType
				w.list(info.KeyType)
			}
		}
		cp.Fields = append(cp.Fields, nf)
	}
	w.list(cp)
	return cp, nil
}

// link returns the classified counterpart of a resolved field target.
func (w *walker) link(t *schema.TypeDescriptor) (*schema.TypeDescriptor, error) {
	kind, err := Classify(t)
	if err != nil {
		return nil, err
	}
	switch {
	case kind == schema.KindPrimitive:
		w.list(t)
		return t, nil
	case kind == schema.KindAggregateRoot && t != w.root:
		return w.reference(t), nil
	case kind == schema.KindAggregateRoot:
		// Back-reference to the root of this aggregate.
		return w.copies[t], nil
	default:
		return w.visit(t, kind)
	}
}

// reference returns a field-less stand-in for another aggregate root.
func (w *walker) reference(t *schema.TypeDescriptor) *schema.TypeDescriptor {
	if cp, ok := w.foreign[t]; ok {
		return cp
	}
	cp := &schema.TypeDescriptor{
		Name:  t.Name,
		Base:  t.Base,
		Kind:  schema.KindAggregateRoot,
		Table: t.Table,
	}
	w.foreign[t] = cp
	return cp
}

func (w *walker) list(t *schema.TypeDescriptor) {
	if !w.listed[t] {
		w.listed[t] = true
		w.order = append(w.order, t)
	}
}
