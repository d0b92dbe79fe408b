package gen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/aggregate/schema"
	"github.com/syssam/aggregate/schema/field"
)

func typeNames(types []*schema.TypeDescriptor) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Name
	}
	return names
}

func TestClassify(t *testing.T) {
	tests := []struct {
		typ  *schema.TypeDescriptor
		want schema.Kind
	}{
		{schema.Primitive(field.TypeTime), schema.KindPrimitive},
		{schema.AggregateRoot("Order"), schema.KindAggregateRoot},
		{schema.Entity("OrderItem"), schema.KindEntity},
		{schema.Value("Money"), schema.KindValue},
	}
	for _, tt := range tests {
		t.Run(tt.typ.Name, func(t *testing.T) {
			kind, err := Classify(tt.typ)
			require.NoError(t, err)
			require.Equal(t, tt.want, kind)
		})
	}
	_, err := Classify(&schema.TypeDescriptor{Name: "Clock"})
	require.True(t, IsUnsupportedGraph(err))
	_, err = Classify(nil)
	require.Error(t, err)
}

func TestClassifyRoot(t *testing.T) {
	types := orderTypes()
	reg := mustRegistry(t, types...)
	c, err := NewClassifier(reg).ClassifyRoot(types[0])
	require.NoError(t, err)

	require.Equal(t, []string{"uuid", "string", "float", "Money", "integer", "OrderItem", "Order"}, typeNames(c.Types))
	require.Equal(t, []string{"OrderItem", "Order"}, typeNames(c.Entities()))
	require.Equal(t, schema.KindAggregateRoot, c.Root.Kind)
	require.Same(t, c.Types[len(c.Types)-1], c.Root)

	items, ok := c.Root.Field("items")
	require.True(t, ok)
	require.True(t, items.IsCollection())
	require.Equal(t, schema.CollectionList, items.Collection.Kind)
	require.Equal(t, schema.KindEntity, items.Collection.ElementKind)
	item, _ := c.Type("OrderItem")
	require.Same(t, item, items.Type)
	require.Same(t, item, items.Collection.ElementType)

	money, _ := c.Type("Money")
	total, _ := c.Root.Field("totalAmount")
	require.Same(t, money, total.Type)
	require.Equal(t, schema.KindValue, money.Kind)

	// Input descriptors are left untouched.
	require.Equal(t, schema.KindInvalid, types[0].Kind)
	require.Nil(t, types[0].Fields[3].Collection)
	require.Nil(t, types[0].Fields[3].Type)
}

func TestClassifyCycles(t *testing.T) {
	reg := mustRegistry(t,
		schema.AggregateRoot("Folder", schema.Field("top", "Node"), schema.Field("owner", "User")),
		schema.Entity("Node", schema.Field("parent", "Node?"), schema.Field("folder", "Folder"), schema.Field("children", "Set<Node>")),
		schema.AggregateRoot("User", schema.Field("home", "Folder")),
	)
	root, _ := reg.Resolve("Folder")
	c, err := NewClassifier(reg).ClassifyRoot(root)
	require.NoError(t, err)
	require.Equal(t, []string{"Node", "Folder"}, typeNames(c.Types))

	node, _ := c.Type("Node")
	folder, _ := node.Field("folder")
	require.Same(t, c.Root, folder.Type)
	parent, _ := node.Field("parent")
	require.Same(t, node, parent.Type)

	owner, _ := c.Root.Field("owner")
	require.Equal(t, "User", owner.Type.Name)
	require.Equal(t, schema.KindAggregateRoot, owner.Type.Kind)
	require.Empty(t, owner.Type.Fields)
	_, ok := c.Type("User")
	require.False(t, ok)
}

func TestAnalyzeCollection(t *testing.T) {
	reg := mustRegistry(t, orderTypes()...)
	cl := NewClassifier(reg)
	owner, _ := reg.Resolve("Order")

	info, err := cl.AnalyzeCollection(owner, schema.Field("prices", "Map<string, Money>"))
	require.NoError(t, err)
	require.Equal(t, schema.CollectionMap, info.Kind)
	require.Equal(t, schema.KindValue, info.ElementKind)
	require.Equal(t, "Money", info.ElementType.Name)
	require.Same(t, schema.Primitive(field.TypeString), info.KeyType)

	info, err = cl.AnalyzeCollection(owner, schema.Field("number", "string"))
	require.NoError(t, err)
	require.Nil(t, info)

	_, err = cl.AnalyzeCollection(owner, schema.Field("pairs", "Map<string>"))
	require.True(t, IsUnsupportedGraph(err))

	require.NoError(t, cl.Validate(owner, schema.Field("codes", "Set<uuid>")))
	require.Error(t, cl.Validate(owner, schema.Field("grid", "List<Set<int>>")))
	require.Error(t, cl.Validate(owner, schema.Field("", "string")))

	p, ok := cl.Resolve("timestamp")
	require.True(t, ok)
	require.Same(t, schema.Primitive(field.TypeTime), p)
}
