package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEncode(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		b, err := NewSnapshot(nil).MarshalBinary()
		require.NoError(t, err)
		s, err := ReadSnapshot(b)
		require.NoError(t, err)
		assert.Empty(t, s.Tables)
	})

	t.Run("round trip", func(t *testing.T) {
		a := mustBuild(t, mustRegistry(t, orderTypes()...), "Order")
		want := NewSnapshot(a.Tables)
		b, err := want.MarshalBinary()
		require.NoError(t, err)
		got, err := ReadSnapshot(b)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		orders, ok := got.Table("orders")
		require.True(t, ok)
		assert.True(t, orders.AggregateRoot)
		assert.Equal(t, []string{"id"}, orders.PrimaryKey)
	})

	t.Run("graph", func(t *testing.T) {
		a := mustBuild(t, mustRegistry(t, orderTypes()...), "Order")
		b1, err := a.Snapshot()
		require.NoError(t, err)
		b2, err := NewSnapshot(a.Tables).MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, b1, b2)
	})

	t.Run("corrupt", func(t *testing.T) {
		_, err := ReadSnapshot([]byte{0xc1})
		require.Error(t, err)
	})
}
