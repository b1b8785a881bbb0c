package value_test

import (
	"testing"

	"github.com/mblk/cslox/lang/value"
	"github.com/stretchr/testify/require"
)

func TestTableSetGetDelete(t *testing.T) {
	var tbl value.Table

	k1 := value.Number(1)
	k2 := value.Number(2)

	require.True(t, tbl.Set(k1, value.Bool(true)))
	require.False(t, tbl.Set(k1, value.Bool(false))) // overwrite, not new

	v, ok := tbl.Get(k1)
	require.True(t, ok)
	require.Equal(t, value.Bool(false), v)

	_, ok = tbl.Get(k2)
	require.False(t, ok)

	require.True(t, tbl.Delete(k1))
	_, ok = tbl.Get(k1)
	require.False(t, ok, "deleted key must read back as absent")
}

func TestTableDeleteThenReinsert(t *testing.T) {
	var tbl value.Table
	k := value.Number(42)

	tbl.Set(k, value.Number(1))
	tbl.Delete(k)
	require.True(t, tbl.Set(k, value.Number(2)), "re-set after delete must report as a new key")

	v, ok := tbl.Get(k)
	require.True(t, ok)
	require.Equal(t, value.Number(2), v)
}

func TestTableGrowsAndKeepsAllEntries(t *testing.T) {
	var tbl value.Table
	for i := 0; i < 200; i++ {
		tbl.Set(value.Number(float64(i)), value.Number(float64(i*2)))
	}
	for i := 0; i < 200; i++ {
		v, ok := tbl.Get(value.Number(float64(i)))
		require.True(t, ok)
		require.Equal(t, float64(i*2), v.AsNumber())
	}
	require.Equal(t, 200, tbl.Len())
}

func TestTableAddAll(t *testing.T) {
	var src, dst value.Table
	src.Set(value.Number(1), value.Number(10))
	src.Set(value.Number(2), value.Number(20))

	src.AddAll(&dst)

	v, ok := dst.Get(value.Number(1))
	require.True(t, ok)
	require.Equal(t, float64(10), v.AsNumber())
}
