package value_test

import (
	"testing"

	"github.com/mblk/cslox/lang/value"
	"github.com/stretchr/testify/require"
)

func TestChunkLineRunInvariant(t *testing.T) {
	var c value.Chunk
	c.WriteByte(0x01, 1)
	c.WriteByte(0x02, 1)
	c.WriteU32(7, 2)
	c.WriteByte(0x03, 2)

	require.Equal(t, 1, c.LineForOffset(0))
	require.Equal(t, 1, c.LineForOffset(1))
	require.Equal(t, 2, c.LineForOffset(2))
	require.Equal(t, 2, c.LineForOffset(6))
}

func TestChunkAddConstantDeduplicates(t *testing.T) {
	var c value.Chunk
	i1 := c.AddConstant(value.Number(3.14))
	i2 := c.AddConstant(value.Number(3.14))
	i3 := c.AddConstant(value.Number(2.71))

	require.Equal(t, i1, i2)
	require.NotEqual(t, i1, i3)
	require.Len(t, c.Constants, 2)
}

func TestChunkReadU32RoundTrips(t *testing.T) {
	var c value.Chunk
	c.WriteU32(0xdeadbeef, 10)
	require.Equal(t, uint32(0xdeadbeef), c.ReadU32(0))
}
