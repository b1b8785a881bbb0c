package object_test

import (
	"testing"

	"github.com/mblk/cslox/lang/object"
	"github.com/mblk/cslox/lang/value"
	"github.com/stretchr/testify/require"
)

func TestInternerReturnsSameObjectForEqualContent(t *testing.T) {
	h := object.NewHeap()

	a := h.Strings.Intern("foobar")
	b := h.Strings.Intern("foo" + "bar")

	require.Same(t, a, b, "equal byte sequences must intern to the same object")
}

func TestInternerDistinguishesDifferentContent(t *testing.T) {
	h := object.NewHeap()

	a := h.Strings.Intern("foo")
	b := h.Strings.Intern("bar")

	require.NotSame(t, a, b)
}

func TestUpvalueCloseMovesValueOffStack(t *testing.T) {
	h := object.NewHeap()
	stackSlot := value.Number(1)

	up := h.NewUpvalue(&stackSlot)
	stackSlot = value.Number(2)
	require.Equal(t, float64(2), up.Location.AsNumber())

	up.Close()
	require.Equal(t, float64(2), up.Closed.AsNumber())
	require.Same(t, &up.Closed, up.Location)
}
