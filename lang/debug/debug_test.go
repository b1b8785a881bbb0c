package debug_test

import (
	"bytes"
	"testing"

	"github.com/mblk/cslox/lang/compiler"
	"github.com/mblk/cslox/lang/debug"
	"github.com/mblk/cslox/lang/object"
	"github.com/stretchr/testify/require"
)

func TestDisassembleChunkListsConstantsAndJumps(t *testing.T) {
	heap := object.NewHeap()
	fn, errs := compiler.Compile(`
		var x = 1;
		if (x < 2) { print "small"; } else { print "big"; }
	`, heap)
	require.Empty(t, errs)

	var buf bytes.Buffer
	debug.DisassembleChunk(&buf, &fn.Chunk, "test")

	out := buf.String()
	require.Contains(t, out, "== test ==")
	require.Contains(t, out, "OP_JUMP_IF_FALSE")
	require.Contains(t, out, "OP_CONSTANT")
	require.Contains(t, out, "'small'")
}

func TestDisassembleInstructionAdvancesOffset(t *testing.T) {
	heap := object.NewHeap()
	fn, errs := compiler.Compile("print 1;", heap)
	require.Empty(t, errs)

	var buf bytes.Buffer
	next := debug.DisassembleInstruction(&buf, &fn.Chunk, 0)
	require.Greater(t, next, 0)
}
