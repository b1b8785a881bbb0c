package compiler_test

import (
	"testing"

	"github.com/mblk/cslox/lang/compiler"
	"github.com/mblk/cslox/lang/object"
	"github.com/stretchr/testify/require"
)

func TestCompileSimpleArithmetic(t *testing.T) {
	heap := object.NewHeap()
	fn, errs := compiler.Compile("print 1 + 2 * 3;", heap)
	require.Empty(t, errs)
	require.NotNil(t, fn)
	require.NotEmpty(t, fn.Chunk.Code)
}

func TestCompileReadOwnInitializerIsError(t *testing.T) {
	heap := object.NewHeap()
	_, errs := compiler.Compile("{ var a = a; }", heap)
	require.NotEmpty(t, errs)
}

func TestCompileReturnAtTopLevelIsError(t *testing.T) {
	heap := object.NewHeap()
	_, errs := compiler.Compile("return 1;", heap)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Message, "top-level")
}

func TestCompileConstAtGlobalScopeIsError(t *testing.T) {
	heap := object.NewHeap()
	_, errs := compiler.Compile("const x = 1;", heap)
	require.NotEmpty(t, errs)
}

func TestCompileAssignToConstLocalIsError(t *testing.T) {
	heap := object.NewHeap()
	_, errs := compiler.Compile("{ const x = 1; x = 2; }", heap)
	require.NotEmpty(t, errs)
}

func TestCompileDuplicateLocalIsError(t *testing.T) {
	heap := object.NewHeap()
	_, errs := compiler.Compile("{ var a = 1; var a = 2; }", heap)
	require.NotEmpty(t, errs)
}

func TestCompileInvalidAssignmentTargetIsError(t *testing.T) {
	heap := object.NewHeap()
	_, errs := compiler.Compile("a * b = c;", heap)
	require.NotEmpty(t, errs)
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	heap := object.NewHeap()
	fn, errs := compiler.Compile(`
		fun make() {
			var x = 0;
			fun inc() { x = x + 1; return x; }
			return inc;
		}
	`, heap)
	require.Empty(t, errs)
	require.NotNil(t, fn)
}

func TestCompileAccumulatesMultipleErrors(t *testing.T) {
	heap := object.NewHeap()
	_, errs := compiler.Compile("var; var;", heap)
	require.GreaterOrEqual(t, len(errs), 2)
}
