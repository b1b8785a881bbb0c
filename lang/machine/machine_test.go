package machine_test

import (
	"bytes"
	"testing"

	"github.com/mblk/cslox/lang/compiler"
	"github.com/mblk/cslox/lang/machine"
	"github.com/mblk/cslox/lang/object"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, source string) (stdout, stderr string, err error) {
	t.Helper()
	heap := object.NewHeap()
	fn, errs := compiler.Compile(source, heap)
	require.Empty(t, errs)
	var outBuf, errBuf bytes.Buffer
	vm := machine.New(heap, &outBuf, &errBuf)
	err = vm.Interpret(fn)
	return outBuf.String(), errBuf.String(), err
}

func TestArithmeticAndPrint(t *testing.T) {
	out, _, err := run(t, "print 1 + 2 * 3;")
	require.NoError(t, err)
	require.Equal(t, "7\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, _, err := run(t, `print "foo" + "bar";`)
	require.NoError(t, err)
	require.Equal(t, "foobar\n", out)
}

func TestGlobalDefineGetSet(t *testing.T) {
	out, _, err := run(t, `
		var x = 1;
		x = x + 1;
		print x;
	`)
	require.NoError(t, err)
	require.Equal(t, "2\n", out)
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, errOut, err := run(t, "print x;")
	require.Error(t, err)
	require.Contains(t, errOut, "Undefined variable 'x'")
}

func TestAssignToUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, errOut, err := run(t, "x = 1;")
	require.Error(t, err)
	require.Contains(t, errOut, "Undefined variable 'x'")
}

func TestIfElseBranching(t *testing.T) {
	out, _, err := run(t, `
		if (1 < 2) { print "yes"; } else { print "no"; }
	`)
	require.NoError(t, err)
	require.Equal(t, "yes\n", out)
}

func TestLogicalOrShortCircuits(t *testing.T) {
	out, _, err := run(t, `
		var calls = 0;
		fun sideEffect() { calls = calls + 1; return true; }
		print true or sideEffect();
		print calls;
		print nil or sideEffect();
		print calls;
	`)
	require.NoError(t, err)
	require.Equal(t, "true\n0\ntrue\n1\n", out)
}

func TestLogicalAndShortCircuits(t *testing.T) {
	out, _, err := run(t, `
		var calls = 0;
		fun sideEffect() { calls = calls + 1; return true; }
		print false and sideEffect();
		print calls;
		print true and sideEffect();
		print calls;
	`)
	require.NoError(t, err)
	require.Equal(t, "false\n0\ntrue\n1\n", out)
}

func TestWhileLoop(t *testing.T) {
	out, _, err := run(t, `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		print sum;
	`)
	require.NoError(t, err)
	require.Equal(t, "10\n", out)
}

func TestFunctionCallAndReturn(t *testing.T) {
	out, _, err := run(t, `
		fun add(a, b) { return a + b; }
		print add(3, 4);
	`)
	require.NoError(t, err)
	require.Equal(t, "7\n", out)
}

func TestClosureCapturesAndMutatesUpvalue(t *testing.T) {
	out, _, err := run(t, `
		fun counter() {
			var n = 0;
			fun inc() {
				n = n + 1;
				return n;
			}
			return inc;
		}
		var c = counter();
		print c();
		print c();
		print c();
	`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestTwoClosuresShareSameUpvalue(t *testing.T) {
	out, _, err := run(t, `
		fun pair() {
			var n = 0;
			fun get() { return n; }
			fun set(v) { n = v; }
			set(42);
			return get();
		}
		print pair();
	`)
	require.NoError(t, err)
	require.Equal(t, "42\n", out)
}

func TestCallArityMismatchIsRuntimeError(t *testing.T) {
	_, errOut, err := run(t, `
		fun f(a) { return a; }
		f(1, 2);
	`)
	require.Error(t, err)
	require.Contains(t, errOut, "Expected 1 arguments but got 2")
}

func TestCallingNonCallableIsRuntimeError(t *testing.T) {
	_, errOut, err := run(t, `
		var x = 1;
		x();
	`)
	require.Error(t, err)
	require.Contains(t, errOut, "Can only call functions and classes")
}

func TestAddingIncompatibleTypesIsRuntimeError(t *testing.T) {
	_, errOut, err := run(t, `print 1 + "a";`)
	require.Error(t, err)
	require.Contains(t, errOut, "Operands must be two numbers or two strings")
}

func TestRuntimeErrorIncludesStackTrace(t *testing.T) {
	_, errOut, err := run(t, `
		fun a() { return 1 + "x"; }
		fun b() { return a(); }
		b();
	`)
	require.Error(t, err)
	require.Contains(t, errOut, "in a()")
	require.Contains(t, errOut, "in b()")
	require.Contains(t, errOut, "in script")
}

func TestStackAndFrameResetAfterNormalRun(t *testing.T) {
	heap := object.NewHeap()
	fn, errs := compiler.Compile("print 1;", heap)
	require.Empty(t, errs)
	var out, errBuf bytes.Buffer
	vm := machine.New(heap, &out, &errBuf)
	require.NoError(t, vm.Interpret(fn))
	require.Equal(t, 0, vm.StackDepth())
	require.Equal(t, 0, vm.FrameDepth())
}

func TestSwitchCaseLocalsAreScopedPerCase(t *testing.T) {
	out, _, err := run(t, `
		var x = 1;
		switch (x) {
			case 1:
				var y = "from case 1";
				print y;
			case 2:
				var y = "from case 2";
				print y;
			default:
				print "default";
		}
	`)
	require.NoError(t, err)
	require.Equal(t, "from case 1\n", out)
}

func TestTernaryExpression(t *testing.T) {
	out, _, err := run(t, `print 1 < 2 ? "a" : "b";`)
	require.NoError(t, err)
	require.Equal(t, "a\n", out)
}

func TestNativeClockReturnsNumber(t *testing.T) {
	out, _, err := run(t, `print clock() >= 0;`)
	require.NoError(t, err)
	require.Equal(t, "true\n", out)
}

func TestNativeAssertPassesThroughTruthyValue(t *testing.T) {
	out, _, err := run(t, `print assert(42);`)
	require.NoError(t, err)
	require.Equal(t, "42\n", out)
}

func TestNativeAssertFailsOnFalsey(t *testing.T) {
	_, errOut, err := run(t, `assert(false);`)
	require.Error(t, err)
	require.Contains(t, errOut, "Assertion failed")
}

func TestNativeToStringAndPrintf(t *testing.T) {
	out, _, err := run(t, `printf("{} plus {} is {}", 1, 2, tostring(1 + 2));`)
	require.NoError(t, err)
	require.Equal(t, "1 plus 2 is 3", out)
}
