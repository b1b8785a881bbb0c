package machine

import (
	"fmt"
	"strings"
	"time"

	"github.com/mblk/cslox/lang/object"
	"github.com/mblk/cslox/lang/value"
)

// defineNatives binds the host-function registry into vm.globals, the way
// the reference VM wires clock/etc. in before running any user code.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", 0, vm.nativeClock)
	vm.defineNative("tostring", 1, vm.nativeToString)
	vm.defineNative("assert", 1, vm.nativeAssert)
	vm.defineNative("printf", object.VariadicArity, vm.nativePrintf)
	vm.defineNative("dump", object.VariadicArity, vm.nativeDump)
}

func (vm *VM) defineNative(name string, arity int, fn object.NativeFn) {
	native := vm.heap.NewNative(name, arity, fn)
	vm.globals.Set(value.Obj(vm.heap.Strings.Intern(name)), value.Obj(native))
}

// nativeClock returns the number of seconds elapsed since the VM started,
// mirroring the reference implementation's CLOCKS_PER_SEC-based clock().
func (vm *VM) nativeClock(args []value.Value) (value.Value, error) {
	return value.Number(time.Since(vm.start).Seconds()), nil
}

func (vm *VM) nativeToString(args []value.Value) (value.Value, error) {
	return value.Obj(vm.heap.Strings.Intern(args[0].String())), nil
}

func (vm *VM) nativeAssert(args []value.Value) (value.Value, error) {
	if args[0].Falsey() {
		return value.Nil, fmt.Errorf("Assertion failed")
	}
	return args[0], nil
}

// nativePrintf takes a format string containing "{}" placeholders and
// substitutes each with the next argument's display string, writing the
// result to the VM's stdout.
func (vm *VM) nativePrintf(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Nil, fmt.Errorf("printf expects a format string")
	}
	format, ok := args[0].AsObject().(interface{ Content() string })
	if !ok || !args[0].IsObjKind(value.ObjString) {
		return value.Nil, fmt.Errorf("printf expects a string as its first argument")
	}

	rest := args[1:]
	var b strings.Builder
	s := format.Content()
	next := 0
	for {
		i := strings.Index(s, "{}")
		if i == -1 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:i])
		if next < len(rest) {
			b.WriteString(rest[next].String())
			next++
		} else {
			b.WriteString("{}")
		}
		s = s[i+2:]
	}
	fmt.Fprint(vm.stdout, b.String())
	return value.Nil, nil
}

// nativeDump writes every argument's display string to stdout, one per
// line, for ad-hoc debugging of running scripts.
func (vm *VM) nativeDump(args []value.Value) (value.Value, error) {
	for _, a := range args {
		fmt.Fprintln(vm.stdout, a.String())
	}
	return value.Nil, nil
}
