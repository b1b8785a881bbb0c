// Package machine implements the stack-based virtual machine that executes
// the bytecode produced by lang/compiler: call frames, the value stack, the
// globals table, open-upvalue bookkeeping and closure/native invocation.
//
// The fetch-decode-dispatch loop and the cached-frame-pointer discipline
// ("whenever the VM leaves the loop, the cached pointer must already be
// consistent with the frame record, and re-read on re-entry", §4.5 and
// design note "Cached ip register") are adapted from nenuphar's
// lang/machine/machine.go dispatch loop, generalized from its LEB128
// variable-width operand encoding to the fixed 8-/32-bit indexed opcodes
// this instruction set uses.
package machine

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unsafe"

	"github.com/mblk/cslox/lang/compiler"
	"github.com/mblk/cslox/lang/object"
	"github.com/mblk/cslox/lang/value"
)

const (
	FramesMax = 256
	StackMax  = FramesMax * 256
)

// Frame records one call to a Closure: its bytecode cursor and the stack
// slot where its locals begin (slot 0 holds the closure itself).
type Frame struct {
	closure *object.Closure
	ip      int
	base    int
}

// VM is the register-less stack machine: one value stack, one frame stack,
// a globals table and the open-upvalue list, all owned exclusively by the
// interpreter loop running on a single goroutine.
type VM struct {
	heap *object.Heap

	stack []value.Value
	sp    int

	frames     []Frame
	frameCount int

	globals      value.Table
	openUpvalues *object.Upvalue

	stdout io.Writer
	stderr io.Writer
	start  time.Time
}

// New returns a VM ready to interpret, with the native registry already
// bound into its globals table.
func New(heap *object.Heap, stdout, stderr io.Writer) *VM {
	vm := &VM{
		heap:   heap,
		stack:  make([]value.Value, StackMax),
		frames: make([]Frame, FramesMax),
		stdout: stdout,
		stderr: stderr,
		start:  time.Now(),
	}
	vm.defineNatives()
	return vm
}

func (vm *VM) resetStack() {
	vm.sp = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.sp-1-distance]
}

// Interpret wraps fn in a Closure, pushes the initial call frame and runs
// it to completion. It returns a non-nil error on a runtime error; by then
// the error and a stack trace have already been written to the VM's
// stderr, and the stack/frame state has been reset.
func (vm *VM) Interpret(fn *object.Function) error {
	vm.resetStack()
	closure := vm.heap.NewClosure(fn)
	vm.push(value.Obj(closure))
	if err := vm.callClosure(closure, 0); err != nil {
		return err
	}
	return vm.run()
}

// StackDepth and FrameDepth expose the post-run stack/frame sizes, used by
// tests asserting the "value stack is empty, frame stack is empty on a
// normal exit" invariant.
func (vm *VM) StackDepth() int { return vm.sp }
func (vm *VM) FrameDepth() int { return vm.frameCount }

func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]
	code := func() []byte { return frame.closure.Function.Chunk.Code }

	for {
		op := compiler.Opcode(code()[frame.ip])
		frame.ip++

		switch op {
		case compiler.OpConstant, compiler.OpConstantLong:
			idx := vm.readIndex(frame, op == compiler.OpConstantLong)
			vm.push(frame.closure.Function.Chunk.Constants[idx])

		case compiler.OpNil:
			vm.push(value.Nil)
		case compiler.OpTrue:
			vm.push(value.Bool(true))
		case compiler.OpFalse:
			vm.push(value.Bool(false))
		case compiler.OpPop:
			vm.pop()

		case compiler.OpGetLocal, compiler.OpGetLocalLong:
			slot := vm.readIndex(frame, op == compiler.OpGetLocalLong)
			vm.push(vm.stack[frame.base+slot])
		case compiler.OpSetLocal, compiler.OpSetLocalLong:
			slot := vm.readIndex(frame, op == compiler.OpSetLocalLong)
			vm.stack[frame.base+slot] = vm.peek(0)

		case compiler.OpGetGlobal, compiler.OpGetGlobalLong:
			name := vm.readGlobalName(frame, op == compiler.OpGetGlobalLong)
			v, ok := vm.globals.Get(value.Obj(name))
			if !ok {
				return vm.runtimeError("Undefined variable '%s'", name.Content())
			}
			vm.push(v)

		case compiler.OpDefineGlobal, compiler.OpDefineGlobalLong:
			name := vm.readGlobalName(frame, op == compiler.OpDefineGlobalLong)
			vm.globals.Set(value.Obj(name), vm.pop())

		case compiler.OpSetGlobal, compiler.OpSetGlobalLong:
			name := vm.readGlobalName(frame, op == compiler.OpSetGlobalLong)
			if vm.globals.Set(value.Obj(name), vm.peek(0)) {
				vm.globals.Delete(value.Obj(name))
				return vm.runtimeError("Undefined variable '%s'", name.Content())
			}

		case compiler.OpGetUpvalue, compiler.OpGetUpvalueLong:
			idx := vm.readIndex(frame, op == compiler.OpGetUpvalueLong)
			vm.push(*frame.closure.Upvalues[idx].Location)
		case compiler.OpSetUpvalue, compiler.OpSetUpvalueLong:
			idx := vm.readIndex(frame, op == compiler.OpSetUpvalueLong)
			*frame.closure.Upvalues[idx].Location = vm.peek(0)

		case compiler.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(a.Equal(b)))
		case compiler.OpGreater:
			if err := vm.numericBinary(func(a, b float64) value.Value { return value.Bool(a > b) }); err != nil {
				return err
			}
		case compiler.OpLess:
			if err := vm.numericBinary(func(a, b float64) value.Value { return value.Bool(a < b) }); err != nil {
				return err
			}

		case compiler.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case compiler.OpSubtract:
			if err := vm.numericBinary(func(a, b float64) value.Value { return value.Number(a - b) }); err != nil {
				return err
			}
		case compiler.OpMultiply:
			if err := vm.numericBinary(func(a, b float64) value.Value { return value.Number(a * b) }); err != nil {
				return err
			}
		case compiler.OpDivide:
			if err := vm.numericBinary(func(a, b float64) value.Value { return value.Number(a / b) }); err != nil {
				return err
			}

		case compiler.OpNot:
			vm.push(value.Bool(vm.pop().Falsey()))
		case compiler.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case compiler.OpPrint:
			fmt.Fprintln(vm.stdout, vm.pop().String())

		case compiler.OpJump:
			frame.ip += vm.readI16(frame)
		case compiler.OpJumpIfTrue:
			offset := vm.readI16(frame)
			if !vm.peek(0).Falsey() {
				frame.ip += offset
			}
		case compiler.OpJumpIfFalse:
			offset := vm.readI16(frame)
			if vm.peek(0).Falsey() {
				frame.ip += offset
			}

		case compiler.OpCall:
			argc := int(code()[frame.ip])
			frame.ip++
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case compiler.OpClosure:
			fnIdx := int(code()[frame.ip])
			frame.ip++
			fn := frame.closure.Function.Chunk.Constants[fnIdx].AsObject().(*object.Function)
			closure := vm.heap.NewClosure(fn)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := code()[frame.ip] != 0
				frame.ip++
				idx := int(code()[frame.ip])
				frame.ip++
				if isLocal {
					closure.Upvalues[i] = vm.captureUpvalue(&vm.stack[frame.base+idx])
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[idx]
				}
			}
			vm.push(value.Obj(closure))

		case compiler.OpCloseUpvalue:
			vm.closeUpvalues(&vm.stack[vm.sp-1])
			vm.pop()

		case compiler.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(&vm.stack[frame.base])
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop() // the script closure itself
				return nil
			}
			vm.sp = frame.base
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		default:
			return vm.runtimeError("Unknown opcode %d.", byte(op))
		}
	}
}

// readIndex reads either an 8-bit or a 32-bit index operand from frame's
// bytecode, advancing its ip past the operand.
func (vm *VM) readIndex(frame *Frame, long bool) int {
	code := frame.closure.Function.Chunk.Code
	if !long {
		b := code[frame.ip]
		frame.ip++
		return int(b)
	}
	w := frame.closure.Function.Chunk.ReadU32(frame.ip)
	frame.ip += 4
	return int(w)
}

func (vm *VM) readGlobalName(frame *Frame, long bool) *object.String {
	idx := vm.readIndex(frame, long)
	return frame.closure.Function.Chunk.Constants[idx].AsObject().(*object.String)
}

// readI16 reads the 2-byte signed jump displacement, measured from the
// byte immediately following it (i.e. target = ip-after-operand + offset).
func (vm *VM) readI16(frame *Frame) int {
	code := frame.closure.Function.Chunk.Code
	lo, hi := code[frame.ip], code[frame.ip+1]
	frame.ip += 2
	return int(int16(uint16(lo) | uint16(hi)<<8))
}

func (vm *VM) numericBinary(op func(a, b float64) value.Value) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b, a := vm.pop(), vm.pop()
	vm.push(op(a.AsNumber(), b.AsNumber()))
	return nil
}

// add implements OP_ADD's dual numeric/string semantics, interning the
// concatenation result the same way string literals are interned.
func (vm *VM) add() error {
	b, a := vm.peek(0), vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(value.Number(a.AsNumber() + b.AsNumber()))
	case a.IsObjKind(value.ObjString) && b.IsObjKind(value.ObjString):
		vm.pop()
		vm.pop()
		as := a.AsObject().(*object.String)
		bs := b.AsObject().(*object.String)
		vm.push(value.Obj(vm.heap.Strings.Intern(as.Content() + bs.Content())))
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
	return nil
}

// callValue dispatches CALL per §4.5: closures push a new frame, natives
// are invoked synchronously, anything else is a runtime error.
func (vm *VM) callValue(callee value.Value, argc int) error {
	if !callee.IsObject() {
		return vm.runtimeError("Can only call functions and classes.")
	}
	switch callee.ObjKind() {
	case value.ObjClosure:
		return vm.callClosure(callee.AsObject().(*object.Closure), argc)
	case value.ObjNative:
		return vm.callNative(callee.AsObject().(*object.Native), argc)
	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

func (vm *VM) callClosure(closure *object.Closure, argc int) error {
	if argc != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if vm.frameCount == FramesMax {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames[vm.frameCount] = Frame{closure: closure, base: vm.sp - argc - 1}
	vm.frameCount++
	return nil
}

func (vm *VM) callNative(native *object.Native, argc int) error {
	if native.Arity != object.VariadicArity && argc != native.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", native.Arity, argc)
	}
	args := vm.stack[vm.sp-argc : vm.sp]
	result, err := native.Fn(args)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = fmt.Sprintf("Call to native function '%s' failed", native.Name.Content())
		}
		return vm.runtimeError("%s", msg)
	}
	vm.sp -= argc + 1
	vm.push(result)
	return nil
}

// --- upvalues ---

func addrOf(v *value.Value) uintptr { return uintptr(unsafe.Pointer(v)) }

// captureUpvalue finds or creates the open Upvalue for a stack slot,
// keeping the open-upvalue list sorted strictly descending by Location so
// two closures over the same local always share one Upvalue.
func (vm *VM) captureUpvalue(location *value.Value) *object.Upvalue {
	var prev *object.Upvalue
	cur := vm.openUpvalues
	for cur != nil && addrOf(cur.Location) > addrOf(location) {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.Location == location {
		return cur
	}

	created := vm.heap.NewUpvalue(location)
	created.Next = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue whose Location is at or above
// threshold, moving its value off the stack and into heap-resident
// storage.
func (vm *VM) closeUpvalues(threshold *value.Value) {
	for vm.openUpvalues != nil && addrOf(vm.openUpvalues.Location) >= addrOf(threshold) {
		u := vm.openUpvalues
		u.Close()
		vm.openUpvalues = u.Next
	}
}

// runtimeError reports a runtime error: the message and a frame-by-frame
// stack trace are written to stderr in the §6 "Runtime errors (shape)"
// format, and the VM's stack and frame state are reset.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	fmt.Fprintf(vm.stderr, "RuntimeError: %s\n", msg)

	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.closure.Function
		line := fn.Chunk.LineForOffset(frame.ip - 1)
		if fn.Name == nil {
			fmt.Fprintf(vm.stderr, "[line %d] in script\n", line)
		} else {
			fmt.Fprintf(vm.stderr, "[line %d] in %s()\n", line, fn.Name.Content())
		}
	}

	vm.resetStack()
	return errRuntime
}

var errRuntime = fmt.Errorf("runtime error")
