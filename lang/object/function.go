package object

import (
	"fmt"
	"unsafe"

	"github.com/mblk/cslox/lang/value"
)

// Function is an immutable compiled function: its arity, how many upvalues
// its closures must capture, and the bytecode chunk implementing its body.
// A Function is produced once by the compiler and never mutated afterward.
type Function struct {
	Name         *String // nil for the top-level script
	Arity        int
	UpvalueCount int
	Chunk        value.Chunk
}

var _ value.Object = (*Function)(nil)

func (f *Function) ObjKind() value.ObjKind { return value.ObjFunction }

// Hash hashes by pointer identity: functions are never interned or compared
// structurally.
func (f *Function) Hash() uint32 { return uint32(uintptr(unsafe.Pointer(f))) }

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Content())
}

// Closure is the runtime pairing of a Function with its captured
// environment: one Upvalue per free variable the function body references.
type Closure struct {
	Function *Function
	Upvalues []*Upvalue
}

var _ value.Object = (*Closure)(nil)

func (c *Closure) ObjKind() value.ObjKind { return value.ObjClosure }
func (c *Closure) Hash() uint32           { return c.Function.Hash() }
func (c *Closure) String() string         { return c.Function.String() }

// Upvalue is an indirection cell letting a nested function reference a
// variable from an enclosing function's stack frame. While open, Location
// aliases a live stack slot; once the enclosing frame returns, Close copies
// the slot's value into the cell itself (Closed) and redirects Location to
// point there. Next threads open upvalues into the VM's singly linked,
// descending-by-Location list.
type Upvalue struct {
	Location *value.Value
	Closed   value.Value
	Next     *Upvalue
}

var _ value.Object = (*Upvalue)(nil)

func (u *Upvalue) ObjKind() value.ObjKind { return value.ObjUpvalue }
func (u *Upvalue) Hash() uint32           { return uint32(uintptr(unsafe.Pointer(u))) }
func (u *Upvalue) String() string         { return "upvalue" }

// Close severs the upvalue from the stack: it copies the current value out
// of Location into Closed and repoints Location at the cell's own storage,
// so subsequent reads/writes operate on heap-resident state after the
// originating frame is gone.
func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// NativeFn is a host-implemented callable. It receives the arguments slice
// (excluding the callee) and returns a value or a runtime error.
type NativeFn func(args []value.Value) (value.Value, error)

// VariadicArity marks a Native as accepting any number of arguments.
const VariadicArity = -1

// Native wraps a host function so the VM's CALL opcode can invoke it the
// same way it invokes a Closure.
type Native struct {
	Name  *String
	Arity int // VariadicArity skips the argument-count check
	Fn    NativeFn
}

var _ value.Object = (*Native)(nil)

func (n *Native) ObjKind() value.ObjKind { return value.ObjNative }
func (n *Native) Hash() uint32           { return n.Name.hash }
func (n *Native) String() string         { return fmt.Sprintf("<native fn %s>", n.Name.Content()) }
