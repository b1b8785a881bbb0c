package object

import "github.com/mblk/cslox/lang/value"

// Heap tracks every object allocated during compilation and execution. The
// reference implementation threads allocations through a manual,
// singly-linked object list so it can free everything at once on teardown;
// here that role is taken over by the Go garbage collector, and Heap is
// reduced to a lightweight allocation ledger whose count is exposed through
// Len; nothing load-bearing for correctness depends on it.
type Heap struct {
	objects []value.Object
	Strings Interner
}

// NewHeap returns an empty, ready-to-use Heap.
func NewHeap() *Heap {
	h := &Heap{}
	h.Strings.heap = h
	return h
}

func (h *Heap) track(o value.Object) {
	h.objects = append(h.objects, o)
}

// Len returns the number of objects ever allocated on this heap.
func (h *Heap) Len() int { return len(h.objects) }

// NewFunction allocates a new, empty Function and tracks it on the heap.
func (h *Heap) NewFunction() *Function {
	fn := &Function{}
	h.track(fn)
	return fn
}

// NewClosure allocates a Closure wrapping fn with upvalueCount empty upvalue
// slots.
func (h *Heap) NewClosure(fn *Function) *Closure {
	c := &Closure{Function: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
	h.track(c)
	return c
}

// NewUpvalue allocates an open Upvalue pointing at location.
func (h *Heap) NewUpvalue(location *value.Value) *Upvalue {
	u := &Upvalue{Location: location}
	h.track(u)
	return u
}

// NewNative allocates a host-backed Native callable.
func (h *Heap) NewNative(name string, arity int, fn NativeFn) *Native {
	n := &Native{Name: h.Strings.Intern(name), Arity: arity, Fn: fn}
	h.track(n)
	return n
}

// Interner is the canonical-string table: every String value with the same
// content resolves to the same *String object, giving strings
// reference-identity equality.
type Interner struct {
	table value.Table
	heap  *Heap
}

// Intern returns the canonical *String for chars, allocating a new one only
// if no equal string has been interned yet.
func (in *Interner) Intern(chars string) *String {
	h := fnv1a32(chars)
	if obj := in.table.FindString(chars, h); obj != nil {
		return obj.(*String)
	}
	s := &String{chars: chars, hash: h}
	in.heap.track(s)
	in.table.Set(value.Obj(s), value.Nil)
	return s
}
