// Package value implements the tagged Value union the compiler and machine
// pass around, together with the bytecode Chunk and the open-addressed hash
// Table built on top of it.
//
// The layering mirrors nenuphar's split between a lightweight runtime value
// representation (lang/machine/value.go) and the heap object kinds that back
// it (lang/machine/function.go, map.go, ...): Value itself knows nothing
// about concrete object shapes beyond the Object interface, so the object
// package can define String/Function/Closure/Upvalue/Native without this
// package importing it back.
package value

import (
	"fmt"
	"math"
)

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObject
)

// ObjKind discriminates the concrete shape of an Object.
type ObjKind uint8

const (
	ObjString ObjKind = iota
	ObjFunction
	ObjClosure
	ObjUpvalue
	ObjNative
)

// Object is implemented by every heap-allocated value kind (strings,
// functions, closures, upvalues, natives). Identity comparison of Objects
// (via ==) is what gives interned strings reference-equality semantics.
type Object interface {
	ObjKind() ObjKind
	// Hash returns a stable hash of the object's content, used by Table.
	// String objects cache their hash at creation time; other object kinds
	// may hash their pointer identity.
	Hash() uint32
	fmt.Stringer
}

// Value is a cheap-to-copy tagged union: Nil, Bool, Number(float64) or a
// reference to a heap Object.
type Value struct {
	kind Kind
	num  float64 // holds the float64 payload, or 0/1 for Bool
	obj  Object
}

// Nil is the singular nil value.
var Nil = Value{kind: KindNil}

// Bool returns a boxed boolean value.
func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, num: 1}
	}
	return Value{kind: KindBool, num: 0}
}

// Number returns a boxed float64 value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Obj returns a Value referencing the given heap Object.
func Obj(o Object) Value { return Value{kind: KindObject, obj: o} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsObject() bool { return v.kind == KindObject }

func (v Value) AsBool() bool      { return v.num != 0 }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsObject() Object  { return v.obj }

// ObjKind returns the concrete object kind, valid only when IsObject.
func (v Value) ObjKind() ObjKind { return v.obj.ObjKind() }

// IsObjKind reports whether v is an object of the given kind.
func (v Value) IsObjKind(k ObjKind) bool { return v.kind == KindObject && v.obj.ObjKind() == k }

// Falsey reports whether v is falsey: Nil or Bool(false). Everything else is
// truthy.
func (v Value) Falsey() bool {
	return v.kind == KindNil || (v.kind == KindBool && v.num == 0)
}

// Equal implements Lox's "==": same variant and same payload, where Object
// payloads compare by reference identity (interned strings make this
// structural for strings).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.num == other.num
	case KindNumber:
		return v.num == other.num
	case KindObject:
		return v.obj == other.obj
	default:
		return false
	}
}

// String renders v using the language's display rules (§6 Value display).
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.num)
	case KindObject:
		return v.obj.String()
	default:
		return "<invalid>"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) && !isNegZero(n) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func isNegZero(n float64) bool {
	return n == 0 && (1/n) < 0
}

// hash computes the Table bucket hash for a Value.
func hash(v Value) uint32 {
	switch v.kind {
	case KindNil:
		return 0
	case KindBool:
		if v.num != 0 {
			return 1
		}
		return 2
	case KindNumber:
		bits := math.Float64bits(v.num)
		return uint32(bits) ^ uint32(bits>>32)
	case KindObject:
		return v.obj.Hash()
	default:
		return 0
	}
}
