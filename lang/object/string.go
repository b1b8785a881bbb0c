package object

import "github.com/mblk/cslox/lang/value"

// String is an immutable, interned byte sequence. Every String with
// identical content is the same object; Interner guarantees this.
type String struct {
	chars string
	hash  uint32
}

var _ value.Object = (*String)(nil)

func (s *String) ObjKind() value.ObjKind { return value.ObjString }
func (s *String) Hash() uint32           { return s.hash }
func (s *String) String() string         { return s.chars }

// Content returns the raw bytes of the string. Named distinctly from
// String() (which satisfies fmt.Stringer for display) so Table.FindString
// can type-assert for it without importing this package.
func (s *String) Content() string { return s.chars }

// Len returns the byte length of the string.
func (s *String) Len() int { return len(s.chars) }

// fnv1a32 hashes chars the same way the reference implementation does, so
// that two ports of the same source produce the same intern-table layout
// (useful only for debugging symmetry; no correctness invariant depends on
// the specific hash function).
func fnv1a32(chars string) uint32 {
	const (
		offsetBasis = 2166136261
		prime       = 16777619
	)
	h := uint32(offsetBasis)
	for i := 0; i < len(chars); i++ {
		h ^= uint32(chars[i])
		h *= prime
	}
	return h
}
