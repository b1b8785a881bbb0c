// Package debug implements the bytecode disassembler: human-readable
// listings of a Chunk, used by tests asserting on emitted bytecode shape.
// The CLI does not call it.
//
// Layout follows nenuphar's lang/machine/opcode.go disassembly helpers
// (offset, line-or-"|", mnemonic, decoded operands), adapted from its
// LEB128 variable-width decoding to this instruction set's fixed 8-/32-bit
// indexed operands and signed 16-bit jump displacements.
package debug

import (
	"fmt"
	"io"

	"github.com/mblk/cslox/lang/compiler"
	"github.com/mblk/cslox/lang/object"
	"github.com/mblk/cslox/lang/value"
)

// DisassembleChunk writes every instruction in chunk to w, prefixed by
// name as a header.
func DisassembleChunk(w io.Writer, chunk *value.Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = DisassembleInstruction(w, chunk, offset)
	}
}

// DisassembleInstruction writes the single instruction at offset and
// returns the offset of the next one.
func DisassembleInstruction(w io.Writer, chunk *value.Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)

	line := chunk.LineForOffset(offset)
	if offset > 0 && line == chunk.LineForOffset(offset-1) {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", line)
	}

	op := compiler.Opcode(chunk.Code[offset])
	switch op {
	case compiler.OpConstant, compiler.OpGetGlobal, compiler.OpDefineGlobal, compiler.OpSetGlobal:
		return constantInstruction(w, op, chunk, offset, false)
	case compiler.OpConstantLong, compiler.OpGetGlobalLong, compiler.OpDefineGlobalLong, compiler.OpSetGlobalLong:
		return constantInstruction(w, op, chunk, offset, true)

	case compiler.OpGetLocal, compiler.OpSetLocal, compiler.OpGetUpvalue, compiler.OpSetUpvalue:
		return byteInstruction(w, op, chunk, offset, false)
	case compiler.OpGetLocalLong, compiler.OpSetLocalLong, compiler.OpGetUpvalueLong, compiler.OpSetUpvalueLong:
		return byteInstruction(w, op, chunk, offset, true)

	case compiler.OpJump, compiler.OpJumpIfTrue, compiler.OpJumpIfFalse:
		return jumpInstruction(w, op, chunk, offset)

	case compiler.OpCall:
		argc := chunk.ReadByte(offset + 1)
		fmt.Fprintf(w, "%-20s %4d\n", op, argc)
		return offset + 2

	case compiler.OpClosure:
		return closureInstruction(w, chunk, offset)

	default:
		fmt.Fprintf(w, "%s\n", op)
		return offset + 1
	}
}

func constantInstruction(w io.Writer, op compiler.Opcode, chunk *value.Chunk, offset int, long bool) int {
	var idx int
	var next int
	if long {
		idx = int(chunk.ReadU32(offset + 1))
		next = offset + 5
	} else {
		idx = int(chunk.ReadByte(offset + 1))
		next = offset + 2
	}
	fmt.Fprintf(w, "%-20s %4d '%s'\n", op, idx, describeConstant(chunk.Constants[idx]))
	return next
}

func byteInstruction(w io.Writer, op compiler.Opcode, chunk *value.Chunk, offset int, long bool) int {
	var idx int
	var next int
	if long {
		idx = int(chunk.ReadU32(offset + 1))
		next = offset + 5
	} else {
		idx = int(chunk.ReadByte(offset + 1))
		next = offset + 2
	}
	fmt.Fprintf(w, "%-20s %4d\n", op, idx)
	return next
}

func jumpInstruction(w io.Writer, op compiler.Opcode, chunk *value.Chunk, offset int) int {
	lo, hi := chunk.ReadByte(offset+1), chunk.ReadByte(offset+2)
	displacement := int(int16(uint16(lo) | uint16(hi)<<8))
	target := offset + 3 + displacement
	fmt.Fprintf(w, "%-20s %4d -> %d\n", op, displacement, target)
	return offset + 3
}

func closureInstruction(w io.Writer, chunk *value.Chunk, offset int) int {
	fnIdx := int(chunk.ReadByte(offset + 1))
	fmt.Fprintf(w, "%-20s %4d '%s'\n", compiler.OpClosure, fnIdx, describeConstant(chunk.Constants[fnIdx]))
	next := offset + 2

	fn, ok := chunk.Constants[fnIdx].AsObject().(*object.Function)
	if !ok {
		return next
	}
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.ReadByte(next) != 0
		idx := chunk.ReadByte(next + 1)
		kind := "upvalue"
		if isLocal {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", next, kind, idx)
		next += 2
	}
	return next
}

func describeConstant(v value.Value) string {
	return v.String()
}
