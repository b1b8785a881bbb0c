// Package compiler implements the single-pass, Pratt-precedence compiler
// that lowers Lox source directly to bytecode, and the opcode table the
// machine and debug packages share.
//
// The opcode layout and "stack picture" comment convention is adapted from
// nenuphar's lang/compiler/opcode.go; unlike nenuphar's assembler-over-AST
// pipeline, this compiler never builds an intermediate tree — it emits
// bytecode as it parses, in the manner of the single-pass reference
// implementation this language is ported from.
package compiler

import "fmt"

// Opcode identifies a bytecode instruction. Most indexed instructions have
// two encodings: an 8-bit index form and a 32-bit "_LONG" form used once the
// index no longer fits in a byte.
type Opcode uint8

//nolint:revive
const (
	OpConstant     Opcode = iota // - OpConstant<u8>      value
	OpConstantLong               // - OpConstantLong<u32> value
	OpNil                        // - OpNil               nil
	OpTrue                       // - OpTrue              true
	OpFalse                      // - OpFalse             false
	OpPop                        // x OpPop               -
	OpGetLocal                   // - OpGetLocal<u8>      value
	OpGetLocalLong               // - OpGetLocalLong<u32> value
	OpSetLocal                   // x OpSetLocal<u8>      x
	OpSetLocalLong               // x OpSetLocalLong<u32> x
	OpGetGlobal                  // - OpGetGlobal<u8>      value
	OpGetGlobalLong              // - OpGetGlobalLong<u32> value
	OpDefineGlobal               // x OpDefineGlobal<u8>      -
	OpDefineGlobalLong           // x OpDefineGlobalLong<u32> -
	OpSetGlobal                  // x OpSetGlobal<u8>      x
	OpSetGlobalLong              // x OpSetGlobalLong<u32> x
	OpGetUpvalue                 // - OpGetUpvalue<u8>     value
	OpGetUpvalueLong             // - OpGetUpvalueLong<u32> value
	OpSetUpvalue                 // x OpSetUpvalue<u8>     x
	OpSetUpvalueLong             // x OpSetUpvalueLong<u32> x
	OpEqual                      // a b OpEqual    bool
	OpGreater                    // a b OpGreater  bool
	OpLess                       // a b OpLess     bool
	OpAdd                        // a b OpAdd      (a+b)
	OpSubtract                   // a b OpSubtract (a-b)
	OpMultiply                   // a b OpMultiply (a*b)
	OpDivide                     // a b OpDivide   (a/b)
	OpNot                        // x OpNot   !x
	OpNegate                     // x OpNegate -x
	OpPrint                      // x OpPrint -
	OpJump                       // - OpJump<i16>          -
	OpJumpIfTrue                 // x OpJumpIfTrue<i16>  x  (leaves x on the stack)
	OpJumpIfFalse                // x OpJumpIfFalse<i16> x  (leaves x on the stack)
	OpCall                       // callee arg1..argN OpCall<u8 argc> result
	OpClosure                    // - OpClosure<u8 fnIndex> (u8 isLocal, u8 index)* closure
	OpCloseUpvalue               // x OpCloseUpvalue -
	OpReturn                     // x OpReturn -  (caller-visible: frame pops, x pushed)

	opcodeCount
)

var names = [...]string{
	OpConstant:         "OP_CONSTANT",
	OpConstantLong:     "OP_CONSTANT_LONG",
	OpNil:              "OP_NIL",
	OpTrue:             "OP_TRUE",
	OpFalse:            "OP_FALSE",
	OpPop:              "OP_POP",
	OpGetLocal:         "OP_GET_LOCAL",
	OpGetLocalLong:     "OP_GET_LOCAL_LONG",
	OpSetLocal:         "OP_SET_LOCAL",
	OpSetLocalLong:     "OP_SET_LOCAL_LONG",
	OpGetGlobal:        "OP_GET_GLOBAL",
	OpGetGlobalLong:    "OP_GET_GLOBAL_LONG",
	OpDefineGlobal:     "OP_DEFINE_GLOBAL",
	OpDefineGlobalLong: "OP_DEFINE_GLOBAL_LONG",
	OpSetGlobal:        "OP_SET_GLOBAL",
	OpSetGlobalLong:    "OP_SET_GLOBAL_LONG",
	OpGetUpvalue:       "OP_GET_UPVALUE",
	OpGetUpvalueLong:   "OP_GET_UPVALUE_LONG",
	OpSetUpvalue:       "OP_SET_UPVALUE",
	OpSetUpvalueLong:   "OP_SET_UPVALUE_LONG",
	OpEqual:            "OP_EQUAL",
	OpGreater:          "OP_GREATER",
	OpLess:             "OP_LESS",
	OpAdd:              "OP_ADD",
	OpSubtract:         "OP_SUBTRACT",
	OpMultiply:         "OP_MULTIPLY",
	OpDivide:           "OP_DIVIDE",
	OpNot:              "OP_NOT",
	OpNegate:           "OP_NEGATE",
	OpPrint:            "OP_PRINT",
	OpJump:             "OP_JUMP",
	OpJumpIfTrue:       "OP_JUMP_IF_TRUE",
	OpJumpIfFalse:      "OP_JUMP_IF_FALSE",
	OpCall:             "OP_CALL",
	OpClosure:          "OP_CLOSURE",
	OpCloseUpvalue:     "OP_CLOSE_UPVALUE",
	OpReturn:           "OP_RETURN",
}

func (op Opcode) String() string {
	if op < opcodeCount {
		return names[op]
	}
	return fmt.Sprintf("OP_UNKNOWN(%d)", uint8(op))
}

// shortToLong maps an 8-bit-index opcode to its 32-bit-index counterpart.
// The compiler picks whichever form the operand fits.
var shortToLong = map[Opcode]Opcode{
	OpConstant:     OpConstantLong,
	OpGetLocal:     OpGetLocalLong,
	OpSetLocal:     OpSetLocalLong,
	OpGetGlobal:    OpGetGlobalLong,
	OpDefineGlobal: OpDefineGlobalLong,
	OpSetGlobal:    OpSetGlobalLong,
	OpGetUpvalue:   OpGetUpvalueLong,
	OpSetUpvalue:   OpSetUpvalueLong,
}
