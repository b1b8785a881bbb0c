package compiler

import (
	"strconv"

	"github.com/mblk/cslox/lang/token"
	"github.com/mblk/cslox/lang/value"
)

// Precedence levels, low to high, per §4.4. Binary operator parsing climbs
// from a given level by recursing at level+1 (left-associative); `and`/`or`
// recurse at their own level, and the ternary's else-branch recurses at
// PrecAssignment (right-associative).
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecTernary
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type (
	prefixFn func(c *Compiler, canAssign bool)
	infixFn  func(c *Compiler, canAssign bool)
)

type parseRule struct {
	prefix     prefixFn
	infix      infixFn
	precedence Precedence
}

var rules map[token.Kind]parseRule

func init() {
	rules = map[token.Kind]parseRule{
		token.LPAREN:        {prefix: grouping, infix: call, precedence: PrecCall},
		token.MINUS:         {prefix: unary, infix: binary, precedence: PrecTerm},
		token.PLUS:          {infix: binary, precedence: PrecTerm},
		token.SLASH:         {infix: binary, precedence: PrecFactor},
		token.STAR:          {infix: binary, precedence: PrecFactor},
		token.BANG:          {prefix: unary},
		token.BANG_EQUAL:    {infix: binary, precedence: PrecEquality},
		token.EQUAL_EQUAL:   {infix: binary, precedence: PrecEquality},
		token.GREATER:       {infix: binary, precedence: PrecComparison},
		token.GREATER_EQUAL: {infix: binary, precedence: PrecComparison},
		token.LESS:          {infix: binary, precedence: PrecComparison},
		token.LESS_EQUAL:    {infix: binary, precedence: PrecComparison},
		token.IDENT:         {prefix: variable},
		token.STRING:        {prefix: stringLiteral},
		token.NUMBER:        {prefix: number},
		token.AND:           {infix: and_, precedence: PrecAnd},
		token.OR:            {infix: or_, precedence: PrecOr},
		token.FALSE:         {prefix: literal},
		token.NIL:           {prefix: literal},
		token.TRUE:          {prefix: literal},
		token.QUESTION:      {infix: ternary, precedence: PrecTernary},
	}
}

func getRule(k token.Kind) parseRule { return rules[k] }

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

func (c *Compiler) parsePrecedence(min Precedence) {
	c.advance()
	prefix := getRule(c.prevTok.Kind).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := min <= PrecAssignment
	prefix(c, canAssign)

	for min <= getRule(c.curTok.Kind).precedence {
		c.advance()
		infix := getRule(c.prevTok.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && c.matchTok(token.EQUAL) {
		c.error("Invalid assignment target.")
	}
}

func number(c *Compiler, _ bool) {
	n, err := strconv.ParseFloat(c.prevTok.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.Number(n))
}

func stringLiteral(c *Compiler, _ bool) {
	raw := c.prevTok.Lexeme
	chars := raw[1 : len(raw)-1] // strip the surrounding quotes
	s := c.heap.Strings.Intern(chars)
	c.emitConstant(value.Obj(s))
}

func literal(c *Compiler, _ bool) {
	switch c.prevTok.Kind {
	case token.FALSE:
		c.emitOp(OpFalse)
	case token.NIL:
		c.emitOp(OpNil)
	case token.TRUE:
		c.emitOp(OpTrue)
	}
}

func grouping(c *Compiler, _ bool) {
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after expression.")
}

func unary(c *Compiler, _ bool) {
	opKind := c.prevTok.Kind
	c.parsePrecedence(PrecUnary)
	switch opKind {
	case token.BANG:
		c.emitOp(OpNot)
	case token.MINUS:
		c.emitOp(OpNegate)
	}
}

func binary(c *Compiler, _ bool) {
	opKind := c.prevTok.Kind
	rule := getRule(opKind)
	c.parsePrecedence(rule.precedence + 1)

	switch opKind {
	case token.PLUS:
		c.emitOp(OpAdd)
	case token.MINUS:
		c.emitOp(OpSubtract)
	case token.STAR:
		c.emitOp(OpMultiply)
	case token.SLASH:
		c.emitOp(OpDivide)
	case token.EQUAL_EQUAL:
		c.emitOp(OpEqual)
	case token.BANG_EQUAL:
		c.emitOp(OpEqual)
		c.emitOp(OpNot)
	case token.GREATER:
		c.emitOp(OpGreater)
	case token.GREATER_EQUAL:
		c.emitOp(OpLess)
		c.emitOp(OpNot)
	case token.LESS:
		c.emitOp(OpLess)
	case token.LESS_EQUAL:
		c.emitOp(OpGreater)
		c.emitOp(OpNot)
	}
}

func and_(c *Compiler, _ bool) {
	endJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func or_(c *Compiler, _ bool) {
	endJump := c.emitJump(OpJumpIfTrue)
	c.emitOp(OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

// ternary compiles `cond ? then : else`. The condition is already on the
// stack (QUESTION is an infix rule keyed off of it); the then-branch parses
// at PrecTernary (left-associative chaining of the condition position) and
// the else-branch at PrecAssignment (right-associative, so `a?b:c?d:e`
// nests as `a?b:(c?d:e)`).
func ternary(c *Compiler, _ bool) {
	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.parsePrecedence(PrecTernary)

	c.consume(token.COLON, "Expect ':' in ternary expression.")
	elseJump := c.emitJump(OpJump)

	c.patchJump(thenJump)
	c.emitOp(OpPop)
	c.parsePrecedence(PrecAssignment)

	c.patchJump(elseJump)
}

func call(c *Compiler, _ bool) {
	argc := c.argumentList()
	c.emitOpByte(OpCall, byte(argc))
}

func (c *Compiler) argumentList() int {
	argc := 0
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			if argc == maxArgs {
				c.error("Can't have more than 255 arguments.")
			}
			argc++
			if !c.matchTok(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after arguments.")
	return argc
}

func variable(c *Compiler, canAssign bool) {
	c.namedVariable(c.prevTok.Lexeme, canAssign)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp Opcode
	var isConstLocal bool
	arg := c.resolveLocal(c.current, name)
	if arg != -1 {
		getOp, setOp = OpGetLocal, OpSetLocal
		isConstLocal = c.current.locals[arg].isConst
	} else if arg = c.resolveUpvalue(c.current, name); arg != -1 {
		getOp, setOp = OpGetUpvalue, OpSetUpvalue
	} else {
		arg = c.identifierConstant(name)
		getOp, setOp = OpGetGlobal, OpSetGlobal
	}

	if canAssign && c.matchTok(token.EQUAL) {
		if isConstLocal {
			c.error("Can't assign to a const variable.")
		}
		c.expression()
		c.emitIndexed(setOp, arg)
	} else {
		c.emitIndexed(getOp, arg)
	}
}
