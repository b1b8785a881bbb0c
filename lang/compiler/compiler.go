package compiler

import (
	"fmt"
	"strconv"

	"github.com/dolthub/swiss"
	"github.com/mblk/cslox/lang/object"
	"github.com/mblk/cslox/lang/scanner"
	"github.com/mblk/cslox/lang/token"
	"github.com/mblk/cslox/lang/value"
	"golang.org/x/exp/slices"
)

// CompileError reports a single compile-time problem (lex, syntax or
// semantic) at a source line, formatted the way the reference toolchain
// reports them: "[line N] Error at 'lexeme': message" (or "at end" / no
// location clause for scan errors surfaced as a synthetic token).
type CompileError struct {
	Line    int
	Where   string // "" (scan error), "at end", or "at 'lexeme'"
	Message string
}

func (e CompileError) Error() string {
	if e.Where == "" {
		return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("[line %d] Error %s: %s", e.Line, e.Where, e.Message)
}

const (
	maxLocals   = 256
	maxUpvalues = 256
	maxLoops    = 16
	maxArgs     = 255
)

type functionType int

const (
	typeFunction functionType = iota
	typeScript
)

type local struct {
	name       string
	depth      int // -1 means declared but not yet initialized
	isConst    bool
	isCaptured bool
}

type upvalueRef struct {
	isLocal bool
	index   int
}

type loopCtx struct {
	continueAddr      int
	breakJumps        []int
	scopeDepthAtStart int
}

// funcState is the per-enclosing-function compilation record described in
// §3: one is pushed per nested `fun`, linked to its enclosing function so
// upvalue resolution can walk outward.
type funcState struct {
	enclosing *funcState
	function  *object.Function
	fnType    functionType

	locals     []local
	scopeDepth int
	upvalues   []upvalueRef
	loops      []loopCtx

	// nameConstants caches identifier -> constant-pool index for this
	// function's chunk, so repeated references to the same global/param
	// name (every read/write of a hot global, e.g. in a loop) don't re-walk
	// Chunk.Constants on every occurrence. Chunk.AddConstant is still the
	// source of truth for deduplication; this is purely an accelerator over
	// it, backed by a swiss table since identifier interning is exactly the
	// high-churn, string-keyed lookup that structure is built for.
	nameConstants *swiss.Map[string, int]
}

// Compiler is a single-pass, Pratt-precedence compiler: it parses and emits
// bytecode in the same walk, with no separate AST stage.
type Compiler struct {
	scanner *scanner.Scanner
	heap    *object.Heap

	prevTok token.Token
	curTok  token.Token

	current *funcState

	errors    []CompileError
	panicMode bool
}

// Compile compiles source into a top-level script Function. On failure it
// returns a nil function and the accumulated compile errors; scanning and
// parsing still run to completion over the whole file (panic-mode recovery
// skips only to the next statement boundary), so multiple errors may be
// reported for one input.
func Compile(source string, heap *object.Heap) (*object.Function, []CompileError) {
	c := &Compiler{scanner: scanner.New(source), heap: heap}
	c.current = &funcState{function: heap.NewFunction(), fnType: typeScript}
	c.addLocal("")
	c.markInitialized()

	c.advance()
	for !c.matchTok(token.EOF) {
		c.declaration()
	}

	fn := c.endFunction()
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return fn, nil
}

// --- token stream plumbing ---

func (c *Compiler) advance() {
	c.prevTok = c.curTok
	for {
		c.curTok = c.scanner.Scan()
		if c.curTok.Kind != token.ILLEGAL {
			break
		}
		c.errorAtCurrentScan(c.curTok.Lexeme)
	}
}

func (c *Compiler) check(k token.Kind) bool { return c.curTok.Kind == k }

func (c *Compiler) matchTok(k token.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(k token.Kind, msg string) {
	if c.curTok.Kind == k {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// --- error reporting ---

func (c *Compiler) errorAtCurrentScan(msg string) {
	c.errorAt(c.curTok, "", msg)
}

func (c *Compiler) errorAtCurrent(msg string) {
	c.errorAt(c.curTok, whereFor(c.curTok), msg)
}

func (c *Compiler) error(msg string) {
	c.errorAt(c.prevTok, whereFor(c.prevTok), msg)
}

func whereFor(tok token.Token) string {
	if tok.Kind == token.EOF {
		return "at end"
	}
	return fmt.Sprintf("at '%s'", tok.Lexeme)
}

func (c *Compiler) errorAt(tok token.Token, where, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.errors = append(c.errors, CompileError{Line: tok.Line, Where: where, Message: msg})
}

// synchronize discards tokens until it finds a likely statement boundary,
// so one error doesn't cascade into a flood of spurious ones.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.curTok.Kind != token.EOF {
		if c.prevTok.Kind == token.SEMICOLON {
			return
		}
		switch c.curTok.Kind {
		case token.CLASS, token.FUN, token.VAR, token.CONST, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

// --- chunk emission helpers ---

func (c *Compiler) chunk() *value.Chunk { return &c.current.function.Chunk }

func (c *Compiler) emitByte(b byte) { c.chunk().WriteByte(b, c.prevTok.Line) }

func (c *Compiler) emitOp(op Opcode) { c.emitByte(byte(op)) }

func (c *Compiler) emitOpByte(op Opcode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

// emitIndexed emits op (or its _LONG counterpart, if one exists and idx
// doesn't fit in a byte) followed by idx.
func (c *Compiler) emitIndexed(op Opcode, idx int) {
	if idx <= 0xFF {
		c.emitOpByte(op, byte(idx))
		return
	}
	long, ok := shortToLong[op]
	if !ok {
		c.error("Too many constants in one chunk.")
		return
	}
	c.emitOp(long)
	c.chunk().WriteU32(uint32(idx), c.prevTok.Line)
}

func (c *Compiler) emitReturn() {
	c.emitOp(OpNil)
	c.emitOp(OpReturn)
}

func (c *Compiler) makeConstant(v value.Value) int {
	return c.chunk().AddConstant(v)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitIndexed(OpConstant, c.makeConstant(v))
}

// emitJump emits a jump opcode with a placeholder 2-byte displacement and
// returns the offset of that displacement, to be patched later.
func (c *Compiler) emitJump(op Opcode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

// patchJump backfills the displacement at offset so it lands just after the
// 2-byte operand, pointing at the current end of the chunk.
func (c *Compiler) patchJump(offset int) {
	// -2 to account for the displacement operand itself: displacements are
	// measured from the byte after the 2-byte operand (i.e. 3 bytes after
	// the opcode).
	jump := len(c.chunk().Code) - offset - 2
	if jump < -32768 || jump > 32767 {
		c.error("Jump displacement too large.")
		return
	}
	c.chunk().Code[offset] = byte(uint16(jump))
	c.chunk().Code[offset+1] = byte(uint16(jump) >> 8)
}

// emitLoop emits an unconditional JUMP back to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(OpJump)
	jump := loopStart - (len(c.chunk().Code) + 2)
	if jump < -32768 || jump > 32767 {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(uint16(jump)))
	c.emitByte(byte(uint16(jump) >> 8))
}

// --- scope & local management ---

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

func (c *Compiler) endScope() {
	c.current.scopeDepth--
	fs := c.current
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		last := fs.locals[len(fs.locals)-1]
		if last.isCaptured {
			c.emitOp(OpCloseUpvalue)
		} else {
			c.emitOp(OpPop)
		}
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

func (c *Compiler) addLocal(name string) {
	if len(c.current.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.current.locals = append(c.current.locals, local{name: name, depth: -1})
}

func (c *Compiler) markInitialized() {
	if c.current.scopeDepth == 0 {
		return
	}
	c.current.locals[len(c.current.locals)-1].depth = c.current.scopeDepth
}

func (c *Compiler) declareVariable(name string) {
	if c.current.scopeDepth == 0 {
		return // globals are resolved dynamically by name, no local slot
	}
	fs := c.current
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := fs.locals[i]
		if l.depth != -1 && l.depth < fs.scopeDepth {
			break
		}
		if l.name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

// resolveLocal searches fs's own locals for name, returning its slot index
// or -1. A local found with depth -1 (declared but not yet initialized)
// reports the "read own initializer" compile error and still returns its
// slot index.
func (c *Compiler) resolveLocal(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			if fs.locals[i].depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (c *Compiler) addUpvalue(fs *funcState, isLocal bool, index int) int {
	if i := slices.IndexFunc(fs.upvalues, func(u upvalueRef) bool {
		return u.isLocal == isLocal && u.index == index
	}); i != -1 {
		return i
	}
	if len(fs.upvalues) >= maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{isLocal: isLocal, index: index})
	fs.function.UpvalueCount = len(fs.upvalues)
	return len(fs.upvalues) - 1
}

// resolveUpvalue implements §4.4's resolution order: local in the
// immediately enclosing compiler first (marking it captured), else
// recursing into the enclosing compiler's own upvalues.
func (c *Compiler) resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(fs.enclosing, name); local != -1 {
		fs.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(fs, true, local)
	}
	if up := c.resolveUpvalue(fs.enclosing, name); up != -1 {
		return c.addUpvalue(fs, false, up)
	}
	return -1
}

func (c *Compiler) identifierConstant(name string) int {
	fs := c.current
	if fs.nameConstants == nil {
		fs.nameConstants = swiss.NewMap[string, int](8)
	}
	if idx, ok := fs.nameConstants.Get(name); ok {
		return idx
	}
	idx := c.makeConstant(value.Obj(c.heap.Strings.Intern(name)))
	fs.nameConstants.Put(name, idx)
	return idx
}

// --- variable declaration/definition pipeline ---

// parseVariable consumes an identifier, declares it (as a local if inside a
// scope) and, for globals, returns the constant-pool index of its name.
func (c *Compiler) parseVariable(errMsg string) int {
	c.consume(token.IDENT, errMsg)
	name := c.prevTok.Lexeme
	c.declareVariable(name)
	if c.current.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(name)
}

func (c *Compiler) defineVariable(global int, isConst bool) {
	if c.current.scopeDepth > 0 {
		c.current.locals[len(c.current.locals)-1].isConst = isConst
		c.markInitialized()
		return
	}
	c.emitIndexed(OpDefineGlobal, global)
}

// --- declarations & statements ---

func (c *Compiler) declaration() {
	switch {
	case c.matchTok(token.FUN):
		c.funDeclaration()
	case c.matchTok(token.VAR):
		c.varDeclaration(false)
	case c.matchTok(token.CONST):
		c.varDeclaration(true)
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration(isConst bool) {
	if isConst && c.current.scopeDepth == 0 {
		c.error("Can't declare a const at global scope.")
	}
	global := c.parseVariable("Expect variable name.")

	if c.matchTok(token.EQUAL) {
		c.expression()
	} else {
		c.emitOp(OpNil)
	}
	c.consume(token.SEMICOLON, "Expect ';' after variable declaration.")
	c.defineVariable(global, isConst)
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	if c.current.scopeDepth > 0 {
		c.markInitialized()
	}
	c.function(typeFunction)
	c.defineVariable(global, false)
}

func (c *Compiler) function(fnType functionType) {
	fn := c.heap.NewFunction()
	fn.Name = c.heap.Strings.Intern(c.prevTok.Lexeme)
	fs := &funcState{enclosing: c.current, function: fn, fnType: fnType}
	c.current = fs
	c.addLocal("") // slot 0 holds the closure being called

	c.beginScope()
	c.consume(token.LPAREN, "Expect '(' after function name.")
	if !c.check(token.RPAREN) {
		for {
			fn.Arity++
			if fn.Arity > maxArgs {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConst := c.parseVariable("Expect parameter name.")
			c.defineVariable(paramConst, false)
			if !c.matchTok(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after parameters.")
	c.consume(token.LBRACE, "Expect '{' before function body.")
	c.block()

	compiled := c.endFunction()
	outerIdx := c.makeConstant(value.Obj(compiled))
	if outerIdx > 0xFF {
		c.error("Too many constants in one chunk.")
		outerIdx = 0
	}
	c.emitOpByte(OpClosure, byte(outerIdx))
	for _, uv := range fs.upvalues {
		c.emitByte(boolByte(uv.isLocal))
		c.emitByte(byte(uv.index))
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// endFunction emits the implicit `nil; return` every function body ends
// with and pops back to the enclosing compiler.
func (c *Compiler) endFunction() *object.Function {
	c.emitReturn()
	fn := c.current.function
	c.current = c.current.enclosing
	return fn
}

func (c *Compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "Expect '}' after block.")
}

func (c *Compiler) statement() {
	switch {
	case c.matchTok(token.PRINT):
		c.printStatement()
	case c.matchTok(token.IF):
		c.ifStatement()
	case c.matchTok(token.WHILE):
		c.whileStatement()
	case c.matchTok(token.FOR):
		c.forStatement()
	case c.matchTok(token.SWITCH):
		c.switchStatement()
	case c.matchTok(token.RETURN):
		c.returnStatement()
	case c.matchTok(token.BREAK):
		c.breakStatement()
	case c.matchTok(token.CONTINUE):
		c.continueStatement()
	case c.matchTok(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after value.")
	c.emitOp(OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after expression.")
	c.emitOp(OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LPAREN, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition.")

	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statement()

	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitOp(OpPop)

	if c.matchTok(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) pushLoop(continueAddr int) *loopCtx {
	if len(c.current.loops) >= maxLoops {
		c.error("Too many nested loops.")
	}
	c.current.loops = append(c.current.loops, loopCtx{continueAddr: continueAddr, scopeDepthAtStart: c.current.scopeDepth})
	return &c.current.loops[len(c.current.loops)-1]
}

func (c *Compiler) popLoop() loopCtx {
	fs := c.current
	l := fs.loops[len(fs.loops)-1]
	fs.loops = fs.loops[:len(fs.loops)-1]
	return l
}

func (c *Compiler) patchBreaks(l loopCtx) {
	for _, j := range l.breakJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.pushLoop(loopStart)

	c.consume(token.LPAREN, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition.")

	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(OpPop)
	c.patchBreaks(c.popLoop())
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LPAREN, "Expect '(' after 'for'.")

	switch {
	case c.matchTok(token.SEMICOLON):
		// no initializer
	case c.matchTok(token.VAR):
		c.varDeclaration(false)
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.check(token.SEMICOLON) {
		c.expression()
		c.consume(token.SEMICOLON, "Expect ';' after loop condition.")
		exitJump = c.emitJump(OpJumpIfFalse)
		c.emitOp(OpPop)
	} else {
		c.advance() // consume the ';'
	}

	if !c.check(token.RPAREN) {
		bodyJump := c.emitJump(OpJump)
		incrementStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(OpPop)
		c.consume(token.RPAREN, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	} else {
		c.consume(token.RPAREN, "Expect ')' after for clauses.")
	}

	c.pushLoop(loopStart) // continueAddr is the post-increment rejoin point
	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(OpPop)
	}
	c.patchBreaks(c.popLoop())
	c.endScope()
}

func (c *Compiler) switchStatement() {
	c.consume(token.LPAREN, "Expect '(' after 'switch'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after switch subject.")

	c.beginScope()
	c.addLocal("")
	c.markInitialized()
	hiddenSlot := len(c.current.locals) - 1

	c.consume(token.LBRACE, "Expect '{' before switch body.")

	var endJumps []int
	sawDefault := false
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		switch {
		case c.matchTok(token.CASE):
			if sawDefault {
				c.error("Can't have a case after the default case.")
			}
			c.emitIndexed(OpGetLocal, hiddenSlot)
			c.expression()
			c.consume(token.COLON, "Expect ':' after case value.")
			c.emitOp(OpEqual)

			nextCase := c.emitJump(OpJumpIfFalse)
			c.emitOp(OpPop)
			c.beginScope()
			for !c.check(token.CASE) && !c.check(token.DEFAULT) && !c.check(token.RBRACE) && !c.check(token.EOF) {
				c.declaration()
			}
			c.endScope()
			endJumps = append(endJumps, c.emitJump(OpJump))
			c.patchJump(nextCase)
			c.emitOp(OpPop)

		case c.matchTok(token.DEFAULT):
			if sawDefault {
				c.error("Can't have more than one default case.")
			}
			sawDefault = true
			c.consume(token.COLON, "Expect ':' after 'default'.")
			c.beginScope()
			for !c.check(token.CASE) && !c.check(token.DEFAULT) && !c.check(token.RBRACE) && !c.check(token.EOF) {
				c.declaration()
			}
			c.endScope()

		default:
			c.errorAtCurrent("Expect 'case' or 'default'.")
			c.advance()
		}
	}
	c.consume(token.RBRACE, "Expect '}' after switch body.")

	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.endScope()
}

func (c *Compiler) breakStatement() {
	c.loopControl(true)
}

func (c *Compiler) continueStatement() {
	c.loopControl(false)
}

func (c *Compiler) loopControl(isBreak bool) {
	n := 1
	if c.check(token.NUMBER) {
		v, err := strconv.Atoi(c.curTok.Lexeme)
		if err == nil {
			n = v
		}
		c.advance()
	}
	kw := "continue"
	if isBreak {
		kw = "break"
	}
	c.consume(token.SEMICOLON, "Expect ';' after '"+kw+"'.")

	fs := c.current
	if n < 1 || n > len(fs.loops) {
		c.error(fmt.Sprintf("No enclosing loop to %s out of.", kw))
		return
	}
	targetIdx := len(fs.loops) - n
	target := &fs.loops[targetIdx]

	// Simulate unwinding every scope opened since the target loop started,
	// without touching the compiler's live local/scope bookkeeping: the
	// statement parse continues normally after this jump is emitted.
	for i := len(fs.locals) - 1; i >= 0 && fs.locals[i].depth > target.scopeDepthAtStart; i-- {
		if fs.locals[i].isCaptured {
			c.emitOp(OpCloseUpvalue)
		} else {
			c.emitOp(OpPop)
		}
	}

	if isBreak {
		j := c.emitJump(OpJump)
		target.breakJumps = append(target.breakJumps, j)
	} else {
		c.emitLoop(target.continueAddr)
	}
}

func (c *Compiler) returnStatement() {
	if c.current.fnType == typeScript {
		c.error("Can't return from top-level code.")
	}
	if c.matchTok(token.SEMICOLON) {
		c.emitReturn()
		return
	}
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after return value.")
	c.emitOp(OpReturn)
}
