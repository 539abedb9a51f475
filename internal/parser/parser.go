package parser

import (
	"fmt"

	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/diag"
	"github.com/nksplang/nksp/internal/lexer"
	"github.com/nksplang/nksp/internal/units"
)

// Result is everything the front-end produces for one source text, the
// ParsedScript payload of spec §4.1.
type Result struct {
	Tree              *ast.Tree
	Handlers          map[string]ast.NodeID
	Functions         map[string]ast.NodeID
	GlobalPools       PoolLayout
	PolyPools         PoolLayout
	RequiredStackSize int
	PatchVarLocations map[string]diag.CodeBlock
	PatchVarArraySize map[string]int
	GlobalInit        ast.NodeID

	// Diagnostics and ElidedSpans are not populated by Parse itself (the
	// parser only ever writes through the caller-supplied diag.Sink); the
	// embedding facade fills these in from its own collector once parsing
	// returns, so a cached Result still carries the diagnostics produced
	// the one time it was compiled.
	Diagnostics []diag.Diagnostic
	ElidedSpans []diag.CodeBlock
}

// Parser is a recursive-descent parser over a token stream, type-checking
// inline as it builds ast.Tree nodes (spec §4.1).
type Parser struct {
	toks []lexer.Token
	pos  int
	ctx  *ParserContext
	tree *ast.Tree
}

func Parse(source []byte, ctx *ParserContext) *Result {
	toks := lexer.New(source).Tokens()
	// filter out comments for the grammar parser; syntax_tokens() keeps them.
	filtered := toks[:0:0]
	for _, t := range toks {
		if t.Kind != lexer.Comment {
			filtered = append(filtered, t)
		}
	}
	p := &Parser{toks: filtered, ctx: ctx, tree: ast.NewTree()}
	p.parseProgram()
	return &Result{
		Tree:              p.tree,
		Handlers:          ctx.Handlers,
		Functions:         functionBodies(ctx),
		GlobalPools:       ctx.Global,
		PolyPools:         ctx.Poly,
		RequiredStackSize: ctx.RequiredMaxStackSize(),
		PatchVarLocations: ctx.PatchVarLocations,
		PatchVarArraySize: ctx.PatchVarArraySize,
		GlobalInit:        p.tree.NewStmtList(ctx.GlobalInit),
	}
}

func functionBodies(ctx *ParserContext) map[string]ast.NodeID {
	out := map[string]ast.NodeID{}
	for name, sym := range ctx.Symbols {
		if sym.IsFunction {
			out[name] = sym.FuncBody
		}
	}
	return out
}

// --- token helpers ------------------------------------------------------

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(kind lexer.Kind, text string) bool {
	t := p.cur()
	return t.Kind == kind && (text == "" || t.Text == text)
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) errf(span diag.CodeBlock, format string, args ...interface{}) {
	p.ctx.Sink.Error(fmt.Sprintf(format, args...), span)
}

func (p *Parser) warnf(span diag.CodeBlock, format string, args ...interface{}) {
	p.ctx.Sink.Warning(fmt.Sprintf(format, args...), span)
}

func (p *Parser) expectKeyword(kw string) bool {
	if p.at(lexer.Keyword, kw) {
		p.advance()
		return true
	}
	p.errf(p.cur().Span, "expected keyword %q, got %q", kw, p.cur().Text)
	return false
}

func (p *Parser) expectPunct(pu string) bool {
	if p.at(lexer.Punct, pu) || p.at(lexer.Operator, pu) {
		p.advance()
		return true
	}
	p.errf(p.cur().Span, "expected %q, got %q", pu, p.cur().Text)
	return false
}

// endBlock consumes "end <kw>" pairs, e.g. "end on", "end if".
func (p *Parser) endBlock(kw string) {
	p.expectKeyword("end")
	p.expectKeyword(kw)
}

// --- program structure ---------------------------------------------------

func (p *Parser) parseProgram() {
	for !p.at(lexer.EOF, "") {
		switch {
		case p.at(lexer.Preprocessor, ""):
			// leftover directive tokens after preprocessing (e.g. malformed
			// directive); skip defensively.
			p.advance()
		case p.at(lexer.Keyword, "declare"):
			stmt := p.parseDeclare()
			p.ctx.GlobalInit = append(p.ctx.GlobalInit, stmt)
		case p.at(lexer.Keyword, "function"):
			p.parseFunctionDecl()
		case p.at(lexer.Keyword, "on"):
			p.parseHandler()
		default:
			p.errf(p.cur().Span, "unexpected token %q at top level", p.cur().Text)
			p.advance()
		}
	}
}

func (p *Parser) parseHandler() {
	p.advance() // 'on'
	name := p.cur().Text
	if !p.at(lexer.Ident, "") {
		p.errf(p.cur().Span, "expected handler name")
	} else {
		p.advance()
	}
	if !isKnownHandler(name) {
		p.warnf(p.cur().Span, "unrecognized event handler %q", name)
	}
	p.ctx.enterFrame()
	body := p.parseStmtListUntil(func() bool { return p.at(lexer.Keyword, "end") })
	p.ctx.leaveFrame()
	p.endBlock("on")
	handler := p.tree.NewHandler(name, body)
	p.ctx.Handlers[name] = handler
}

func isKnownHandler(name string) bool {
	switch name {
	case "init", "note", "release", "controller", "rpn", "nrpn":
		return true
	}
	return false
}

func (p *Parser) parseFunctionDecl() {
	p.advance() // 'function'
	name := p.cur().Text
	if !p.at(lexer.Ident, "") {
		p.errf(p.cur().Span, "expected function name")
	} else {
		p.advance()
	}
	if _, exists := p.ctx.Symbols[name]; exists {
		p.errf(p.cur().Span, "redeclaration of %q", name)
	}
	p.ctx.enterFrame()
	body := p.parseStmtListUntil(func() bool { return p.at(lexer.Keyword, "end") })
	p.ctx.leaveFrame()
	p.endBlock("function")
	sub := p.tree.NewSub(name, body)
	p.ctx.Symbols[name] = &Symbol{Name: name, IsFunction: true, FuncBody: sub}
}

// parseStmtListUntil parses statements until stop() reports true (without
// consuming the terminating token), wrapping them in a KindStmtList node.
func (p *Parser) parseStmtListUntil(stop func() bool) ast.NodeID {
	var stmts []ast.NodeID
	for !stop() && !p.at(lexer.EOF, "") {
		s := p.parseStatement()
		if s != 0 {
			stmts = append(stmts, s)
		}
	}
	return p.tree.NewStmtList(stmts)
}

// --- statements -----------------------------------------------------------

func (p *Parser) parseStatement() ast.NodeID {
	switch {
	case p.at(lexer.Keyword, "declare"):
		return p.parseDeclare()
	case p.at(lexer.Keyword, "if"):
		return p.parseIf()
	case p.at(lexer.Keyword, "select"):
		return p.parseSelect()
	case p.at(lexer.Keyword, "while"):
		return p.parseWhile()
	case p.at(lexer.Keyword, "sync"):
		return p.parseSync()
	case p.at(lexer.Keyword, "exit"):
		return p.parseExit()
	case p.at(lexer.Keyword, "call"):
		return p.parseCallStmt()
	case p.at(lexer.Sigil, ""):
		return p.parseAssignOrExprStmt()
	case p.at(lexer.Ident, ""):
		return p.parseCallExprStmt()
	default:
		p.errf(p.cur().Span, "unexpected token %q in statement position", p.cur().Text)
		p.advance()
		return p.tree.NewNoOp()
	}
}

func (p *Parser) parseDeclare() ast.NodeID {
	start := p.cur().Span
	p.advance() // 'declare'
	isConst, isPoly, isPatch := false, false, false
	for {
		switch {
		case p.at(lexer.Keyword, "const"):
			isConst = true
			p.advance()
		case p.at(lexer.Keyword, "polyphonic"):
			isPoly = true
			p.advance()
		case p.at(lexer.Keyword, "patch"):
			isPatch = true
			p.advance()
		default:
			goto qualifiersDone
		}
	}
qualifiersDone:
	sigTok := p.cur()
	if sigTok.Kind != lexer.Sigil {
		p.errf(sigTok.Span, "expected variable after declare")
		return p.tree.NewNoOp()
	}
	p.advance()
	sigilType := lexer.SigilOf[sigTok.Sigil]
	name := sigTok.Text

	isArray := sigilType == lexer.SigilIntArray || sigilType == lexer.SigilRealArray || sigilType == lexer.SigilStringArray
	elemType := sigilToValType(sigilType)

	if isPoly && isArray {
		p.errf(sigTok.Span, "polyphonic is prohibited on arrays")
	}
	if isPoly && isConst {
		p.errf(sigTok.Span, "polyphonic is prohibited on const")
	}
	if isPoly && elemType == ast.String {
		p.errf(sigTok.Span, "polyphonic is prohibited on strings")
	}

	arraySize := 0
	if isArray {
		p.expectPunct("[")
		sizeNode := p.parseExpr()
		if !p.tree.IsConstExpr(sizeNode) {
			p.errf(sigTok.Span, "array size must be a constant integer expression")
		} else {
			arraySize = int(foldInt(p.tree, sizeNode))
		}
		p.expectPunct("]")
	}

	var initNode ast.NodeID
	var arrayElems []ast.NodeID
	hasInit := false
	initSpan := diag.CodeBlock{FirstByte: p.cur().Span.FirstByte, Len: 0,
		FirstLine: p.cur().Span.FirstLine, FirstColumn: p.cur().Span.FirstColumn,
		LastLine: p.cur().Span.FirstLine, LastColumn: p.cur().Span.FirstColumn}
	if p.at(lexer.Operator, ":=") {
		p.advance()
		initStart := p.cur().Span
		if isArray {
			arrayElems = p.parseArrayLiteral(elemType, arraySize)
		} else {
			initNode = p.parseExpr()
		}
		hasInit = true
		initSpan = unionSpan(initStart, p.prevSpan())
	}

	if isConst && !hasInit {
		p.errf(sigTok.Span, "const variable %q requires an initializer", name)
	}
	if isConst && hasInit && !isArray && !p.tree.IsConstExpr(initNode) {
		p.errf(sigTok.Span, "const variable %q initializer must itself be constant", name)
	}

	var offset int
	if isArray {
		offset = p.ctx.allocArray(elemType, arraySize)
	} else {
		offset = p.ctx.allocScalar(elemType, isPoly)
	}

	sym := &Symbol{Name: name, Type: elemType, Const: isConst, Polyphonic: isPoly, Patch: isPatch, Offset: offset, ArraySize: arraySize}
	if isConst && hasInit {
		sym.ConstNode = initNode
	}
	p.ctx.Symbols[name] = sym

	if isPatch {
		p.ctx.PatchVarLocations[name] = initSpan
		if isArray {
			p.ctx.PatchVarArraySize[name] = arraySize
		}
		p.ctx.Sink.PatchVariable(name, initSpan)
	}

	var varNode ast.NodeID
	if isArray {
		varNode = p.tree.NewArrayVar(name, elemType, offset, arraySize, isPoly)
	} else {
		unit := units.None
		if hasInit {
			unit = p.tree.UnitType(initNode)
		}
		sym.Unit = unit
		varNode = p.tree.NewVar(name, elemType, unit, offset, isPoly, isConst)
	}

	if !hasInit {
		return p.tree.NewNoOp()
	}
	if isArray {
		var assigns []ast.NodeID
		for i, el := range arrayElems {
			idx := p.tree.NewIntLit(int64(i), units.None, units.NoPrefixFactor, false)
			elem := p.tree.NewArrayElem(varNode, idx, elemType)
			assigns = append(assigns, p.tree.NewAssign(elem, el))
		}
		_ = start
		return p.tree.NewStmtList(assigns)
	}
	assign := p.tree.NewAssign(varNode, initNode)
	_ = start
	return assign
}

func sigilToValType(s lexer.SigilType) ast.ValType {
	switch s {
	case lexer.SigilInt:
		return ast.Int
	case lexer.SigilReal:
		return ast.Real
	case lexer.SigilString:
		return ast.String
	case lexer.SigilIntArray:
		return ast.Int
	case lexer.SigilRealArray:
		return ast.Real
	case lexer.SigilStringArray:
		return ast.String
	default:
		return ast.Empty
	}
}

// parseArrayLiteral parses "(e1, e2, ...)" and returns the element
// expression nodes; the caller turns these into per-element assigns once
// the array's pool offset is known.
func (p *Parser) parseArrayLiteral(elemType ast.ValType, size int) []ast.NodeID {
	p.expectPunct("(")
	var elems []ast.NodeID
	if !p.at(lexer.Punct, ")") {
		for {
			elems = append(elems, p.parseExpr())
			if p.at(lexer.Punct, ",") {
				p.advance()
				continue
			}
			break
		}
	}
	p.expectPunct(")")
	if len(elems) != size {
		p.errf(p.prevSpan(), "array literal has %d elements, declared size is %d", len(elems), size)
	}
	return elems
}

func (p *Parser) prevSpan() diag.CodeBlock {
	if p.pos == 0 {
		return diag.CodeBlock{}
	}
	return p.toks[p.pos-1].Span
}

func unionSpan(a, b diag.CodeBlock) diag.CodeBlock {
	return diag.CodeBlock{
		FirstLine: a.FirstLine, FirstColumn: a.FirstColumn, FirstByte: a.FirstByte,
		LastLine: b.LastLine, LastColumn: b.LastColumn,
		Len: b.FirstByte + b.Len - a.FirstByte,
	}
}

func foldInt(t *ast.Tree, id ast.NodeID) int64 {
	n := t.Node(id)
	return n.IntVal
}
