package parser

import (
	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/lexer"
)

func (p *Parser) parseIf() ast.NodeID {
	p.advance() // 'if'
	cond := p.parseExpr()
	if p.tree.ExprType(cond) != ast.Int {
		p.errf(p.prevSpan(), "if condition must be an integer (boolean) expression")
	}
	p.ctx.enterFrame()
	thenBody := p.parseStmtListUntil(func() bool {
		return p.at(lexer.Keyword, "else") || p.at(lexer.Keyword, "end")
	})
	p.ctx.leaveFrame()
	var elseBody ast.NodeID
	if p.at(lexer.Keyword, "else") {
		p.advance()
		p.ctx.enterFrame()
		elseBody = p.parseStmtListUntil(func() bool { return p.at(lexer.Keyword, "end") })
		p.ctx.leaveFrame()
	}
	p.endBlock("if")
	return p.tree.NewIf(cond, thenBody, elseBody)
}

func (p *Parser) parseSelect() ast.NodeID {
	p.advance() // 'select'
	selector := p.parseExpr()
	if p.tree.ExprType(selector) != ast.Int {
		p.errf(p.prevSpan(), "select expression must be an integer")
	}
	var cases []ast.CaseRange
	for p.at(lexer.Keyword, "case") {
		p.advance()
		lo := p.parseIntLiteralValue()
		hi := lo
		if p.at(lexer.Keyword, "to") {
			p.advance()
			hi = p.parseIntLiteralValue()
		}
		p.ctx.enterFrame()
		body := p.parseStmtListUntil(func() bool {
			return p.at(lexer.Keyword, "case") || p.at(lexer.Keyword, "end")
		})
		p.ctx.leaveFrame()
		cases = append(cases, ast.CaseRange{Lo: lo, Hi: hi, Body: body})
	}
	p.endBlock("select")
	return p.tree.NewSelect(selector, cases)
}

func (p *Parser) parseIntLiteralValue() int64 {
	neg := false
	if p.at(lexer.Operator, "-") {
		neg = true
		p.advance()
	}
	tok := p.cur()
	if tok.Kind != lexer.IntNumber {
		p.errf(tok.Span, "expected integer literal in case label")
		return 0
	}
	p.advance()
	v := mustParseInt(tok.Text)
	if neg {
		v = -v
	}
	return v
}

func (p *Parser) parseWhile() ast.NodeID {
	p.advance() // 'while'
	cond := p.parseExpr()
	p.ctx.enterFrame()
	body := p.parseStmtListUntil(func() bool { return p.at(lexer.Keyword, "end") })
	p.ctx.leaveFrame()
	p.endBlock("while")
	return p.tree.NewWhile(cond, body)
}

func (p *Parser) parseSync() ast.NodeID {
	p.advance() // 'sync'
	p.ctx.enterFrame()
	body := p.parseStmtListUntil(func() bool { return p.at(lexer.Keyword, "end") })
	p.ctx.leaveFrame()
	p.endBlock("sync")
	return p.tree.NewSync(body)
}

func (p *Parser) parseExit() ast.NodeID {
	p.advance() // 'exit'
	var val ast.NodeID
	if p.at(lexer.Punct, "(") {
		p.advance()
		if !p.at(lexer.Punct, ")") {
			val = p.parseExpr()
		}
		p.expectPunct(")")
	}
	return p.tree.NewExit(val)
}

func (p *Parser) parseCallStmt() ast.NodeID {
	p.advance() // 'call'
	name := p.cur().Text
	if !p.at(lexer.Ident, "") {
		p.errf(p.cur().Span, "expected function name after call")
		return p.tree.NewNoOp()
	}
	p.advance()
	sym, ok := p.ctx.Symbols[name]
	if !ok || !sym.IsFunction {
		p.errf(p.prevSpan(), "call to undeclared function %q", name)
		return p.tree.NewNoOp()
	}
	return p.tree.NewCall(name, nil, ast.Empty, 0, false)
}

// parseCallExprStmt parses a bare builtin/function call used as a
// statement, e.g. "message(\"hi\")" or "inc($x)".
func (p *Parser) parseCallExprStmt() ast.NodeID {
	expr := p.parseExpr()
	return expr
}

// parseAssignOrExprStmt handles a statement starting with a sigil: either
// an assignment "$x := expr" / "%a[i] := expr", or a call-like expression
// used as a statement (the grammar allows none starting with a bare
// variable other than assignment, so this path always parses an lvalue).
func (p *Parser) parseAssignOrExprStmt() ast.NodeID {
	lhs := p.parseLValue()
	if p.at(lexer.Operator, ":=") {
		p.advance()
		rhsStart := p.pos
		rhs := p.parseExpr()
		_ = rhsStart
		p.checkAssignTypes(lhs, rhs)
		return p.tree.NewAssign(lhs, rhs)
	}
	return lhs
}

func (p *Parser) checkAssignTypes(lhs, rhs ast.NodeID) {
	if p.tree.ExprType(lhs) != p.tree.ExprType(rhs) {
		p.errf(p.prevSpan(), "assignment type mismatch: %v := %v", p.tree.ExprType(lhs), p.tree.ExprType(rhs))
		return
	}
	if p.tree.UnitType(lhs) != p.tree.UnitType(rhs) {
		p.errf(p.prevSpan(), "assignment unit-type mismatch")
	}
}
