package parser

import (
	"strconv"

	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/builtins"
	"github.com/nksplang/nksp/internal/lexer"
	"github.com/nksplang/nksp/internal/units"
)

func mustParseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func mustParseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// parseExpr is the entry point: logical-or is the lowest-precedence level.
func (p *Parser) parseExpr() ast.NodeID {
	return p.parseOr()
}

func (p *Parser) parseOr() ast.NodeID {
	left := p.parseAnd()
	for p.at(lexer.Keyword, "or") {
		p.advance()
		right := p.parseAnd()
		left = p.tree.NewLogical(true, left, right, p.tree.IsConstExpr(left) && p.tree.IsConstExpr(right))
	}
	return left
}

func (p *Parser) parseAnd() ast.NodeID {
	left := p.parseBitwiseOr()
	for p.at(lexer.Keyword, "and") {
		p.advance()
		right := p.parseBitwiseOr()
		left = p.tree.NewLogical(false, left, right, p.tree.IsConstExpr(left) && p.tree.IsConstExpr(right))
	}
	return left
}

func (p *Parser) parseBitwiseOr() ast.NodeID {
	left := p.parseBitwiseAnd()
	for p.at(lexer.Keyword, "bitwise_or") {
		p.advance()
		right := p.parseBitwiseAnd()
		left = p.tree.NewBitwise(true, left, right, p.tree.IsConstExpr(left) && p.tree.IsConstExpr(right))
	}
	return left
}

func (p *Parser) parseBitwiseAnd() ast.NodeID {
	left := p.parseRelational()
	for p.at(lexer.Keyword, "bitwise_and") {
		p.advance()
		right := p.parseRelational()
		left = p.tree.NewBitwise(false, left, right, p.tree.IsConstExpr(left) && p.tree.IsConstExpr(right))
	}
	return left
}

var relOps = map[string]bool{"=": true, "#": true, "<": true, ">": true, "<=": true, ">=": true}

func (p *Parser) parseRelational() ast.NodeID {
	left := p.parseConcat()
	for p.cur().Kind == lexer.Operator && relOps[p.cur().Text] {
		op := p.advance().Text
		right := p.parseConcat()
		if p.tree.ExprType(left) != ast.String {
			if p.tree.UnitType(left) != p.tree.UnitType(right) {
				p.errf(p.prevSpan(), "relational operands must share unit type")
			}
		}
		left = p.tree.NewRelational(op, left, right, p.tree.IsConstExpr(left) && p.tree.IsConstExpr(right))
	}
	return left
}

func (p *Parser) parseConcat() ast.NodeID {
	left := p.parseAdditive()
	if !p.at(lexer.Operator, "&") {
		return left
	}
	parts := []ast.NodeID{left}
	for p.at(lexer.Operator, "&") {
		p.advance()
		parts = append(parts, p.parseAdditive())
	}
	return p.tree.NewConcat(parts)
}

func (p *Parser) parseAdditive() ast.NodeID {
	left := p.parseMultiplicative()
	for p.at(lexer.Operator, "+") || p.at(lexer.Operator, "-") {
		op := p.advance().Text
		right := p.parseMultiplicative()
		left = p.applyAddSub(op, left, right)
	}
	return left
}

func (p *Parser) applyAddSub(op string, left, right ast.NodeID) ast.NodeID {
	lu, ru := p.tree.UnitType(left), p.tree.UnitType(right)
	if lu != ru {
		p.errf(p.prevSpan(), "%s: operands must share unit type", op)
	}
	lf, rf := p.tree.UnitFactor(left), p.tree.UnitFactor(right)
	resultFactor := units.SmallerFactor(lf, rf)
	resultType := ast.Real
	if p.tree.ExprType(left) == ast.Int && p.tree.ExprType(right) == ast.Int {
		resultType = ast.Int
	}
	final := p.tree.IsFinal(left) || p.tree.IsFinal(right)
	if p.tree.IsFinal(left) != p.tree.IsFinal(right) && (p.tree.IsFinal(left) || p.tree.IsFinal(right)) {
		p.warnf(p.prevSpan(), "%s: mixed finalness across operands", op)
	}
	isConst := p.tree.IsConstExpr(left) && p.tree.IsConstExpr(right)
	return p.tree.NewBinArith(op, left, right, resultType, lu, resultFactor, final, isConst)
}

func (p *Parser) parseMultiplicative() ast.NodeID {
	left := p.parseUnary()
	for p.at(lexer.Operator, "*") || p.at(lexer.Operator, "/") || p.at(lexer.Keyword, "mod") {
		op := p.advance().Text
		right := p.parseUnary()
		left = p.applyMulDivMod(op, left, right)
	}
	return left
}

func (p *Parser) applyMulDivMod(op string, left, right ast.NodeID) ast.NodeID {
	lu, ru := p.tree.UnitType(left), p.tree.UnitType(right)
	var resultUnit units.Type
	switch op {
	case "*":
		if lu != units.None && ru != units.None {
			p.errf(p.prevSpan(), "*: at most one operand may carry a unit type")
		}
		if lu != units.None {
			resultUnit = lu
		} else {
			resultUnit = ru
		}
	case "/":
		if lu != units.None && ru != units.None && lu != ru {
			p.errf(p.prevSpan(), "/: operands with different unit types")
		}
		if ru != units.None && lu == ru {
			resultUnit = units.None
		} else {
			resultUnit = lu
		}
	case "mod":
		if lu != units.None || ru != units.None {
			p.errf(p.prevSpan(), "mod: operands must be unit-less integers")
		}
		if p.tree.ExprType(left) != ast.Int || p.tree.ExprType(right) != ast.Int {
			p.errf(p.prevSpan(), "mod: operands must be integers")
		}
	}
	resultFactor := units.NoPrefixFactor
	lf, rf := p.tree.UnitFactor(left), p.tree.UnitFactor(right)
	switch op {
	case "*":
		resultFactor = lf * rf
	case "/":
		if rf != 0 {
			resultFactor = lf / rf
		}
	}
	resultType := ast.Real
	if op == "mod" {
		resultType = ast.Int
	} else if p.tree.ExprType(left) == ast.Int && p.tree.ExprType(right) == ast.Int {
		resultType = ast.Int
	}
	final := p.tree.IsFinal(left) || p.tree.IsFinal(right)
	if op != "mod" && p.tree.IsFinal(left) != p.tree.IsFinal(right) && final {
		p.warnf(p.prevSpan(), "%s: mixed finalness across operands", op)
	}
	isConst := p.tree.IsConstExpr(left) && p.tree.IsConstExpr(right)
	return p.tree.NewBinArith(op, left, right, resultType, resultUnit, resultFactor, final, isConst)
}

func (p *Parser) parseUnary() ast.NodeID {
	switch {
	case p.at(lexer.Operator, "-"):
		p.advance()
		operand := p.parseUnary()
		return p.tree.NewUnary(ast.KindUnaryNeg, operand, p.tree.ExprType(operand), p.tree.UnitType(operand), p.tree.UnitFactor(operand), p.tree.IsFinal(operand), p.tree.IsConstExpr(operand))
	case p.at(lexer.Keyword, "not"):
		p.advance()
		operand := p.parseUnary()
		return p.tree.NewUnary(ast.KindUnaryNot, operand, ast.Int, units.None, units.NoPrefixFactor, false, p.tree.IsConstExpr(operand))
	case p.at(lexer.Keyword, "bitwise_not"):
		p.advance()
		operand := p.parseUnary()
		return p.tree.NewUnary(ast.KindUnaryBitNot, operand, ast.Int, units.None, units.NoPrefixFactor, false, p.tree.IsConstExpr(operand))
	case p.at(lexer.Sigil, "") && p.cur().Sigil == '!':
		// leading '!' on an expression (not a declared sigil position) marks "final".
		p.advance()
		operand := p.parseUnary()
		return p.tree.NewFinalMarker(operand)
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() ast.NodeID {
	tok := p.cur()
	switch {
	case tok.Kind == lexer.Punct && tok.Text == "(":
		p.advance()
		e := p.parseExpr()
		p.expectPunct(")")
		return e
	case tok.Kind == lexer.IntNumber:
		return p.parseNumberLiteral(false)
	case tok.Kind == lexer.RealNumber:
		return p.parseNumberLiteral(true)
	case tok.Kind == lexer.StringLit:
		p.advance()
		return p.tree.NewStrLit(tok.Text)
	case tok.Kind == lexer.Sigil:
		return p.parseVariableRefOrCall()
	case tok.Kind == lexer.Ident:
		return p.parseFunctionCallExpr()
	default:
		p.errf(tok.Span, "unexpected token %q in expression", tok.Text)
		p.advance()
		return p.tree.NewIntLit(0, units.None, units.NoPrefixFactor, false)
	}
}

// parseNumberLiteral consumes an int/real literal token, carrying whatever
// metric-prefix+unit suffix the lexer already resolved onto it.
func (p *Parser) parseNumberLiteral(isReal bool) ast.NodeID {
	tok := p.advance()
	unit := tok.NumUnit
	factor := tok.NumFactor
	if factor == 0 {
		factor = units.NoPrefixFactor
	}
	if isReal {
		return p.tree.NewRealLit(mustParseFloat(tok.Text), unit, factor, false)
	}
	return p.tree.NewIntLit(mustParseInt(tok.Text), unit, factor, false)
}

func (p *Parser) parseVariableRefOrCall() ast.NodeID {
	tok := p.advance()
	name := tok.Text
	if sym, ok := p.ctx.Symbols[name]; ok {
		return p.refFromSymbol(sym, tok)
	}
	if v, ok := p.ctx.BuiltinVars.Lookup(name); ok {
		return p.builtinVarRef(v, name)
	}
	p.errf(tok.Span, "undeclared variable %q", name)
	return p.tree.NewIntLit(0, units.None, units.NoPrefixFactor, false)
}

// builtinVarRef resolves a read-position reference to a registered
// built-in variable, indexing into it if it's a VarHostArray (spec §6).
func (p *Parser) builtinVarRef(v *builtins.Var, name string) ast.NodeID {
	if v.Kind != builtins.VarHostArray {
		return p.tree.NewBuiltinVarRef(name, v.Type, v.Unit)
	}
	if p.at(lexer.Punct, "[") {
		p.advance()
		idx := p.parseExpr()
		p.expectPunct("]")
		arrNode := p.tree.NewBuiltinArrayVarRef(name, v.Type, v.ArraySize, v.Unit)
		return p.tree.NewArrayElem(arrNode, idx, v.Type.ElementType())
	}
	return p.tree.NewBuiltinArrayVarRef(name, v.Type, v.ArraySize, v.Unit)
}

func (p *Parser) refFromSymbol(sym *Symbol, tok lexer.Token) ast.NodeID {
	if p.at(lexer.Punct, "[") {
		p.advance()
		idx := p.parseExpr()
		p.expectPunct("]")
		arrNode := p.tree.NewArrayVar(sym.Name, sym.Type, sym.Offset, sym.ArraySize, sym.Polyphonic)
		return p.tree.NewArrayElem(arrNode, idx, sym.Type)
	}
	if sym.ArraySize > 0 {
		return p.tree.NewArrayVar(sym.Name, sym.Type, sym.Offset, sym.ArraySize, sym.Polyphonic)
	}
	if sym.Const {
		if node := sym.ConstNode; node != 0 {
			return node
		}
	}
	return p.tree.NewVar(sym.Name, sym.Type, sym.Unit, sym.Offset, sym.Polyphonic, sym.Const)
}

// parseLValue parses an assignable reference: a scalar var, an array
// element (never a whole array or a const), or a writable host-registered
// built-in variable (spec §6: "Integer scalar variable pointers with an
// assign/eval interface and a read-only flag").
func (p *Parser) parseLValue() ast.NodeID {
	tok := p.advance()
	name := tok.Text
	sym, ok := p.ctx.Symbols[name]
	if !ok {
		if v, ok := p.ctx.BuiltinVars.Lookup(name); ok {
			if v.ReadOnly {
				p.errf(tok.Span, "cannot assign to read-only variable %q", name)
			}
			if v.Kind == builtins.VarHostArray {
				p.expectPunct("[")
				idx := p.parseExpr()
				p.expectPunct("]")
				arrNode := p.tree.NewBuiltinArrayVarRef(name, v.Type, v.ArraySize, v.Unit)
				return p.tree.NewArrayElem(arrNode, idx, v.Type.ElementType())
			}
			return p.tree.NewBuiltinVarRef(name, v.Type, v.Unit)
		}
		p.errf(tok.Span, "undeclared variable %q", name)
		return p.tree.NewIntLit(0, units.None, units.NoPrefixFactor, false)
	}
	if sym.Const {
		p.errf(tok.Span, "cannot assign to const variable %q", name)
	}
	if sym.ArraySize > 0 {
		p.expectPunct("[")
		idx := p.parseExpr()
		p.expectPunct("]")
		arrNode := p.tree.NewArrayVar(sym.Name, sym.Type, sym.Offset, sym.ArraySize, sym.Polyphonic)
		return p.tree.NewArrayElem(arrNode, idx, sym.Type)
	}
	return p.tree.NewVar(sym.Name, sym.Type, sym.Unit, sym.Offset, sym.Polyphonic, false)
}

func (p *Parser) parseFunctionCallExpr() ast.NodeID {
	tok := p.advance()
	name := tok.Text
	var args []ast.NodeID
	if p.at(lexer.Punct, "(") {
		p.advance()
		if !p.at(lexer.Punct, ")") {
			for {
				args = append(args, p.parseExpr())
				if p.at(lexer.Punct, ",") {
					p.advance()
					continue
				}
				break
			}
		}
		p.expectPunct(")")
	}
	if fn, ok := p.ctx.Builtins.Lookup(name); ok {
		return p.checkBuiltinCall(fn, name, args, tok)
	}
	if sym, ok := p.ctx.Symbols[name]; ok && sym.IsFunction {
		return p.tree.NewCall(name, args, ast.Empty, units.None, false)
	}
	p.errf(tok.Span, "call to unknown function %q", name)
	return p.tree.NewIntLit(0, units.None, units.NoPrefixFactor, false)
}

func (p *Parser) checkBuiltinCall(fn builtins.Func, name string, args []ast.NodeID, tok lexer.Token) ast.NodeID {
	if len(args) < fn.MinArgs() || len(args) > fn.MaxArgs() {
		p.errf(tok.Span, "%s: expects between %d and %d arguments, got %d", name, fn.MinArgs(), fn.MaxArgs(), len(args))
	}
	descs := make([]builtins.ArgDescriptor, len(args))
	for i, a := range args {
		descs[i] = builtins.ArgDescriptor{
			Type: p.tree.ExprType(a), Unit: p.tree.UnitType(a),
			Final: p.tree.IsFinal(a), Const: p.tree.IsConstExpr(a),
		}
	}
	res, err := fn.CheckArgs(descs)
	if err != nil {
		p.errf(tok.Span, "%s", err.Error())
	}
	if res.Warn != "" {
		p.warnf(tok.Span, "%s", res.Warn)
	}
	return p.tree.NewCall(name, args, res.Type, res.Unit, res.Final)
}
