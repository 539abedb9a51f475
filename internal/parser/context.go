// Package parser implements the NKSP front-end: the ParserContext that
// owns global symbol tables and memory layout (spec §3, §4.1), and a
// recursive-descent Parser that builds an internal/ast.Tree directly while
// type/unit checking inline (spec §4.1: one combined pass, mirrored on the
// teacher's own single AST+CFG walk in generic_test.go's gta/cfg style).
package parser

import (
	"github.com/nksplang/nksp/internal/ast"
	"github.com/nksplang/nksp/internal/builtins"
	"github.com/nksplang/nksp/internal/diag"
	"github.com/nksplang/nksp/internal/units"
)

// Symbol describes one declared name: a variable, a user function, or an
// event handler.
type Symbol struct {
	Name       string
	Type       ast.ValType
	Unit       units.Type
	Const      bool
	Polyphonic bool
	Patch      bool
	Offset     int
	ArraySize  int
	ConstNode  ast.NodeID // initializer node, for const folding on every access (spec §8 property 2)

	IsFunction bool
	FuncBody   ast.NodeID
}

// PoolLayout tracks the next free offset in each of the global/polyphonic
// pools (spec §3: "Four global pools... three polyphonic pools").
type PoolLayout struct {
	Ints    int
	Reals   int
	Strings int
	Factors int // unit-factor slots; one per numeric (int+real) global slot
}

// ParserContext is the symbol table and memory-layout accumulator for one
// parse. It is discarded once parsing finishes; nothing in ast.Tree points
// back into it (Design Notes §9: no cyclic ownership).
type ParserContext struct {
	Symbols  map[string]*Symbol
	Handlers map[string]ast.NodeID

	Global PoolLayout
	Poly   PoolLayout // Strings is unused: spec §3 "three polyphonic pools mirror the first three excluding strings"

	Sink diag.Sink

	// GlobalInit accumulates top-level declare statements (outside any
	// handler/function), run once at script load (spec §3: "Global
	// variables are created at script load").
	GlobalInit []ast.NodeID

	PatchVarLocations map[string]diag.CodeBlock
	PatchVarArraySize map[string]int

	Builtins    *builtins.Registry
	BuiltinVars *builtins.VarRegistry

	maxStackDepth int
	curDepth      int
}

func NewContext(sink diag.Sink, reg *builtins.Registry, vars *builtins.VarRegistry) *ParserContext {
	return &ParserContext{
		Symbols:           map[string]*Symbol{},
		Handlers:          map[string]ast.NodeID{},
		Sink:              sink,
		PatchVarLocations: map[string]diag.CodeBlock{},
		PatchVarArraySize: map[string]int{},
		Builtins:          reg,
		BuiltinVars:       vars,
	}
}

func (c *ParserContext) allocScalar(typ ast.ValType, poly bool) int {
	if poly {
		switch typ {
		case ast.Int:
			o := c.Poly.Ints
			c.Poly.Ints++
			return o
		case ast.Real:
			o := c.Poly.Reals
			c.Poly.Reals++
			return o
		case ast.String:
			o := c.Poly.Strings
			c.Poly.Strings++
			return o
		}
	}
	switch typ {
	case ast.Int:
		o := c.Global.Ints
		c.Global.Ints++
		c.Global.Factors++
		return o
	case ast.Real:
		o := c.Global.Reals
		c.Global.Reals++
		c.Global.Factors++
		return o
	case ast.String:
		o := c.Global.Strings
		c.Global.Strings++
		return o
	}
	return 0
}

func (c *ParserContext) allocArray(elemType ast.ValType, size int) int {
	switch elemType {
	case ast.Int:
		o := c.Global.Ints
		c.Global.Ints += size
		c.Global.Factors += size
		return o
	case ast.Real:
		o := c.Global.Reals
		c.Global.Reals += size
		c.Global.Factors += size
		return o
	case ast.String:
		o := c.Global.Strings
		c.Global.Strings += size
		return o
	}
	return 0
}

// enterFrame/leaveFrame track how deeply statement lists nest: a handler's
// or function's own body is depth 1, and each if/else branch, select case,
// while body and sync body adds one.
func (c *ParserContext) enterFrame() {
	c.curDepth++
	if c.curDepth > c.maxStackDepth {
		c.maxStackDepth = c.curDepth
	}
}

func (c *ParserContext) leaveFrame() { c.curDepth-- }

// RequiredMaxStackSize turns that depth into executor frames: below the
// body's own list each level holds two frames (the if/select/while/sync
// node and its body list), plus one for the leaf statement being run and
// one for an array declaration's element list or a called function's
// body.
func (c *ParserContext) RequiredMaxStackSize() int { return 2*c.maxStackDepth + 1 }
