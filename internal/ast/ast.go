// Package ast is the tree node model (spec §4.2): an immutable-after-parse,
// arena-allocated tree of NKSP expressions and statements. Per Design
// Notes §9, nodes hold integer indices into arenas and pools rather than
// pointers into a ParserContext, which eliminates the original design's
// cyclic variable->context back-pointers and makes a *Tree trivially
// shareable (read-only) across concurrent ExecContexts once parsing
// finishes.
package ast

import "github.com/nksplang/nksp/internal/units"

// NodeID is an arena-relative index. The zero value NodeID(0) is never a
// valid node (index 0 is reserved as a sentinel "no node"); real nodes
// start at index 1.
type NodeID int32

// ValType is the declared/inferred type of an expression (spec §3).
type ValType int

const (
	Empty ValType = iota
	Int
	Real
	String
	IntArray
	RealArray
	StringArray
)

func (t ValType) IsArray() bool {
	return t == IntArray || t == RealArray || t == StringArray
}

// ElementType returns the scalar type held by an array type.
func (t ValType) ElementType() ValType {
	switch t {
	case IntArray:
		return Int
	case RealArray:
		return Real
	case StringArray:
		return String
	default:
		return t
	}
}

// Kind discriminates Node variants (spec §4.2).
type Kind uint8

const (
	KindNoOp Kind = iota
	KindIntLit
	KindRealLit
	KindStrLit
	KindVar          // scalar variable reference (global or local-to-function)
	KindArrayVar     // whole-array reference (passed to builtins like sort/num_elements)
	KindArrayElem    // indexed array element access/store
	KindPolyVar      // polyphonic scalar variable reference
	KindBuiltinVarRef // host-registered built-in variable (constant or dynamic)
	KindBinArith     // + - * / mod
	KindRelational   // = # < > <= >=
	KindLogicalAnd
	KindLogicalOr
	KindBitwiseAnd
	KindBitwiseOr
	KindUnaryNeg
	KindUnaryNot
	KindUnaryBitNot
	KindFinalMarker // unary "!" final annotation on a sub-expression
	KindConcat      // string concatenation
	KindCall        // built-in or user-function call used as an expression
	KindAssign
	KindIf
	KindSelect
	KindSelectCase // one case/range arm of a Select
	KindWhile
	KindSync
	KindSub     // user-defined function ("subroutine")
	KindHandler // event handler block
	KindStmtList
	KindExit
	KindInc
	KindDec
)

// CaseRange is one `case` arm: a single value (Lo==Hi) or an inclusive
// range `Lo to Hi`.
type CaseRange struct {
	Lo, Hi int64
	Body   NodeID
}

// Node is the single tagged-struct representation for every tree variant,
// mirroring the teacher's single `node` struct with many optional fields;
// enum dispatch (switch on Kind) is used on the hot evaluation path, with
// virtual dispatch reserved for the builtin-function call boundary
// (Design Notes §9), which is why KindCall stores a function name resolved
// through a registry rather than a node-embedded interface value.
type Node struct {
	Kind Kind
	Type ValType
	Unit units.Type
	// Factor is the node's statically known metric-prefix factor: a
	// literal's own factor, or for an arithmetic node the factor derived
	// from its operands' static factors at parse time (variables and calls
	// carry units.NoPrefixFactor). The evaluator recomputes the factor of
	// +, -, * and / from the operand values at run time.
	Factor float64
	Final  bool
	Const  bool // true if this expression is a compile-time constant

	Children []NodeID

	IntVal int64
	RealVal float64
	StrVal  string

	// Variable identity.
	Name       string
	PoolOffset int // offset into the relevant global/polyphonic pool
	ArraySize  int // constant element count, for array-typed declarations
	Polyphonic bool

	// Operator text for BinArith/Relational/Unary*, e.g. "+", "=", "mod".
	Op string

	// Call.
	FuncName string

	// If: Children = [cond, thenBranch, elseBranch?] (elseBranch NodeID(0) if absent).
	// Select: Children = [selector expr]; the case arms are held in Cases.
	// While: Children = [cond, body].
	// Sync/Sub/Handler/StmtList: Children = body statements / single body.
	Cases []CaseRange

	HandlerName string
}

// Tree is the arena owning every Node of one ParsedScript.
type Tree struct {
	nodes []Node // nodes[0] is an unused sentinel so NodeID(0) means "none"
}

func NewTree() *Tree {
	return &Tree{nodes: []Node{{}}}
}

func (t *Tree) add(n Node) NodeID {
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

func (t *Tree) Len() int { return len(t.nodes) }

// --- constructors -----------------------------------------------------

func (t *Tree) NewIntLit(v int64, unit units.Type, factor float64, final bool) NodeID {
	return t.add(Node{Kind: KindIntLit, Type: Int, IntVal: v, Unit: unit, Factor: factor, Final: final, Const: true})
}

func (t *Tree) NewRealLit(v float64, unit units.Type, factor float64, final bool) NodeID {
	return t.add(Node{Kind: KindRealLit, Type: Real, RealVal: v, Unit: unit, Factor: factor, Final: final, Const: true})
}

func (t *Tree) NewStrLit(v string) NodeID {
	return t.add(Node{Kind: KindStrLit, Type: String, StrVal: v, Const: true})
}

func (t *Tree) NewVar(name string, typ ValType, unit units.Type, offset int, poly, isConst bool) NodeID {
	k := KindVar
	if poly {
		k = KindPolyVar
	}
	return t.add(Node{Kind: k, Type: typ, Unit: unit, Factor: units.NoPrefixFactor, Name: name, PoolOffset: offset, Polyphonic: poly, Const: isConst})
}

func (t *Tree) NewArrayVar(name string, elemType ValType, offset, size int, poly bool) NodeID {
	arrType := IntArray
	switch elemType {
	case Real:
		arrType = RealArray
	case String:
		arrType = StringArray
	}
	return t.add(Node{Kind: KindArrayVar, Type: arrType, Name: name, PoolOffset: offset, ArraySize: size, Polyphonic: poly})
}

func (t *Tree) NewArrayElem(array NodeID, index NodeID, elemType ValType) NodeID {
	return t.add(Node{Kind: KindArrayElem, Type: elemType, Children: []NodeID{array, index}})
}

func (t *Tree) NewBuiltinVarRef(name string, typ ValType, unit units.Type) NodeID {
	return t.add(Node{Kind: KindBuiltinVarRef, Type: typ, Unit: unit, Factor: units.NoPrefixFactor, Name: name})
}

// NewBuiltinArrayVarRef is the array-typed counterpart of NewBuiltinVarRef,
// for a host-registered array variable (spec §6: "8-bit integer array
// views"). It carries ArraySize like NewArrayVar, but no PoolOffset: the
// backing storage lives in host memory, resolved by Name at eval time.
func (t *Tree) NewBuiltinArrayVarRef(name string, arrType ValType, size int, unit units.Type) NodeID {
	return t.add(Node{Kind: KindBuiltinVarRef, Type: arrType, Unit: unit, Factor: units.NoPrefixFactor, Name: name, ArraySize: size})
}

func (t *Tree) NewBinArith(op string, l, r NodeID, resType ValType, unit units.Type, factor float64, final, isConst bool) NodeID {
	return t.add(Node{Kind: KindBinArith, Type: resType, Op: op, Children: []NodeID{l, r}, Unit: unit, Factor: factor, Final: final, Const: isConst})
}

func (t *Tree) NewRelational(op string, l, r NodeID, isConst bool) NodeID {
	return t.add(Node{Kind: KindRelational, Type: Int, Op: op, Children: []NodeID{l, r}, Factor: units.NoPrefixFactor, Const: isConst})
}

func (t *Tree) NewLogical(or bool, l, r NodeID, isConst bool) NodeID {
	k := KindLogicalAnd
	if or {
		k = KindLogicalOr
	}
	return t.add(Node{Kind: k, Type: Int, Children: []NodeID{l, r}, Factor: units.NoPrefixFactor, Const: isConst})
}

func (t *Tree) NewBitwise(or bool, l, r NodeID, isConst bool) NodeID {
	k := KindBitwiseAnd
	if or {
		k = KindBitwiseOr
	}
	return t.add(Node{Kind: k, Type: Int, Children: []NodeID{l, r}, Factor: units.NoPrefixFactor, Const: isConst})
}

func (t *Tree) NewUnary(kind Kind, operand NodeID, resType ValType, unit units.Type, factor float64, final, isConst bool) NodeID {
	return t.add(Node{Kind: kind, Type: resType, Children: []NodeID{operand}, Unit: unit, Factor: factor, Final: final, Const: isConst})
}

func (t *Tree) NewFinalMarker(operand NodeID) NodeID {
	n := t.nodes[operand]
	return t.add(Node{Kind: KindFinalMarker, Type: n.Type, Children: []NodeID{operand}, Unit: n.Unit, Factor: n.Factor, Final: true, Const: n.Const})
}

func (t *Tree) NewConcat(parts []NodeID) NodeID {
	return t.add(Node{Kind: KindConcat, Type: String, Children: parts})
}

func (t *Tree) NewCall(funcName string, args []NodeID, resType ValType, unit units.Type, final bool) NodeID {
	return t.add(Node{Kind: KindCall, Type: resType, FuncName: funcName, Children: args, Unit: unit, Factor: units.NoPrefixFactor, Final: final})
}

func (t *Tree) NewAssign(lhs, rhs NodeID) NodeID {
	return t.add(Node{Kind: KindAssign, Type: Empty, Children: []NodeID{lhs, rhs}})
}

func (t *Tree) NewIf(cond, thenB, elseB NodeID) NodeID {
	return t.add(Node{Kind: KindIf, Children: []NodeID{cond, thenB, elseB}})
}

func (t *Tree) NewSelect(selector NodeID, cases []CaseRange) NodeID {
	return t.add(Node{Kind: KindSelect, Children: []NodeID{selector}, Cases: cases})
}

func (t *Tree) NewWhile(cond, body NodeID) NodeID {
	return t.add(Node{Kind: KindWhile, Children: []NodeID{cond, body}})
}

func (t *Tree) NewSync(body NodeID) NodeID {
	return t.add(Node{Kind: KindSync, Children: []NodeID{body}})
}

func (t *Tree) NewSub(name string, body NodeID) NodeID {
	return t.add(Node{Kind: KindSub, Name: name, Children: []NodeID{body}})
}

func (t *Tree) NewHandler(name string, body NodeID) NodeID {
	return t.add(Node{Kind: KindHandler, HandlerName: name, Children: []NodeID{body}})
}

func (t *Tree) NewStmtList(stmts []NodeID) NodeID {
	return t.add(Node{Kind: KindStmtList, Children: stmts})
}

func (t *Tree) NewExit(value NodeID) NodeID {
	return t.add(Node{Kind: KindExit, Children: []NodeID{value}})
}

func (t *Tree) NewIncDec(dec bool, operand NodeID) NodeID {
	k := KindInc
	if dec {
		k = KindDec
	}
	return t.add(Node{Kind: k, Type: Int, Children: []NodeID{operand}})
}

func (t *Tree) NewNoOp() NodeID {
	return t.add(Node{Kind: KindNoOp})
}

// --- static capability methods (spec §4.2) -----------------------------

func (t *Tree) ExprType(id NodeID) ValType { return t.nodes[id].Type }

func (t *Tree) IsConstExpr(id NodeID) bool { return t.nodes[id].Const }

func (t *Tree) IsPolyphonic(id NodeID) bool {
	n := &t.nodes[id]
	if n.Kind == KindPolyVar {
		return true
	}
	for _, c := range n.Children {
		if c != 0 && t.IsPolyphonic(c) {
			return true
		}
	}
	return false
}

func (t *Tree) UnitType(id NodeID) units.Type { return t.nodes[id].Unit }

func (t *Tree) UnitFactor(id NodeID) float64 {
	f := t.nodes[id].Factor
	if f == 0 {
		return units.NoPrefixFactor
	}
	return f
}

func (t *Tree) IsFinal(id NodeID) bool { return t.nodes[id].Final }

// ArraySize returns the constant declared size of an array-typed node.
func (t *Tree) ArraySize(id NodeID) int { return t.nodes[id].ArraySize }
