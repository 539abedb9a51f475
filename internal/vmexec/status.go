// Package vmexec implements the tree-walking VM executor (spec §4.3–§5):
// an explicit frame stack over internal/ast, stepped under soft/hard
// instruction budgets, with cooperative suspension and abort instead of
// panics or exceptions for control flow (Design Notes §9).
package vmexec

// Status is a bitset, never an error value, threaded through every step
// the way the teacher's interpreter threads bltn/run results without
// panicking for ordinary control flow.
type Status uint8

const (
	NotRunning Status = 0
	Running    Status = 1 << 0
	Suspended  Status = 1 << 1
	Error      Status = 1 << 2
)

// control is the internal-only signal a single statement step returns;
// it composes by bitwise-or up the stack (spec §7) and is distinct from
// the public Status so RETURN never leaks past its subroutine boundary.
type control uint8

const (
	ctrlNone    control = 0
	ctrlAbort   control = 1 << 0
	ctrlSuspend control = 1 << 1
	ctrlReturn  control = 1 << 2
	ctrlError   control = 1 << 3
)

func (c control) has(f control) bool { return c&f != 0 }
