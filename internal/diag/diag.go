// Package diag carries byte-accurate diagnostic spans between the lexer,
// preprocessor, parser and host (spec §6 "Diagnostics format"). It is
// injected explicitly wherever diagnostics are produced (Design Notes §9:
// "avoid process-wide state") rather than logged through a package-level
// logger.
package diag

// CodeBlock is a byte-accurate source span, 1-based lines/columns and
// 0-based byte offset per spec §6.
type CodeBlock struct {
	FirstLine   int
	LastLine    int
	FirstColumn int
	LastColumn  int
	FirstByte   int
	Len         int
}

// Kind classifies a Diagnostic.
type Kind int

const (
	Error Kind = iota
	Warning
)

func (k Kind) String() string {
	if k == Warning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one parse error or warning.
type Diagnostic struct {
	Kind    Kind
	Message string
	Span    CodeBlock
}

// PatchVar records the byte span of a patch-variable's initializer, keyed
// by the variable's declared name (spec §4.1).
type PatchVar struct {
	Name string
	Span CodeBlock
}

// Sink collects diagnostics, elided preprocessor regions and patch-variable
// locations produced while compiling one script. It is passed explicitly
// into the preprocessor and parser rather than reached for as global state.
type Sink interface {
	Error(msg string, span CodeBlock)
	Warning(msg string, span CodeBlock)
	Elided(span CodeBlock)
	PatchVariable(name string, span CodeBlock)
}

// Collector is the default in-memory Sink implementation; ParsedScript
// exposes its accumulated slices as the script's diagnostics.
type Collector struct {
	Diagnostics []Diagnostic
	ElidedSpans []CodeBlock
	PatchVars   []PatchVar
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) Error(msg string, span CodeBlock) {
	c.Diagnostics = append(c.Diagnostics, Diagnostic{Kind: Error, Message: msg, Span: span})
}

func (c *Collector) Warning(msg string, span CodeBlock) {
	c.Diagnostics = append(c.Diagnostics, Diagnostic{Kind: Warning, Message: msg, Span: span})
}

func (c *Collector) Elided(span CodeBlock) {
	c.ElidedSpans = append(c.ElidedSpans, span)
}

func (c *Collector) PatchVariable(name string, span CodeBlock) {
	c.PatchVars = append(c.PatchVars, PatchVar{Name: name, Span: span})
}

// HasErrors reports whether any Error-kind diagnostic was collected. A
// script with HasErrors true is loadable for diagnostic display but, per
// spec §7, refuses to execute.
func (c *Collector) HasErrors() bool {
	for _, d := range c.Diagnostics {
		if d.Kind == Error {
			return true
		}
	}
	return false
}
