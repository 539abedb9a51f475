// Package preprocess implements NKSP's conditional-compilation directives
// and patch-variable textual substitution (spec §4.1).
package preprocess

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/nksplang/nksp/internal/diag"
)

var directiveRe = regexp.MustCompile(`(?m)^[ \t]*(SET_CONDITION|RESET_CONDITION|USE_CODE_IF_NOT|USE_CODE_IF|END_USE_CODE)\s*(?:\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*\))?[ \t]*\r?\n?`)

// Preprocessor tracks the active condition set while eliding inactive
// regions from source text ahead of parsing.
type Preprocessor struct {
	active map[string]bool
}

// New seeds the active condition set from host-supplied built-in
// conditions (spec §4.1: "seeded by host-supplied built-ins").
func New(hostConditions []string) *Preprocessor {
	p := &Preprocessor{active: map[string]bool{}}
	for _, c := range hostConditions {
		p.active[c] = true
	}
	return p
}

type directive struct {
	name    string
	cond    string
	matchAt int
	matchTo int
}

// Run elides inactive USE_CODE_IF/USE_CODE_IF_NOT blocks and strips
// SET_CONDITION/RESET_CONDITION directive lines, replacing elided bytes
// with spaces/newlines of identical length so downstream byte offsets
// reported by the parser remain valid against the original source. It
// reports every elided span to sink (spec §4.1: "inactive regions become
// no-ops with their spans retained in the elided-regions list").
func (p *Preprocessor) Run(source []byte, sink diag.Sink) []byte {
	out := append([]byte(nil), source...)
	directives := scan(source)

	type frame struct {
		name       string
		cond       string
		active     bool
		parentSkip bool
		startByte  int
	}
	var stack []frame
	skip := false
	var decisions []bool // each USE_CODE_IF*'s outcome, in source order

	blank := func(from, to int) {
		for i := from; i < to && i < len(out); i++ {
			if out[i] != '\n' {
				out[i] = ' '
			}
		}
	}

	for _, d := range directives {
		switch d.name {
		case "SET_CONDITION":
			if !skip {
				p.active[d.cond] = true
			}
			blank(d.matchAt, d.matchTo)
		case "RESET_CONDITION":
			if !skip {
				p.active[d.cond] = false
			}
			blank(d.matchAt, d.matchTo)
		case "USE_CODE_IF", "USE_CODE_IF_NOT":
			want := d.name == "USE_CODE_IF"
			condActive := p.active[d.cond] == want
			decisions = append(decisions, condActive)
			stack = append(stack, frame{name: d.name, cond: d.cond, active: condActive, parentSkip: skip, startByte: d.matchAt})
			blank(d.matchAt, d.matchTo)
			if !condActive {
				skip = true
			}
		case "END_USE_CODE":
			if len(stack) == 0 {
				blank(d.matchAt, d.matchTo)
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !top.active {
				sink.Elided(spanOf(source, top.startByte, d.matchTo))
			}
			skip = top.parentSkip
			blank(d.matchAt, d.matchTo)
		}
	}

	// second pass: blank bodies of inactive blocks (content between the
	// directive markers, which are already blanked above).
	var stack2 []frame
	skip = false
	var blankStart int
	next := 0
	for _, d := range directives {
		switch d.name {
		case "USE_CODE_IF", "USE_CODE_IF_NOT":
			condActive := decisions[next]
			next++
			if skip {
				condActive = false // nested inactive stays inactive
			}
			stack2 = append(stack2, frame{active: condActive, parentSkip: skip})
			if !condActive && !skip {
				blankStart = d.matchTo
			}
			skip = skip || !condActive
		case "END_USE_CODE":
			if len(stack2) == 0 {
				continue
			}
			top := stack2[len(stack2)-1]
			stack2 = stack2[:len(stack2)-1]
			if !top.active && !top.parentSkip {
				blank(blankStart, d.matchAt)
			}
			skip = top.parentSkip
		}
	}
	return out
}

func spanOf(source []byte, from, to int) diag.CodeBlock {
	line, col := 1, 1
	for i := 0; i < from && i < len(source); i++ {
		if source[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	firstLine, firstCol := line, col
	for i := from; i < to && i < len(source); i++ {
		if source[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return diag.CodeBlock{FirstLine: firstLine, LastLine: line, FirstColumn: firstCol, LastColumn: col, FirstByte: from, Len: to - from}
}

func scan(source []byte) []directive {
	var out []directive
	locs := directiveRe.FindAllSubmatchIndex(source, -1)
	for _, loc := range locs {
		name := string(source[loc[2]:loc[3]])
		cond := ""
		if loc[4] >= 0 {
			cond = string(source[loc[4]:loc[5]])
		}
		out = append(out, directive{name: name, cond: cond, matchAt: loc[0], matchTo: loc[1]})
	}
	return out
}

// Patch textually substitutes patch-variable initializers. locations maps a
// patch variable's declared name to the byte span of its initializer
// expression (or, for a patch variable with no initializer, a zero-length
// span positioned where an initializer would start). Array-typed overrides
// are validated against declaredArraySize before substitution (Design
// Notes Open Question 1): a mismatched element count is a compile error
// rather than a silent resize, since array size is otherwise a fixed,
// compile-time property (spec §3).
func Patch(source []byte, locations map[string]diag.CodeBlock, overrides map[string]string, declaredArraySize map[string]int) (patched []byte, original map[string]string, err error) {
	original = map[string]string{}
	type edit struct {
		from, to int
		text     string
	}
	var edits []edit
	for name, span := range locations {
		ov, has := overrides[name]
		if !has {
			continue
		}
		original[name] = string(source[span.FirstByte : span.FirstByte+span.Len])
		if size, isArray := declaredArraySize[name]; isArray {
			n := countArrayElements(ov)
			if n != size {
				return nil, nil, fmt.Errorf("patch override for array %q has %d elements, declared size is %d", name, n, size)
			}
		}
		text := ov
		if span.Len == 0 {
			text = ":= " + ov
		}
		edits = append(edits, edit{from: span.FirstByte, to: span.FirstByte + span.Len, text: text})
	}
	if len(edits) == 0 {
		return source, original, nil
	}
	// apply edits right-to-left so earlier byte offsets stay valid
	out := append([]byte(nil), source...)
	sort.Slice(edits, func(i, j int) bool { return edits[i].from > edits[j].from })
	for _, e := range edits {
		var b strings.Builder
		b.Write(out[:e.from])
		b.WriteString(e.text)
		b.Write(out[e.to:])
		out = []byte(b.String())
	}
	return out, original, nil
}

func countArrayElements(literal string) int {
	s := strings.TrimSpace(literal)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return len(strings.Split(s, ","))
}
