package lexer

import (
	"github.com/nksplang/nksp/internal/diag"
	"github.com/nksplang/nksp/internal/units"
)

// Kind classifies a Token for the editor-facing syntax_tokens() path
// (spec §6) as well as for the parser's own consumption.
type Kind int

const (
	EOF Kind = iota
	Keyword
	Sigil     // one of $ ~ @ % ? !
	Ident     // bare identifier (handler/function/condition names)
	IntNumber
	RealNumber
	StringLit
	Comment
	Preprocessor
	MetricPrefix
	StdUnit
	Operator
	Punct
	Illegal
)

func (k Kind) String() string {
	switch k {
	case Keyword:
		return "keyword"
	case Sigil:
		return "sigil"
	case Ident:
		return "ident"
	case IntNumber:
		return "int"
	case RealNumber:
		return "real"
	case StringLit:
		return "string"
	case Comment:
		return "comment"
	case Preprocessor:
		return "preprocessor"
	case MetricPrefix:
		return "metric_prefix"
	case StdUnit:
		return "std_unit"
	case Operator:
		return "operator"
	case Punct:
		return "punct"
	case Illegal:
		return "illegal"
	default:
		return "eof"
	}
}

// SigilType is the declared-type meaning of one of the six sigils.
type SigilType int

const (
	SigilNone SigilType = iota
	SigilInt            // $
	SigilReal           // ~
	SigilString         // @
	SigilIntArray       // %
	SigilRealArray      // ?
	SigilStringArray    // !
)

// SigilOf maps a sigil rune to its SigilType. '!' is context-sensitive: as a
// prefix of an expression it means "final", as a variable declaration sigil
// it means string array. The parser disambiguates; the lexer just reports
// the rune.
var SigilOf = map[rune]SigilType{
	'$': SigilInt,
	'~': SigilReal,
	'@': SigilString,
	'%': SigilIntArray,
	'?': SigilRealArray,
	'!': SigilStringArray,
}

// Token is one lexical unit with a byte-accurate span.
type Token struct {
	Kind  Kind
	Text  string
	Span  diag.CodeBlock
	Sigil rune // set when Kind == Sigil

	// NumUnit/NumFactor carry the parsed metric-prefix+unit suffix of an
	// IntNumber/RealNumber token (e.g. "42kHz" -> Hertz, 1e3). Without a
	// suffix NumUnit is units.None and NumFactor is units.NoPrefixFactor.
	NumUnit   units.Type
	NumFactor float64
}

// DirectiveNames are the preprocessor directive identifiers (spec §6).
var DirectiveNames = map[string]bool{
	"SET_CONDITION": true, "RESET_CONDITION": true,
	"USE_CODE_IF": true, "USE_CODE_IF_NOT": true, "END_USE_CODE": true,
}

var Keywords = map[string]bool{
	"declare": true, "const": true, "polyphonic": true, "patch": true,
	"on": true, "end": true, "function": true, "call": true,
	"if": true, "else": true, "select": true, "case": true, "to": true,
	"while": true, "sync": true, "exit": true, "and": true, "or": true,
	"not": true, "mod": true, "bitwise_and": true, "bitwise_or": true,
	"bitwise_not": true,
}
