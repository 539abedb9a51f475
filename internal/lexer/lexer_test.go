package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nksplang/nksp/internal/units"
)

func tokenKinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestScanSigils(t *testing.T) {
	toks := New([]byte("$x ~y @z %a ?b !c")).Tokens()
	require.Len(t, toks, 7) // 6 sigils + EOF
	for i, want := range []rune{'$', '~', '@', '%', '?', '!'} {
		assert.Equal(t, Sigil, toks[i].Kind)
		assert.Equal(t, want, toks[i].Sigil)
	}
}

func TestScanNumberPlainInt(t *testing.T) {
	toks := New([]byte("42")).Tokens()
	require.Len(t, toks, 2)
	assert.Equal(t, IntNumber, toks[0].Kind)
	assert.Equal(t, "42", toks[0].Text)
	assert.Equal(t, units.NoPrefixFactor, toks[0].NumFactor)
	assert.Equal(t, units.None, toks[0].NumUnit)
}

func TestScanNumberWithPrefixedUnit(t *testing.T) {
	toks := New([]byte("42kHz")).Tokens()
	require.Len(t, toks, 2)
	assert.Equal(t, IntNumber, toks[0].Kind)
	assert.Equal(t, "42", toks[0].Text)
	assert.Equal(t, units.Hertz, toks[0].NumUnit)
	assert.Equal(t, 1e3, toks[0].NumFactor)
}

func TestScanNumberStackedPrefix(t *testing.T) {
	toks := New([]byte("1.5mdB")).Tokens()
	require.Len(t, toks, 2)
	assert.Equal(t, RealNumber, toks[0].Kind)
	assert.Equal(t, "1.5", toks[0].Text)
	assert.Equal(t, units.Bel, toks[0].NumUnit)
	assert.Equal(t, units.ComposeFactor(units.Milli, units.Deci), toks[0].NumFactor)
}

func TestScanNumberBacktracksWithoutUnit(t *testing.T) {
	// "42k" has no recognized unit after the prefix, so the whole suffix is
	// left unconsumed for the next token rather than swallowed.
	toks := New([]byte("42k")).Tokens()
	require.Len(t, toks, 3)
	assert.Equal(t, IntNumber, toks[0].Kind)
	assert.Equal(t, "42", toks[0].Text)
	assert.Equal(t, units.None, toks[0].NumUnit)
	assert.Equal(t, Ident, toks[1].Kind)
	assert.Equal(t, "k", toks[1].Text)
}

func TestScanCommentAndString(t *testing.T) {
	toks := New([]byte(`{ a comment } "hello"`)).Tokens()
	require.Len(t, toks, 3)
	assert.Equal(t, Comment, toks[0].Kind)
	assert.Equal(t, StringLit, toks[1].Kind)
	assert.Equal(t, "hello", toks[1].Text)
}

func TestScanKeywordsAndIdents(t *testing.T) {
	toks := New([]byte("declare on end if message")).Tokens()
	kinds := tokenKinds(toks)
	assert.Equal(t, []Kind{Keyword, Keyword, Keyword, Keyword, Ident, EOF}, kinds)
}
