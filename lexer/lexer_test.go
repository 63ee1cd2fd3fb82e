package lexer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LilConsul/tinycompiled/internal/compileerr"
	"github.com/LilConsul/tinycompiled/token"
)

func kinds(t *testing.T, toks []token.Token) []token.Kind {
	t.Helper()
	out := make([]token.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestTokenizeKeywordsAreCaseInsensitive(t *testing.T) {
	a, err := Tokenize("while\nWHILE\nWhIlE\n")
	require.NoError(t, err)
	// Each keyword is followed by a NEWLINE token, so the keywords sit at
	// indices 0, 2 and 4.
	for _, i := range []int{0, 2, 4} {
		require.Equal(t, token.WHILE, a[i].Kind)
	}
}

func TestTokenizeIdentifierPreservesCase(t *testing.T) {
	toks, err := Tokenize("Total")
	require.NoError(t, err)
	require.Equal(t, "Total", toks[0].Ident())
}

func TestTokenizeRegistersAreCaseSensitive(t *testing.T) {
	toks, err := Tokenize("R1 r1")
	require.NoError(t, err)
	require.Equal(t, token.REGISTER, toks[0].Kind)
	require.Equal(t, 1, toks[0].Register())
	require.Equal(t, token.IDENTIFIER, toks[1].Kind)
}

func TestTokenizeNumericBases(t *testing.T) {
	toks, err := Tokenize("10 0x1F 0b101 -7")
	require.NoError(t, err)
	require.Equal(t, int64(10), toks[0].Int())
	require.Equal(t, int64(31), toks[1].Int())
	require.Equal(t, int64(5), toks[2].Int())
	require.Equal(t, int64(-7), toks[3].Int())
}

func TestTokenizeRelationalOperators(t *testing.T) {
	toks, err := Tokenize("== != >= <= > <")
	require.NoError(t, err)
	require.Equal(t,
		[]token.Kind{token.EQ, token.NEQ, token.GTE, token.LTE, token.GT, token.LT, token.EOF},
		kinds(t, toks))
}

func TestTokenizeCommentsAreSkipped(t *testing.T) {
	withComment, err := Tokenize("PRINT R1 ; print it\n")
	require.NoError(t, err)
	without, err := Tokenize("PRINT R1\n")
	require.NoError(t, err)
	require.Equal(t, kinds(t, without), kinds(t, withComment))
}

func TestTokenizeWhitespaceIsIdempotent(t *testing.T) {
	tight, err := Tokenize("ADD R1,R2,R3\n")
	require.NoError(t, err)
	spaced, err := Tokenize("  ADD   R1 ,   R2 ,  R3  \n")
	require.NoError(t, err)
	require.Equal(t, kinds(t, tight), kinds(t, spaced))
}

func TestTokenizeBareMinusIsError(t *testing.T) {
	_, err := Tokenize("- ")
	require.Error(t, err)
	require.True(t, errors.Is(err, compileerr.ErrBareMinus))
}

func TestTokenizeBareBangIsError(t *testing.T) {
	_, err := Tokenize("!x")
	require.Error(t, err)
	require.True(t, errors.Is(err, compileerr.ErrBareBang))
}

func TestTokenizeUnrecognizedCharIsError(t *testing.T) {
	_, err := Tokenize("$")
	require.Error(t, err)
	require.True(t, errors.Is(err, compileerr.ErrUnrecognizedChar))
}

func TestTokenizeEmptyHexIsError(t *testing.T) {
	_, err := Tokenize("0x")
	require.Error(t, err)
	require.True(t, errors.Is(err, compileerr.ErrMalformedNumber))
}

func TestTokenizeOverflowIsError(t *testing.T) {
	_, err := Tokenize("99999999999999999999999")
	require.Error(t, err)
	require.True(t, errors.Is(err, compileerr.ErrMalformedNumber))
}

func TestTokenizeInt64Bounds(t *testing.T) {
	toks, err := Tokenize("9223372036854775807 -9223372036854775808")
	require.NoError(t, err)
	require.Equal(t, int64(9223372036854775807), toks[0].Int())
	require.Equal(t, int64(-9223372036854775808), toks[1].Int())
}

func TestTokenizePositionsAreOneBased(t *testing.T) {
	toks, err := Tokenize("VAR\nx")
	require.NoError(t, err)
	for _, tok := range toks {
		require.GreaterOrEqual(t, tok.Line, 1)
		require.GreaterOrEqual(t, tok.Column, 1)
	}
}
