package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeOpcodesAddOPPrefix(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("dup hash160 OP_EQUAL checksig")
	require.NoError(t, err)
	require.Len(t, toks, 4)
	for _, tk := range toks {
		require.Equal(t, KindOpcode, tk.Kind)
	}
	require.Equal(t, "OP_DUP", toks[0].Text)
	require.Equal(t, "OP_HASH160", toks[1].Text)
	require.Equal(t, "OP_EQUAL", toks[2].Text)
	require.Equal(t, "OP_CHECKSIG", toks[3].Text)
}

func TestTokenizeDecimalLiteral(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("5")
	require.NoError(t, err)
	require.Len(t, toks, 1)
	require.Equal(t, KindLiteral, toks[0].Kind)
	require.Equal(t, []byte{0x05}, toks[0].Literal)
}

func TestTokenizeNegativeDecimalLiteral(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("-5")
	require.NoError(t, err)
	require.Equal(t, []byte{0x85}, toks[0].Literal)
}

func TestTokenizeZeroIsEmptyBytes(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("0")
	require.NoError(t, err)
	require.Nil(t, toks[0].Literal)
}

func TestTokenizeHexLiteral(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("0xdeadbeef")
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, toks[0].Literal)
}

func TestTokenizeHexLiteralOddLengthErrors(t *testing.T) {
	t.Parallel()

	_, err := New("").Tokenize("0xabc")
	require.Error(t, err)
}

func TestTokenizeXQuotedHexLiteral(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("x('aabb')")
	require.NoError(t, err)
	require.Equal(t, []byte{0xaa, 0xbb}, toks[0].Literal)
}

func TestTokenizeLE64Literal(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("le64(1000)")
	require.NoError(t, err)
	require.Equal(t, []byte{0xe8, 0x03, 0, 0, 0, 0, 0, 0}, toks[0].Literal)
}

func TestTokenizeLE64InvalidNumber(t *testing.T) {
	t.Parallel()

	_, err := New("").Tokenize("le64(not-a-number)")
	require.Error(t, err)
}

func TestTokenizeQuotedStringLiteral(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("'hello'")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), toks[0].Literal)
}

func TestTokenizeUnterminatedQuoteErrors(t *testing.T) {
	t.Parallel()

	_, err := New("").Tokenize("'hello")
	require.Error(t, err)
}

func TestTokenizeQuoteWithWhitespaceErrors(t *testing.T) {
	t.Parallel()

	_, err := New("").Tokenize("'hello world'")
	require.Error(t, err)
}

func TestTokenizeAngleBracketedDataReTokenized(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("<0x01 dup>")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	require.Equal(t, KindLiteral, toks[0].Kind)
	require.Equal(t, KindOpcode, toks[1].Kind)
	require.Equal(t, "OP_DUP", toks[1].Text)
}

func TestTokenizeUnterminatedAngleBracketErrors(t *testing.T) {
	t.Parallel()

	_, err := New("").Tokenize("<0x01")
	require.Error(t, err)
}

func TestTokenizePlaceholder(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("$sig1 dup")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	require.Equal(t, KindPlaceholder, toks[0].Kind)
	require.Equal(t, "$sig1", toks[0].Text)
}

func TestTokenizeCommentDefaultMarker(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("dup // this is ignored")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	require.Equal(t, KindComment, toks[1].Kind)
	require.Equal(t, "this is ignored", toks[1].Comment)
}

func TestTokenizeCustomCommentMarker(t *testing.T) {
	t.Parallel()

	toks, err := New("#").Tokenize("dup # a remark")
	require.NoError(t, err)
	require.Equal(t, KindComment, toks[1].Kind)
	require.Equal(t, "a remark", toks[1].Comment)
}

func TestTokenizeTracksLineNumbers(t *testing.T) {
	t.Parallel()

	toks, err := New("").Tokenize("dup\nhash160\n0x01")
	require.NoError(t, err)
	require.Len(t, toks, 3)
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 2, toks[1].Line)
	require.Equal(t, 3, toks[2].Line)
}

func TestEncodeScriptIntMinimalDataRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		n    int64
		want []byte
	}{
		{0, nil},
		{1, []byte{0x01}},
		{-1, []byte{0x81}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x00}},
		{-128, []byte{0x80, 0x80}},
		{255, []byte{0xff, 0x00}},
		{256, []byte{0x00, 0x01}},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, encodeScriptInt(tc.n), "n=%d", tc.n)
	}
}
