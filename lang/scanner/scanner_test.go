package scanner_test

import (
	"testing"

	"github.com/mblk/cslox/lang/scanner"
	"github.com/mblk/cslox/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	s := scanner.New(src)
	var toks []token.Token
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func TestScanKeywordsAndIdents(t *testing.T) {
	toks := scanAll(t, "var x = foo;")
	kinds := make([]token.Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	require.Equal(t, []token.Kind{
		token.VAR, token.IDENT, token.EQUAL, token.IDENT, token.SEMICOLON, token.EOF,
	}, kinds)
}

func TestScanNumber(t *testing.T) {
	toks := scanAll(t, "1.5")
	require.Equal(t, token.NUMBER, toks[0].Kind)
	require.Equal(t, "1.5", toks[0].Lexeme)
}

func TestScanUnterminatedString(t *testing.T) {
	toks := scanAll(t, `"abc`)
	require.Equal(t, token.ILLEGAL, toks[0].Kind)
	require.Equal(t, "Unterminated string.", toks[0].Lexeme)
}

func TestScanLineComment(t *testing.T) {
	toks := scanAll(t, "// hi\nvar")
	require.Equal(t, token.VAR, toks[0].Kind)
	require.Equal(t, 2, toks[0].Line)
}

func TestScanTwoCharOperators(t *testing.T) {
	toks := scanAll(t, "!= == <= >=")
	kinds := make([]token.Kind, 0, 4)
	for _, tok := range toks {
		if tok.Kind != token.EOF {
			kinds = append(kinds, tok.Kind)
		}
	}
	require.Equal(t, []token.Kind{token.BANG_EQUAL, token.EQUAL_EQUAL, token.LESS_EQUAL, token.GREATER_EQUAL}, kinds)
}
