package maincmd

import (
	"fmt"
	"os"

	"github.com/mblk/cslox/lang/scanner"
	"github.com/mblk/cslox/lang/token"
	"github.com/mna/mainer"
)

// TokenizeFile prints the token stream for path, one token per line, the
// way "prog -scan <path>" is specified to behave.
func TokenizeFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}

	s := scanner.New(string(src))
	for {
		tok := s.Scan()
		fmt.Fprintf(stdio.Stdout, "%4d %-12s %q\n", tok.Line, tok.Kind, tok.Lexeme)
		if tok.Kind == token.EOF {
			break
		}
	}
	return nil
}
