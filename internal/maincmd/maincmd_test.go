package maincmd_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mblk/cslox/internal/maincmd"
	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"
)

func writeTempScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.lox")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunFileExecutesScriptAndPrints(t *testing.T) {
	path := writeTempScript(t, `print 1 + 2;`)
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}

	err := maincmd.RunFile(context.Background(), stdio, path)
	require.NoError(t, err)
	require.Equal(t, "3\n", out.String())
	require.Empty(t, errOut.String())
}

func TestRunFileReportsCompileErrors(t *testing.T) {
	path := writeTempScript(t, `var;`)
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}

	err := maincmd.RunFile(context.Background(), stdio, path)
	require.Error(t, err)
	require.NotEmpty(t, errOut.String())
}

func TestRunFileReportsRuntimeErrors(t *testing.T) {
	path := writeTempScript(t, `print undefinedVar;`)
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}

	err := maincmd.RunFile(context.Background(), stdio, path)
	require.Error(t, err)
	require.Contains(t, errOut.String(), "Undefined variable 'undefinedVar'")
}

func TestTokenizeFilePrintsTokenStream(t *testing.T) {
	path := writeTempScript(t, `var x = 1;`)
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}

	err := maincmd.TokenizeFile(stdio, path)
	require.NoError(t, err)
	require.Contains(t, out.String(), "var")
	require.Contains(t, out.String(), "identifier")
	require.Contains(t, out.String(), "eof")
}

func TestRunREPLIgnoresBlankLinesAndExitsOnEOF(t *testing.T) {
	in := strings.NewReader("\nprint 1 + 1;\n\n")
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdin: in, Stdout: &out, Stderr: &errOut}

	err := maincmd.RunREPL(context.Background(), stdio)
	require.NoError(t, err)
	require.Contains(t, out.String(), "2\n")
}

func TestRunREPLPersistsGlobalsAcrossLines(t *testing.T) {
	in := strings.NewReader("var x = 1;\nprint x + 1;\n")
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdin: in, Stdout: &out, Stderr: &errOut}

	err := maincmd.RunREPL(context.Background(), stdio)
	require.NoError(t, err)
	require.Contains(t, out.String(), "2\n")
}
