// Package maincmd implements the cslox command-line tool: argument
// parsing and dispatch to the REPL, file-interpretation, and
// token-dump commands described in the External Interfaces surface.
//
// The Cmd/Validate/Main shape and mainer.Parser/mainer.Stdio wiring are
// carried over from nenuphar's internal/maincmd/maincmd.go; cslox's CLI
// surface is flatter (one binary, no subcommands) so dispatch here is a
// plain flag switch rather than nenuphar's reflection-driven command
// table.
package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
)

const binName = "cslox"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [-scan|-parse] [<path>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<path>]
       %[1]s -h|--help
       %[1]s -v|--version

Single-pass compiler and bytecode VM for the %[1]s scripting language.

With no <path>, starts a read-eval-print loop on stdin. With <path>,
reads the whole file and interprets it.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       -scan                     Print the token stream for <path> instead
                                 of interpreting it.
       -parse                    Reserved; not yet implemented.
`, binName)
)

type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`
	Scan    bool `flag:"scan"`
	Parse   bool `flag:"parse"`

	args []string
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if c.Scan && c.Parse {
		return fmt.Errorf("-scan and -parse are mutually exclusive")
	}
	if (c.Scan || c.Parse) && len(c.args) == 0 {
		return fmt.Errorf("a <path> is required with -scan/-parse")
	}
	if len(c.args) > 1 {
		return fmt.Errorf("at most one <path> may be given")
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)

	var err error
	switch {
	case c.Scan:
		err = TokenizeFile(stdio, c.args[0])
	case c.Parse:
		fmt.Fprintln(stdio.Stderr, "-parse: reserved, not yet implemented")
		return mainer.Failure
	case len(c.args) == 1:
		err = RunFile(ctx, stdio, c.args[0])
	default:
		err = RunREPL(ctx, stdio)
	}
	if err != nil {
		return mainer.Failure
	}
	return mainer.Success
}
