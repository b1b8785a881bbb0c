package maincmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mblk/cslox/lang/compiler"
	"github.com/mblk/cslox/lang/machine"
	"github.com/mblk/cslox/lang/object"
	"github.com/mna/mainer"
)

// RunREPL reads one line at a time from stdio.Stdin, compiling and running
// each against a single persistent VM so globals survive across lines.
// Blank lines are ignored; EOF ends the loop and returns nil.
func RunREPL(ctx context.Context, stdio mainer.Stdio) error {
	heap := object.NewHeap()
	vm := machine.New(heap, stdio.Stdout, stdio.Stderr)

	scanner := bufio.NewScanner(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !scanner.Scan() {
			return nil
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		fn, errs := compiler.Compile(line, heap)
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(stdio.Stderr, e.Error())
			}
			continue
		}
		_ = vm.Interpret(fn)
	}
}
