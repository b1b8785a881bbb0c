package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mblk/cslox/lang/compiler"
	"github.com/mblk/cslox/lang/machine"
	"github.com/mblk/cslox/lang/object"
	"github.com/mna/mainer"
)

// RunFile reads path as a whole and interprets it in a fresh VM, the way
// "prog <path>" is specified to behave.
func RunFile(ctx context.Context, stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}

	heap := object.NewHeap()
	fn, errs := compiler.Compile(string(src), heap)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(stdio.Stderr, e.Error())
		}
		return errs[0]
	}

	vm := machine.New(heap, stdio.Stdout, stdio.Stderr)
	return vm.Interpret(fn)
}
