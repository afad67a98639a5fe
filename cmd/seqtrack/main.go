// Command seqtrack answers sample lifecycle questions against the LIMS:
// lifecycle dates, protocol methods, derived laboratory metrics and trending
// reports, and keeps the status database in step with the LIMS.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"seqtrack/pkg/lims"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitLIMS     = 2
	exitConflict = 3
)

// cli runs one command and maps its error onto an exit code.
func cli(args []string, stdout, stderr io.Writer) int {
	a := &app{out: stdout, errOut: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err == nil {
		return exitOK
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var (
		dse      *lims.DataSourceError
		lineage  *lims.LineageError
		conflict *lims.DataConflictError
	)
	switch {
	case errors.As(err, &dse), errors.As(err, &lineage):
		return exitLIMS
	case errors.As(err, &conflict):
		return exitConflict
	default:
		return exitFailure
	}
}
