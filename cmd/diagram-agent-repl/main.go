// Command diagram-agent-repl reads diagram requests from stdin and runs one
// session per request until "quit" or end of input.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/minhyannv/diagram-agent/pkg/agent"
	"github.com/minhyannv/diagram-agent/pkg/app"
	"github.com/minhyannv/diagram-agent/pkg/interrupt"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, deps{}))
}

// deps replaces process-wide collaborators in tests.
type deps struct {
	runtime agent.Runtime
	armer   interrupt.Armer
}

func run(args []string, in io.Reader, stdout, stderr io.Writer, d deps) int {
	cmd := newRootCommand(in, stdout, stderr, d)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand(in io.Reader, stdout, stderr io.Writer, d deps) *cobra.Command {
	var flags app.Flags
	cmd := &cobra.Command{
		Use:           "diagram-agent-repl",
		Short:         "Interactive architecture diagram agent",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	app.BindFlags(cmd.Flags(), &flags)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		a, err := app.Bootstrap(app.Options{
			Flags:   flags,
			FlagSet: cmd.Flags(),
			Stdout:  stdout,
			Stderr:  stderr,
			Runtime: d.runtime,
		})
		if err != nil {
			return err
		}
		if flags.ListSkills {
			return a.ListSkills()
		}

		armer := d.armer
		if armer == nil {
			trap := interrupt.New(func(os.Signal) {
				_, _ = fmt.Fprintln(stdout)
				os.Exit(interrupt.ExitCode)
			}, a.Logger)
			defer trap.Close()
			armer = trap
		}
		return runREPL(cmd.Context(), a, armer, in, stdout)
	}
	return cmd
}
