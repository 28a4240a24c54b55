// Command diagram-agent runs one architecture-diagram session for the
// project directory and exits.
//
//	diagram-agent [flags] [prompt words...]
//
// Without prompt words a default "analyze this project" prompt is used.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minhyannv/diagram-agent/pkg/agent"
	"github.com/minhyannv/diagram-agent/pkg/app"
	"github.com/minhyannv/diagram-agent/pkg/interrupt"
	"github.com/minhyannv/diagram-agent/pkg/render"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, deps{}))
}

// deps replaces process-wide collaborators in tests.
type deps struct {
	runtime agent.Runtime
	armer   interrupt.Armer
}

// run executes the command and returns the process exit status.
func run(args []string, stdout, stderr io.Writer, d deps) int {
	code := 0
	cmd := newRootCommand(stdout, stderr, d, &code)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return code
}

func newRootCommand(stdout, stderr io.Writer, d deps, code *int) *cobra.Command {
	var flags app.Flags
	cmd := &cobra.Command{
		Use:           "diagram-agent [prompt]",
		Short:         "Generate an architecture diagram for a project",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	// Everything after the first prompt word belongs to the prompt.
	cmd.Flags().SetInterspersed(false)
	app.BindFlags(cmd.Flags(), &flags)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
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

		prompt := strings.Join(args, " ")
		if strings.TrimSpace(prompt) == "" {
			prompt = agent.DefaultPrompt
		}
		_, _ = fmt.Fprintf(stdout, "\nPrompt: %s\n", prompt)

		armer := d.armer
		if armer == nil {
			trap := interrupt.New(func(os.Signal) { os.Exit(interrupt.ExitCode) }, a.Logger)
			defer trap.Close()
			armer = trap
		}
		ctx, release := armer.Arm(cmd.Context())
		defer release()

		outcome, err := a.Run(ctx, prompt, a.Renderer(render.SingleShot))
		if err != nil {
			return err
		}
		*code = outcome.ExitCode()
		return nil
	}
	return cmd
}
