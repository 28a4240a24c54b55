package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minhyannv/diagram-agent/pkg/app"
	"github.com/minhyannv/diagram-agent/pkg/interrupt"
	loggerpkg "github.com/minhyannv/diagram-agent/pkg/logger"
	"github.com/minhyannv/diagram-agent/pkg/render"
)

// runREPL reads one request per line and runs a fresh session for each.
// Sessions run one at a time; the next prompt appears only after the
// previous stream has ended. Failed results are rendered and the loop
// continues; a runtime that cannot start or breaks mid-stream ends it.
func runREPL(ctx context.Context, a *app.App, armer interrupt.Armer, in io.Reader, out io.Writer) error {
	if a == nil {
		return fmt.Errorf("app is required")
	}
	if in == nil {
		return fmt.Errorf("input reader is required")
	}
	if out == nil {
		out = io.Discard
	}

	loggerpkg.Debug(a.Config.Verbose, a.Logger, "repl start", map[string]any{"dir": a.Config.WorkDir})

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	renderer := a.Renderer(render.Interactive)
	printWelcome(out)

	for {
		_, _ = fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			break
		}

		line := scanner.Text()
		input := strings.TrimSpace(line)
		if strings.EqualFold(input, "quit") {
			_, _ = fmt.Fprintln(out, "Goodbye!")
			break
		}
		if input == "" {
			continue
		}

		_, _ = fmt.Fprintln(out, "\nAgent:")
		if err := runSession(ctx, a, armer, line, renderer); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func runSession(ctx context.Context, a *app.App, armer interrupt.Armer, prompt string, r *render.Renderer) error {
	sessionCtx, release := armer.Arm(ctx)
	defer release()

	_, err := a.Run(sessionCtx, prompt, r)
	return err
}

func printWelcome(out io.Writer) {
	_, _ = fmt.Fprintln(out, "Architecture Diagram Agent - Interactive Mode")
	_, _ = fmt.Fprintln(out, `Type your request, or "quit" to exit.`)
	_, _ = fmt.Fprintln(out)
}
