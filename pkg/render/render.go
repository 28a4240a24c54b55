// Package render prints a session's event stream on the console.
package render

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/minhyannv/diagram-agent/pkg/agent"
)

// Mode selects the cosmetic layout of markers.
type Mode int

const (
	// SingleShot separates markers with blank lines.
	SingleShot Mode = iota
	// Interactive indents tool markers under the "Agent:" header.
	Interactive
)

// DoneMarker is printed after a successful session.
const DoneMarker = "--- Done ---"

// Outcome summarizes one rendered session.
type Outcome struct {
	Result    *agent.ResultEvent
	Cancelled bool
	Events    int
}

// Failed reports whether the session ended with a non-success result.
func (o Outcome) Failed() bool {
	return o.Result != nil && !o.Result.Success()
}

// ExitCode is the single-shot process status for the outcome.
func (o Outcome) ExitCode() int {
	if o.Failed() {
		return 1
	}
	return 0
}

// Renderer writes events as they arrive. Nothing is buffered beyond one
// block.
type Renderer struct {
	out     io.Writer
	errOut  io.Writer
	mode    Mode
	verbose bool

	toolStyle lipgloss.Style
	doneStyle lipgloss.Style
	failStyle lipgloss.Style
	infoStyle lipgloss.Style
}

// New returns a renderer. Styles degrade to plain text when the writers
// are not terminals.
func New(out, errOut io.Writer, mode Mode) *Renderer {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = out
	}
	outR := lipgloss.NewRenderer(out)
	errR := lipgloss.NewRenderer(errOut)
	return &Renderer{
		out:       out,
		errOut:    errOut,
		mode:      mode,
		toolStyle: outR.NewStyle().Foreground(lipgloss.Color("#7D56F4")),
		doneStyle: outR.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
		failStyle: errR.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true),
		infoStyle: outR.NewStyle().Foreground(lipgloss.Color("#626262")),
	}
}

// WithVerbose adds a usage summary line after each result.
func (r *Renderer) WithVerbose(v bool) *Renderer {
	r.verbose = v
	return r
}

// Render drains stream. Stream closure after ctx is cancelled is reported
// through Outcome.Cancelled, not as an error.
func (r *Renderer) Render(ctx context.Context, stream agent.Stream) (Outcome, error) {
	defer stream.Close()

	var outcome Outcome
	for stream.Next() {
		outcome.Events++
		r.event(stream.Current(), &outcome)
	}
	if ctx != nil && ctx.Err() != nil {
		outcome.Cancelled = true
		return outcome, nil
	}
	if err := stream.Err(); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (r *Renderer) event(ev agent.Event, outcome *Outcome) {
	switch e := ev.(type) {
	case *agent.AssistantEvent:
		for _, block := range e.Content {
			r.block(block)
		}
	case *agent.ResultEvent:
		outcome.Result = e
		r.result(e)
	}
}

func (r *Renderer) block(b agent.ContentBlock) {
	switch b.Type {
	case agent.BlockText:
		_, _ = fmt.Fprintln(r.out, b.Text)
	case agent.BlockToolUse:
		marker := r.toolStyle.Render("[Tool: " + b.Name + "]")
		if r.mode == Interactive {
			_, _ = fmt.Fprintf(r.out, "  %s\n", marker)
		} else {
			_, _ = fmt.Fprintf(r.out, "\n%s\n", marker)
		}
	}
}

func (r *Renderer) result(e *agent.ResultEvent) {
	if !e.Success() {
		msg := "Failed: " + e.Subtype
		if len(e.Errors) > 0 {
			msg += ": " + strings.Join(e.Errors, "; ")
		}
		if r.mode == Interactive {
			_, _ = fmt.Fprintln(r.errOut, r.failStyle.Render(msg))
		} else {
			_, _ = fmt.Fprintf(r.errOut, "\n%s\n", r.failStyle.Render(msg))
		}
	}

	switch {
	case r.mode == SingleShot:
		_, _ = fmt.Fprintf(r.out, "\n%s\n", r.doneStyle.Render(DoneMarker))
	case e.Success():
		_, _ = fmt.Fprintln(r.out, r.doneStyle.Render(DoneMarker))
	}

	if r.verbose {
		summary := fmt.Sprintf("(turns: %d, duration: %s, cost: $%.4f)",
			e.NumTurns,
			(time.Duration(e.DurationMS) * time.Millisecond).Round(time.Millisecond),
			e.TotalCostUSD,
		)
		_, _ = fmt.Fprintln(r.out, r.infoStyle.Render(summary))
	}
}
