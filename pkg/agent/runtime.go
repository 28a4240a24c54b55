package agent

import (
	"context"
	"errors"

	"github.com/minhyannv/diagram-agent/pkg/config"
)

var (
	// ErrEmptyPrompt is returned when a session is started without a prompt.
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrRuntimeUnavailable is returned when the runtime cannot be launched.
	ErrRuntimeUnavailable = errors.New("agent runtime unavailable")
)

// Options is what the runtime needs to conduct one session.
type Options struct {
	SessionID      string
	WorkDir        string
	SettingSources []string
	MCPServers     map[string]config.MCPServer
	AllowedTools   []string
	MaxTurns       int
	Model          string
}

// Runtime conducts the whole agent loop and reports it as a stream of
// events. Cancelling ctx asks the runtime to abort the session.
type Runtime interface {
	Start(ctx context.Context, prompt string, opts Options) (Stream, error)
}

// Stream is a lazy, single-pass sequence of events.
//
//	for stream.Next() {
//	    ev := stream.Current()
//	}
//	if err := stream.Err(); err != nil { ... }
type Stream interface {
	// Next blocks until the next event is available. It returns false once
	// the stream has ended or failed.
	Next() bool
	// Current returns the event produced by the last successful Next.
	Current() Event
	// Err returns the failure that ended the stream, if any.
	Err() error
	// Close releases the stream. It is safe to call more than once.
	Close() error
}
