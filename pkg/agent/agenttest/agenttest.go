// Package agenttest provides a scripted agent.Runtime for tests.
package agenttest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/minhyannv/diagram-agent/pkg/agent"
)

// Runtime replays the same scripted events for every session it starts.
type Runtime struct {
	// Events are emitted in order for each session.
	Events []agent.Event
	// HoldAfter, when positive, makes each stream block after that many
	// events until its context is cancelled. Remaining events are still
	// offered afterwards, like a runtime that is slow to notice.
	HoldAfter int
	// OnHold runs once per session when the stream starts blocking.
	OnHold func()
	// StartErr is returned from Start instead of a stream.
	StartErr error
	// StreamErr is reported by Err once the script is exhausted.
	StreamErr error

	mu      sync.Mutex
	prompts []string
	opts    []agent.Options
	streams []*Stream
}

var _ agent.Runtime = (*Runtime)(nil)

// NewRuntime returns a runtime that emits events.
func NewRuntime(events ...agent.Event) *Runtime {
	return &Runtime{Events: events}
}

func (r *Runtime) Start(ctx context.Context, prompt string, opts agent.Options) (agent.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
	r.opts = append(r.opts, opts)
	if r.StartErr != nil {
		return nil, r.StartErr
	}
	s := &Stream{
		ctx:    ctx,
		events: append([]agent.Event(nil), r.Events...),
		hold:   r.HoldAfter,
		onHold: r.OnHold,
		err:    r.StreamErr,
	}
	r.streams = append(r.streams, s)
	return s, nil
}

// Prompts returns every prompt a session was started with.
func (r *Runtime) Prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.prompts...)
}

// Options returns the options of every started session.
func (r *Runtime) Options() []agent.Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]agent.Options(nil), r.opts...)
}

// Streams returns every stream handed out so far.
func (r *Runtime) Streams() []*Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Stream(nil), r.streams...)
}

// Stream is a scripted agent.Stream.
type Stream struct {
	ctx     context.Context
	events  []agent.Event
	next    int
	hold    int
	onHold  func()
	current agent.Event
	err     error
	ended   bool

	mu     sync.Mutex
	closed bool
}

func (s *Stream) Next() bool {
	if s.hold > 0 && s.next >= s.hold {
		s.hold = 0
		if s.onHold != nil {
			s.onHold()
		}
		<-s.ctx.Done()
	}
	if s.next >= len(s.events) {
		s.ended = true
		return false
	}
	s.current = s.events[s.next]
	s.next++
	return true
}

func (s *Stream) Current() agent.Event { return s.current }

func (s *Stream) Err() error {
	if !s.ended {
		return nil
	}
	return s.err
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Text builds an assistant event holding text blocks.
func Text(texts ...string) *agent.AssistantEvent {
	ev := &agent.AssistantEvent{}
	for _, t := range texts {
		ev.Content = append(ev.Content, agent.ContentBlock{Type: agent.BlockText, Text: t})
	}
	return ev
}

// ToolUse builds an assistant event with one tool invocation.
func ToolUse(name string) *agent.AssistantEvent {
	return &agent.AssistantEvent{Content: []agent.ContentBlock{{
		Type:  agent.BlockToolUse,
		ID:    "toolu_" + name,
		Name:  name,
		Input: json.RawMessage(`{}`),
	}}}
}

// Result builds a terminal result event.
func Result(subtype string, errs ...string) *agent.ResultEvent {
	return &agent.ResultEvent{
		Subtype: subtype,
		IsError: subtype != agent.ResultSuccess,
		Errors:  errs,
	}
}
