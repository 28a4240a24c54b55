// Package agent drives one conversational session against an external agent
// runtime and exposes its output as a stream of events.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/minhyannv/diagram-agent/pkg/config"
	loggerpkg "github.com/minhyannv/diagram-agent/pkg/logger"
)

// DefaultPrompt is used by the single-shot runner when no prompt is given.
const DefaultPrompt = "Analyze this project and create an architecture diagram."

// Driver starts sessions. It holds no per-session state, so one Driver
// serves every iteration of the interactive loop.
type Driver struct {
	runtime Runtime
	logger  loggerpkg.Logger
	newID   func() string
}

// NewDriver returns a driver for rt.
func NewDriver(rt Runtime, opts ...DriverOption) (*Driver, error) {
	if rt == nil {
		return nil, errors.New("runtime is required")
	}
	deps := driverDeps{logger: loggerpkg.NopLogger{}, newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	if deps.logger == nil {
		deps.logger = loggerpkg.NopLogger{}
	}
	if deps.newID == nil {
		deps.newID = uuid.NewString
	}
	return &Driver{runtime: rt, logger: deps.logger, newID: deps.newID}, nil
}

// Query runs one session for prompt. The prompt is passed verbatim. The
// returned stream yields events in runtime order and ends cleanly, with a
// nil Err, once ctx is cancelled.
func (d *Driver) Query(ctx context.Context, prompt string, cfg config.Config) (Stream, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = config.Normalize(cfg)

	opts := Options{
		SessionID:      d.newID(),
		WorkDir:        cfg.WorkDir,
		SettingSources: cfg.SettingSources,
		MCPServers:     cfg.MCPServers,
		AllowedTools:   cfg.AllowedTools,
		MaxTurns:       cfg.MaxTurns,
		Model:          cfg.Model,
	}
	loggerpkg.Debug(cfg.Verbose, d.logger, "session start", map[string]any{
		"session_id":    opts.SessionID,
		"work_dir":      opts.WorkDir,
		"max_turns":     opts.MaxTurns,
		"allowed_tools": opts.AllowedTools,
		"prompt_bytes":  len(prompt),
	})

	inner, err := d.runtime.Start(ctx, prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return &sessionStream{
		ctx:       ctx,
		inner:     inner,
		allowed:   opts.AllowedTools,
		sessionID: opts.SessionID,
		logger:    d.logger,
		verbose:   cfg.Verbose,
	}, nil
}

// sessionStream enforces the session contract on top of any runtime
// stream: nothing is yielded after cancellation and closure after
// cancellation is not an error.
type sessionStream struct {
	ctx       context.Context
	inner     Stream
	allowed   []string
	sessionID string
	logger    loggerpkg.Logger
	verbose   bool

	current Event
	done    bool
	events  int
}

func (s *sessionStream) Next() bool {
	if s.done {
		return false
	}
	if s.ctx.Err() != nil || !s.inner.Next() || s.ctx.Err() != nil {
		s.end()
		return false
	}
	s.current = s.inner.Current()
	s.events++
	s.observe(s.current)
	return true
}

func (s *sessionStream) observe(ev Event) {
	switch e := ev.(type) {
	case *AssistantEvent:
		for _, block := range e.Content {
			if block.Type != BlockToolUse {
				continue
			}
			loggerpkg.Debug(s.verbose, s.logger, "tool use", map[string]any{
				"session_id":   s.sessionID,
				"tool":         block.Name,
				"pre_approved": config.ToolAllowed(s.allowed, block.Name),
			})
		}
	case *ResultEvent:
		loggerpkg.Debug(s.verbose, s.logger, "session result", map[string]any{
			"session_id":  s.sessionID,
			"subtype":     e.Subtype,
			"num_turns":   e.NumTurns,
			"duration_ms": e.DurationMS,
		})
	}
}

func (s *sessionStream) end() {
	s.done = true
	if s.ctx.Err() != nil {
		loggerpkg.Debug(s.verbose, s.logger, "session cancelled", map[string]any{
			"session_id": s.sessionID,
			"events":     s.events,
		})
		_ = s.inner.Close()
	}
}

func (s *sessionStream) Current() Event { return s.current }

func (s *sessionStream) Err() error {
	if s.ctx.Err() != nil {
		return nil
	}
	return s.inner.Err()
}

func (s *sessionStream) Close() error {
	s.done = true
	return s.inner.Close()
}
