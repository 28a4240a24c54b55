package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/minhyannv/diagram-agent/pkg/config"
	loggerpkg "github.com/minhyannv/diagram-agent/pkg/logger"
)

const (
	defaultGracePeriod = 5 * time.Second
	stderrTailBytes    = 4 * 1024
)

// ClaudeCLI runs sessions through the claude binary in print mode with
// stream-json output, one process per session.
type ClaudeCLI struct {
	// Path is the binary name or path. Empty means "claude".
	Path string
	// Env is the child environment. Nil inherits the current process.
	Env []string
	// GracePeriod bounds how long a cancelled child may take to exit
	// before it is killed.
	GracePeriod time.Duration

	Logger  loggerpkg.Logger
	Verbose bool
}

// NewClaudeCLI returns a runtime that launches path.
func NewClaudeCLI(path string) *ClaudeCLI {
	return &ClaudeCLI{Path: path, Logger: loggerpkg.NopLogger{}}
}

func (c *ClaudeCLI) path() string {
	if p := strings.TrimSpace(c.Path); p != "" {
		return p
	}
	return config.DefaultCLIPath
}

// Validate checks that the binary can be resolved.
func (c *ClaudeCLI) Validate() error {
	if _, err := exec.LookPath(c.path()); err != nil {
		return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	return nil
}

type mcpConfig struct {
	MCPServers map[string]mcpServerEntry `json:"mcpServers"`
}

type mcpServerEntry struct {
	Type    string            `json:"type"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Args builds the command line for one session.
func (c *ClaudeCLI) Args(prompt string, opts Options) ([]string, error) {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
	}
	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}
	if len(opts.SettingSources) > 0 {
		args = append(args, "--setting-sources", strings.Join(opts.SettingSources, ","))
	}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}
	if opts.SessionID != "" {
		args = append(args, "--session-id", opts.SessionID)
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if len(opts.MCPServers) > 0 {
		cfg := mcpConfig{MCPServers: make(map[string]mcpServerEntry, len(opts.MCPServers))}
		for name, srv := range opts.MCPServers {
			cfg.MCPServers[name] = mcpServerEntry{
				Type:    "stdio",
				Command: srv.Command,
				Args:    srv.Args,
				Env:     srv.Env,
			}
		}
		b, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode mcp config: %w", err)
		}
		args = append(args, "--mcp-config", string(b))
	}
	return append(args, "--", prompt), nil
}

// Start launches the binary and returns its event stream. Cancelling ctx
// interrupts the child; it is killed if it outlives the grace period.
func (c *ClaudeCLI) Start(ctx context.Context, prompt string, opts Options) (Stream, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	args, err := c.Args(prompt, opts)
	if err != nil {
		return nil, err
	}

	grace := c.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	cmd := exec.CommandContext(ctx, c.path(), args...)
	cmd.Dir = opts.WorkDir
	cmd.Env = c.Env
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = grace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = stderr

	logger := c.Logger
	if logger == nil {
		logger = loggerpkg.NopLogger{}
	}
	loggerpkg.Debug(c.Verbose, logger, "runtime start", map[string]any{
		"path":        c.path(),
		"work_dir":    opts.WorkDir,
		"session_id":  opts.SessionID,
		"max_turns":   opts.MaxTurns,
		"mcp_servers": len(opts.MCPServers),
	})

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
		}
		return nil, fmt.Errorf("start %s: %w", c.path(), err)
	}

	s := &cliStream{
		ctx:    ctx,
		cmd:    cmd,
		name:   c.path(),
		lines:  make(chan []byte, 16),
		stop:   make(chan struct{}),
		stderr: stderr,
		logger: logger,
		debug:  c.Verbose,
	}
	go s.read(stdout)
	return s, nil
}

// cliStream is not safe for concurrent use; one consumer drains it.
type cliStream struct {
	ctx    context.Context
	cmd    *exec.Cmd
	name   string
	lines  chan []byte
	stop   chan struct{}
	stderr *tailBuffer
	logger loggerpkg.Logger
	debug  bool

	readErr   error
	current   Event
	err       error
	done      bool
	sawResult bool
	waitOnce  sync.Once
	waitErr   error
}

func (s *cliStream) read(r io.Reader) {
	defer close(s.lines)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			select {
			case s.lines <- trimmed:
			case <-s.stop:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.readErr = fmt.Errorf("read stream: %w", err)
			}
			return
		}
	}
}

func (s *cliStream) Next() bool {
	if s.done {
		return false
	}
	select {
	case <-s.ctx.Done():
		s.finish(nil)
		return false
	case line, ok := <-s.lines:
		if !ok {
			s.finish(s.readErr)
			return false
		}
		ev, err := DecodeEvent(line)
		if err != nil {
			_ = s.cmd.Process.Kill()
			s.finish(err)
			return false
		}
		if ev.EventType() == EventResult {
			s.sawResult = true
		}
		s.current = ev
		return true
	}
}

func (s *cliStream) Current() Event { return s.current }

func (s *cliStream) Err() error { return s.err }

func (s *cliStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	close(s.stop)
	_ = s.cmd.Process.Kill()
	s.wait()
	return nil
}

func (s *cliStream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

func (s *cliStream) finish(cause error) {
	s.done = true
	close(s.stop)
	waitErr := s.wait()

	switch {
	case s.ctx.Err() != nil:
		loggerpkg.Debug(s.debug, s.logger, "runtime cancelled", nil)
		s.err = nil
	case cause != nil:
		s.err = cause
	case waitErr != nil && !s.sawResult:
		detail := strings.TrimSpace(s.stderr.String())
		if detail != "" {
			s.err = fmt.Errorf("%s exited: %w: %s", s.name, waitErr, detail)
		} else {
			s.err = fmt.Errorf("%s exited: %w", s.name, waitErr)
		}
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append([]byte(nil), t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
