package agent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/minhyannv/diagram-agent/pkg/agent"
	"github.com/minhyannv/diagram-agent/pkg/agent/agenttest"
	"github.com/minhyannv/diagram-agent/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T, rt agent.Runtime) *agent.Driver {
	t.Helper()
	d, err := agent.NewDriver(rt, agent.WithSessionIDs(func() string { return "session-1" }))
	require.NoError(t, err)
	return d
}

func drain(s agent.Stream) []agent.Event {
	var out []agent.Event
	for s.Next() {
		out = append(out, s.Current())
	}
	return out
}

func TestNewDriverRequiresRuntime(t *testing.T) {
	_, err := agent.NewDriver(nil)
	assert.Error(t, err)
}

func TestQueryRejectsEmptyPrompt(t *testing.T) {
	rt := agenttest.NewRuntime()
	d := newDriver(t, rt)

	_, err := d.Query(context.Background(), "   ", config.DefaultConfig())
	assert.ErrorIs(t, err, agent.ErrEmptyPrompt)
	assert.Empty(t, rt.Prompts())
}

func TestQueryPassesPromptAndConfig(t *testing.T) {
	rt := agenttest.NewRuntime(agenttest.Result(agent.ResultSuccess))
	d := newDriver(t, rt)

	cfg := config.DefaultConfig()
	cfg.WorkDir = "/project"
	cfg.MaxTurns = 12
	cfg.AllowedTools = []string{"Bash", config.IcePanelToolPattern}
	cfg.MCPServers = map[string]config.MCPServer{"icepanel": config.IcePanelServer("k", "o")}

	prompt := "  draw <everything> as-is  "
	s, err := d.Query(context.Background(), prompt, cfg)
	require.NoError(t, err)
	drain(s)

	assert.Equal(t, []string{prompt}, rt.Prompts())
	opts := rt.Options()[0]
	assert.Equal(t, "session-1", opts.SessionID)
	assert.Equal(t, "/project", opts.WorkDir)
	assert.Equal(t, 12, opts.MaxTurns)
	assert.Equal(t, []string{"user", "project"}, opts.SettingSources)
	assert.Equal(t, []string{"Bash", config.IcePanelToolPattern}, opts.AllowedTools)
	assert.Contains(t, opts.MCPServers, "icepanel")
}

func TestQueryYieldsEventsInOrder(t *testing.T) {
	events := []agent.Event{
		agenttest.Text("hello"),
		agenttest.ToolUse("Bash"),
		agenttest.Result(agent.ResultSuccess),
	}
	d := newDriver(t, agenttest.NewRuntime(events...))

	s, err := d.Query(context.Background(), "go", config.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, events, drain(s))
	assert.NoError(t, s.Err())
	assert.False(t, s.Next(), "stream must not restart")
}

func TestQueryWrapsStartFailure(t *testing.T) {
	rt := agenttest.NewRuntime()
	rt.StartErr = agent.ErrRuntimeUnavailable
	d := newDriver(t, rt)

	_, err := d.Query(context.Background(), "go", config.DefaultConfig())
	assert.ErrorIs(t, err, agent.ErrRuntimeUnavailable)
}

func TestQueryReportsStreamFailure(t *testing.T) {
	rt := agenttest.NewRuntime(agenttest.Text("partial"))
	rt.StreamErr = errors.New("stream broke")
	d := newDriver(t, rt)

	s, err := d.Query(context.Background(), "go", config.DefaultConfig())
	require.NoError(t, err)
	drain(s)

	assert.EqualError(t, s.Err(), "stream broke")
}

func TestQueryCancellationEndsStreamCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := agenttest.NewRuntime(
		agenttest.ToolUse("Bash"),
		agenttest.Result(agent.ResultSuccess),
	)
	rt.HoldAfter = 1
	rt.OnHold = cancel
	rt.StreamErr = errors.New("killed")
	d := newDriver(t, rt)

	s, err := d.Query(ctx, "go", config.DefaultConfig())
	require.NoError(t, err)
	got := drain(s)

	require.Len(t, got, 1)
	assert.IsType(t, &agent.AssistantEvent{}, got[0])
	assert.NoError(t, s.Err())
	assert.True(t, rt.Streams()[0].Closed())
}

func TestQueryAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newDriver(t, agenttest.NewRuntime(agenttest.Text("late")))
	s, err := d.Query(ctx, "go", config.DefaultConfig())
	require.NoError(t, err)

	assert.Empty(t, drain(s))
	assert.NoError(t, s.Err())
}
