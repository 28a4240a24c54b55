package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/minhyannv/diagram-agent/pkg/agent"
	"github.com/minhyannv/diagram-agent/pkg/agent/agenttest"
	"github.com/minhyannv/diagram-agent/pkg/config"
	"github.com/minhyannv/diagram-agent/pkg/render"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv unsets the variables Bootstrap may read or set; t.Setenv
// restores them afterwards.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvIcePanelAPIKey,
		config.EnvIcePanelOrganizationID,
		"DIAGRAM_AGENT_MAX_TURNS",
		"DIAGRAM_AGENT_MODEL",
		"DIAGRAM_AGENT_CLAUDE_PATH",
		"DIAGRAM_AGENT_SETTING_SOURCES",
		"DIAGRAM_AGENT_VERBOSE",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("HOME", t.TempDir())
}

func bootstrap(t *testing.T, rt agent.Runtime, args ...string) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var f Flags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, &f)
	require.NoError(t, fs.Parse(args))

	var out, errOut bytes.Buffer
	a, err := Bootstrap(Options{Flags: f, FlagSet: fs, Stdout: &out, Stderr: &errOut, Runtime: rt})
	require.NoError(t, err)
	return a, &out, &errOut
}

func TestBootstrapWithoutCredentials(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	a, out, _ := bootstrap(t, agenttest.NewRuntime(), "--dir", dir)

	assert.False(t, a.Capabilities.Enabled)
	assert.Contains(t, out.String(), "IcePanel credentials not found")
	assert.Equal(t, dir, a.Config.WorkDir)
	assert.Equal(t, config.BaseTools, a.Config.AllowedTools)
	assert.Empty(t, a.Config.MCPServers)
	assert.Equal(t, config.DefaultMaxTurns, a.Config.MaxTurns)
}

func TestBootstrapReadsProjectEnvFile(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	env := "ICEPANEL_API_KEY=key-123\nICEPANEL_ORGANIZATION_ID=org-9\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))

	a, out, _ := bootstrap(t, agenttest.NewRuntime(), "--dir", dir)

	assert.True(t, a.Capabilities.Enabled)
	assert.Equal(t, "IcePanel mode available (credentials found)\n", out.String())
	assert.Contains(t, a.Config.AllowedTools, config.IcePanelToolPattern)
	require.Contains(t, a.Config.MCPServers, config.IcePanelServerName)
	assert.Equal(t, "key-123", a.Config.MCPServers[config.IcePanelServerName].Env["API_KEY"])
}

func TestBootstrapExtraEnvFileAndFlags(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	extra := filepath.Join(t.TempDir(), "icepanel.env")
	require.NoError(t, os.WriteFile(extra, []byte("ICEPANEL_API_KEY=k\nICEPANEL_ORGANIZATION_ID=o\n"), 0o600))

	a, _, _ := bootstrap(t, agenttest.NewRuntime(), "--dir", dir, "--env-file", extra, "--max-turns", "7", "--model", "opus")

	assert.True(t, a.Capabilities.Enabled)
	assert.Equal(t, 7, a.Config.MaxTurns)
	assert.Equal(t, "opus", a.Config.Model)
}

func TestBootstrapRejectsBadInputs(t *testing.T) {
	isolateEnv(t)

	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	cases := map[string][]string{
		"missing dir":      {"--dir", filepath.Join(t.TempDir(), "nope")},
		"dir is a file":    {"--dir", file},
		"missing env file": {"--env-file", filepath.Join(t.TempDir(), "nope.env")},
		"missing config":   {"--config", filepath.Join(t.TempDir(), "nope.yaml")},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var f Flags
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			BindFlags(fs, &f)
			require.NoError(t, fs.Parse(args))

			_, err := Bootstrap(Options{Flags: f, FlagSet: fs, Runtime: agenttest.NewRuntime()})
			assert.Error(t, err)
		})
	}
}

func TestBootstrapDefaultsToClaudeRuntime(t *testing.T) {
	isolateEnv(t)
	a, _, _ := bootstrap(t, nil, "--dir", t.TempDir(), "--claude-path", "/opt/claude")

	assert.Equal(t, "/opt/claude", a.Config.CLIPath)
	assert.NotNil(t, a.Driver)
}

func TestRunRendersSession(t *testing.T) {
	isolateEnv(t)
	rt := agenttest.NewRuntime(agenttest.Text("diagram ready"), agenttest.Result(agent.ResultSuccess))
	a, out, _ := bootstrap(t, rt, "--dir", t.TempDir())
	out.Reset()

	outcome, err := a.Run(context.Background(), "draw", a.Renderer(render.SingleShot))
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.ExitCode())
	assert.Equal(t, "diagram ready\n\n"+render.DoneMarker+"\n", out.String())
	assert.Equal(t, []string{"draw"}, rt.Prompts())
	assert.Equal(t, a.Config.WorkDir, rt.Options()[0].WorkDir)
}

func TestRunStartFailure(t *testing.T) {
	isolateEnv(t)
	rt := agenttest.NewRuntime()
	rt.StartErr = agent.ErrRuntimeUnavailable
	a, _, _ := bootstrap(t, rt, "--dir", t.TempDir())

	_, err := a.Run(context.Background(), "draw", a.Renderer(render.SingleShot))
	assert.ErrorIs(t, err, agent.ErrRuntimeUnavailable)
}

func TestListSkills(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	skillDir := filepath.Join(dir, ".claude", "skills", "c4")
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("---\nname: c4-mermaid\ndescription: C4 diagrams in Mermaid\n---\n"), 0o644))

	a, out, _ := bootstrap(t, agenttest.NewRuntime(), "--dir", dir, "--setting-sources", "project")
	out.Reset()

	require.NoError(t, a.ListSkills())
	assert.Equal(t, "- c4-mermaid [project]: C4 diagrams in Mermaid\n", out.String())
}

func TestRunLogsStreamFailure(t *testing.T) {
	isolateEnv(t)
	rt := agenttest.NewRuntime(agenttest.Text("partial"))
	rt.StreamErr = errors.New("claude exited: exit status 2")
	a, _, errOut := bootstrap(t, rt, "--dir", t.TempDir())

	_, err := a.Run(context.Background(), "draw", a.Renderer(render.SingleShot))
	require.Error(t, err)

	assert.Contains(t, errOut.String(), "session stream failed")
	assert.Contains(t, errOut.String(), "exit status 2")
}

func TestRunLogsInterruptWhenVerbose(t *testing.T) {
	isolateEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt := agenttest.NewRuntime(agenttest.ToolUse("Bash"), agenttest.Result(agent.ResultSuccess))
	rt.HoldAfter = 1
	rt.OnHold = cancel
	a, _, errOut := bootstrap(t, rt, "--dir", t.TempDir(), "--verbose")

	outcome, err := a.Run(ctx, "draw", a.Renderer(render.SingleShot))
	require.NoError(t, err)

	assert.True(t, outcome.Cancelled)
	assert.Contains(t, errOut.String(), "session interrupted")
}

func TestRunQuietByDefault(t *testing.T) {
	isolateEnv(t)
	rt := agenttest.NewRuntime(agenttest.Result(agent.ResultSuccess))
	a, _, errOut := bootstrap(t, rt, "--dir", t.TempDir())

	_, err := a.Run(context.Background(), "draw", a.Renderer(render.SingleShot))
	require.NoError(t, err)

	assert.Empty(t, errOut.String())
}
