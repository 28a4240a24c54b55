// Package app wires configuration, credentials and the agent runtime for
// both the single-shot and the interactive binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minhyannv/diagram-agent/pkg/agent"
	"github.com/minhyannv/diagram-agent/pkg/config"
	"github.com/minhyannv/diagram-agent/pkg/envfile"
	loggerpkg "github.com/minhyannv/diagram-agent/pkg/logger"
	"github.com/minhyannv/diagram-agent/pkg/render"
	"github.com/minhyannv/diagram-agent/pkg/skills"
	"github.com/spf13/pflag"
)

// Flags holds the command-line values that are not settings.
type Flags struct {
	Dir        string
	EnvFiles   []string
	ConfigFile string
	ListSkills bool
}

// BindFlags registers the flags shared by both binaries. Settings flags
// are read back through config.LoadSettings.
func BindFlags(fs *pflag.FlagSet, f *Flags) {
	fs.StringVar(&f.Dir, "dir", "", "Project directory to analyze (default: current directory)")
	fs.StringArrayVar(&f.EnvFiles, "env-file", nil, "Extra dotenv file to load; repeat for more")
	fs.StringVar(&f.ConfigFile, "config", "", "Settings file (yaml, json or toml)")
	fs.BoolVar(&f.ListSkills, "list-skills", false, "List discovered skills and exit")

	fs.Int("max-turns", config.DefaultMaxTurns, "Maximum agent turns per session")
	fs.String("model", "", "Model override passed to the runtime")
	fs.String("claude-path", config.DefaultCLIPath, "Path to the claude binary")
	fs.StringSlice("setting-sources", config.DefaultSettingSources, "Runtime setting sources")
	fs.Bool("verbose", false, "Debug logging and per-session usage summary")
}

// Options are the process-level inputs to Bootstrap.
type Options struct {
	Flags   Flags
	FlagSet *pflag.FlagSet
	Stdout  io.Writer
	Stderr  io.Writer
	// Runtime overrides the claude CLI runtime.
	Runtime agent.Runtime
}

// App is a bootstrapped process.
type App struct {
	Config       config.Config
	Capabilities config.Capabilities
	Driver       *agent.Driver
	Logger       loggerpkg.Logger

	stdout io.Writer
	stderr io.Writer
}

// Bootstrap loads <dir>/.env and any extra env files, resolves settings,
// runs the capability gate and builds the driver. The gate notice is
// written to Stdout.
func Bootstrap(opts Options) (*App, error) {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	dir, err := projectDir(opts.Flags.Dir)
	if err != nil {
		return nil, err
	}

	envfile.Load(filepath.Join(dir, ".env"))
	if err := envfile.LoadExtra(opts.Flags.EnvFiles...); err != nil {
		return nil, err
	}

	settings, err := config.LoadSettings(opts.Flags.ConfigFile, opts.FlagSet)
	if err != nil {
		return nil, err
	}

	level := "warn"
	if settings.Verbose {
		level = "debug"
	}
	logger := loggerpkg.New(stderr, loggerpkg.Options{Level: level, Pretty: true})

	caps := config.Gate(os.Getenv, stdout)
	cfg := settings.Build(dir, caps)
	loggerpkg.Debug(cfg.Verbose, logger, "app init", map[string]any{
		"dir":             cfg.WorkDir,
		"max_turns":       cfg.MaxTurns,
		"model":           cfg.Model,
		"claude_path":     cfg.CLIPath,
		"setting_sources": cfg.SettingSources,
		"allowed_tools":   cfg.AllowedTools,
		"icepanel":        caps.Enabled,
	})

	rt := opts.Runtime
	if rt == nil {
		cli := agent.NewClaudeCLI(cfg.CLIPath)
		cli.Logger = logger
		cli.Verbose = cfg.Verbose
		rt = cli
	}
	driver, err := agent.NewDriver(rt, agent.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &App{
		Config:       cfg,
		Capabilities: caps,
		Driver:       driver,
		Logger:       logger,
		stdout:       stdout,
		stderr:       stderr,
	}, nil
}

func projectDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve project dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project dir %s is not a directory", abs)
	}
	return abs, nil
}

// Skills lists the skills the runtime will see for this project.
func (a *App) Skills() ([]skills.Skill, error) {
	found, err := skills.Discover(a.Config.WorkDir, a.Config.SettingSources, a.Logger)
	if err != nil {
		return nil, err
	}
	loggerpkg.Debugf(a.Config.Verbose, a.Logger, "discovered %d skill(s)", len(found))
	return found, nil
}

// ListSkills prints discovered skills to stdout.
func (a *App) ListSkills() error {
	found, err := a.Skills()
	if err != nil {
		return err
	}
	skills.Print(a.stdout, found)
	return nil
}

// Renderer returns a console renderer bound to the app's streams.
func (a *App) Renderer(mode render.Mode) *render.Renderer {
	return render.New(a.stdout, a.stderr, mode).WithVerbose(a.Config.Verbose)
}

// Run performs one session: it starts the query under ctx and renders the
// stream until it ends. A cancelled ctx yields a Cancelled outcome. Start
// and stream failures are logged at error level and returned.
func (a *App) Run(ctx context.Context, prompt string, r *render.Renderer) (render.Outcome, error) {
	stream, err := a.Driver.Query(ctx, prompt, a.Config)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, agent.ErrEmptyPrompt) {
			loggerpkg.Info(a.Logger, "session interrupted before start", nil)
			return render.Outcome{Cancelled: true}, nil
		}
		loggerpkg.Error(a.Logger, "session failed to start", err)
		return render.Outcome{}, err
	}

	outcome, err := r.Render(ctx, stream)
	switch {
	case err != nil:
		loggerpkg.Error(a.Logger, "session stream failed", err)
	case outcome.Cancelled:
		loggerpkg.Info(a.Logger, "session interrupted", map[string]any{"events": outcome.Events})
	}
	return outcome, err
}
