package config

import (
	"maps"
	"os"
	"slices"
	"strings"
)

const (
	DefaultMaxTurns = 25
	DefaultCLIPath  = "claude"
)

// DefaultSettingSources are the settings scopes the runtime reads skills and
// permissions from.
var DefaultSettingSources = []string{"user", "project"}

// MCPServer describes how the runtime launches a stdio tool provider.
type MCPServer struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Config is the per-session configuration handed to the session driver.
// Treat it as immutable once a session has started.
type Config struct {
	WorkDir        string
	SettingSources []string
	MCPServers     map[string]MCPServer
	AllowedTools   []string
	MaxTurns       int
	Model          string
	CLIPath        string
	Verbose        bool
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return Config{
		WorkDir:        wd,
		SettingSources: slices.Clone(DefaultSettingSources),
		MCPServers:     map[string]MCPServer{},
		AllowedTools:   slices.Clone(BaseTools),
		MaxTurns:       DefaultMaxTurns,
		CLIPath:        DefaultCLIPath,
	}
}

// Normalize sanitizes configuration values, applies defaults and returns a
// copy that shares no slices or maps with cfg.
func Normalize(cfg Config) Config {
	cfg.WorkDir = strings.TrimSpace(cfg.WorkDir)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.CLIPath = strings.TrimSpace(cfg.CLIPath)
	if cfg.CLIPath == "" {
		cfg.CLIPath = DefaultCLIPath
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}

	cfg.SettingSources = compact(cfg.SettingSources)
	cfg.AllowedTools = compact(cfg.AllowedTools)

	servers := make(map[string]MCPServer, len(cfg.MCPServers))
	for name, srv := range cfg.MCPServers {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		servers[name] = MCPServer{
			Command: srv.Command,
			Args:    slices.Clone(srv.Args),
			Env:     maps.Clone(srv.Env),
		}
	}
	cfg.MCPServers = servers
	return cfg
}

// compact trims entries, drops empty ones and removes duplicates while
// keeping first-seen order.
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ToolAllowed reports whether name matches one of patterns. A pattern ending
// in "*" matches every name that starts with the rest of the pattern.
func ToolAllowed(patterns []string, name string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if p == name {
			return true
		}
	}
	return false
}
