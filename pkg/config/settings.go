package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces settings overrides, e.g. DIAGRAM_AGENT_MAX_TURNS.
const EnvPrefix = "DIAGRAM_AGENT"

// Settings are the process-wide knobs that do not depend on credentials.
type Settings struct {
	MaxTurns       int
	Model          string
	CLIPath        string
	SettingSources []string
	Verbose        bool
}

// flagKeys maps settings keys to the command-line flags that override them.
var flagKeys = map[string]string{
	"max_turns":       "max-turns",
	"model":           "model",
	"claude_path":     "claude-path",
	"setting_sources": "setting-sources",
	"verbose":         "verbose",
}

// LoadSettings resolves settings from defaults, an optional config file,
// DIAGRAM_AGENT_* environment variables and changed flags, in increasing
// order of precedence. flags may be nil.
func LoadSettings(path string, flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	v.SetDefault("max_turns", DefaultMaxTurns)
	v.SetDefault("model", "")
	v.SetDefault("claude_path", DefaultCLIPath)
	v.SetDefault("setting_sources", DefaultSettingSources)
	v.SetDefault("verbose", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Settings{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	return Settings{
		MaxTurns:       v.GetInt("max_turns"),
		Model:          strings.TrimSpace(v.GetString("model")),
		CLIPath:        strings.TrimSpace(v.GetString("claude_path")),
		SettingSources: splitList(v.GetStringSlice("setting_sources")),
		Verbose:        v.GetBool("verbose"),
	}, nil
}

// splitList accepts both repeated values and comma-separated ones.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Build combines settings, gate result and working directory into a
// normalized session configuration.
func (s Settings) Build(workDir string, caps Capabilities) Config {
	cfg := DefaultConfig()
	if strings.TrimSpace(workDir) != "" {
		cfg.WorkDir = workDir
	}
	cfg.MaxTurns = s.MaxTurns
	cfg.Model = s.Model
	cfg.CLIPath = s.CLIPath
	cfg.Verbose = s.Verbose
	if len(s.SettingSources) > 0 {
		cfg.SettingSources = s.SettingSources
	}
	if caps.AllowedTools != nil {
		cfg.AllowedTools = caps.AllowedTools
	}
	cfg.MCPServers = caps.MCPServers
	return Normalize(cfg)
}
