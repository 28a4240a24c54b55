// Package skills discovers the Agent Skills the runtime will load from its
// setting sources, so they can be listed before a session starts.
package skills

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minhyannv/diagram-agent/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Setting sources that carry skills.
const (
	SourceUser    = "user"
	SourceProject = "project"
)

// Skill is one SKILL.md found on disk.
type Skill struct {
	Name        string
	Description string
	Path        string
	Source      string
}

type frontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Dir returns the skills directory for a setting source, or "" when the
// source does not carry skills.
func Dir(source, workDir, home string) string {
	switch source {
	case SourceProject:
		if workDir == "" {
			return ""
		}
		return filepath.Join(workDir, ".claude", "skills")
	case SourceUser:
		if home == "" {
			return ""
		}
		return filepath.Join(home, ".claude", "skills")
	}
	return ""
}

// Discover lists skills visible to a session rooted at workDir. Sources are
// walked in order; missing directories are skipped and unreadable skill
// files are logged and skipped.
func Discover(workDir string, sources []string, log logger.Logger) ([]Skill, error) {
	home, _ := os.UserHomeDir()
	return discover(workDir, home, sources, log)
}

func discover(workDir, home string, sources []string, log logger.Logger) ([]Skill, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	var out []Skill
	seen := make(map[string]bool)
	for _, source := range sources {
		dir := Dir(source, workDir, home)
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true

		found, err := loadDir(dir, source, log)
		if err != nil {
			return nil, fmt.Errorf("load %s skills: %w", source, err)
		}
		out = append(out, found...)
	}
	return out, nil
}

func loadDir(dir, source string, log logger.Logger) ([]Skill, error) {
	var out []Skill
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(d.Name(), "SKILL.md") {
			return nil
		}
		skill, err := parseFile(path)
		if err != nil {
			logger.Warn(log, "skipping skill", map[string]any{"path": path, "error": err.Error()})
			return nil
		}
		skill.Source = source
		out = append(out, skill)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		left, right := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if left == right {
			return out[i].Path < out[j].Path
		}
		return left < right
	})
	return out, nil
}

func parseFile(path string) (Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}
	fm, err := parseFrontMatter(content)
	if err != nil {
		return Skill{}, err
	}
	name := strings.TrimSpace(fm.Name)
	if name == "" {
		return Skill{}, fmt.Errorf("missing front matter name")
	}
	return Skill{
		Name:        name,
		Description: strings.TrimSpace(fm.Description),
		Path:        path,
	}, nil
}

func parseFrontMatter(content []byte) (frontMatter, error) {
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	if len(lines) < 3 || strings.TrimSpace(lines[0]) != "---" {
		return frontMatter{}, fmt.Errorf("missing YAML front matter")
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return frontMatter{}, fmt.Errorf("unterminated YAML front matter")
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &fm); err != nil {
		return frontMatter{}, fmt.Errorf("front matter: %w", err)
	}
	return fm, nil
}

// Print writes one line per skill.
func Print(w io.Writer, list []Skill) {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(w, "No skills found.")
		return
	}
	for _, s := range list {
		line := fmt.Sprintf("- %s [%s]", s.Name, s.Source)
		if s.Description != "" {
			line += ": " + s.Description
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
