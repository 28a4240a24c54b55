// Package envfile loads KEY=VALUE files into the process environment
// without overriding variables that are already set.
package envfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Pair is one parsed KEY=VALUE line.
type Pair struct {
	Key   string
	Value string
}

// Load reads path and sets every key that is not already present in the
// process environment. A missing or unreadable file is not an error and
// malformed lines are skipped, so Load never fails.
func Load(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		return
	}
	Apply(Parse(bytes.NewReader(content)), os.Getenv, os.Setenv)
}

// Parse splits r into ordered pairs. Lines may be of any length. Blank lines, lines starting with "#"
// and lines without "=" are dropped. Key and value are split at the first
// "=" and trimmed; the value is otherwise kept verbatim.
func Parse(r io.Reader) []Pair {
	var pairs []Pair
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadString('\n')
		if p, ok := parseLine(raw); ok {
			pairs = append(pairs, p)
		}
		if err != nil {
			return pairs
		}
	}
}

func parseLine(raw string) (Pair, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return Pair{}, false
	}
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return Pair{}, false
	}
	return Pair{
		Key:   strings.TrimSpace(key),
		Value: strings.TrimSpace(value),
	}, true
}

// Apply sets each pair whose key currently has no value, checked at the
// time the pair is applied. A non-empty value already in the environment
// is kept, including one set by an earlier line of the same file; an
// empty value counts as unset and is replaced.
func Apply(pairs []Pair, lookup func(string) string, set func(string, string) error) {
	for _, p := range pairs {
		if p.Key == "" || lookup(p.Key) != "" {
			continue
		}
		_ = set(p.Key, p.Value)
	}
}

// LoadExtra loads explicitly named dotenv files using the full dotenv
// dialect (quoting, export prefixes, inline comments). Existing variables
// are never overridden. Unlike Load, a missing file is an error.
func LoadExtra(paths ...string) error {
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}
