// Package envfile reads and writes the generated environment file that the
// rest of the deployment sources. Parsing keeps the original key order so a
// re-rendered file diffs cleanly against the one on disk.
package envfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// Pair is one KEY=VALUE entry.
type Pair struct {
	Key   string
	Value string
}

// File is an ordered set of env entries.
type File struct {
	pairs []Pair
	index map[string]int
}

// NewFile returns an empty env file.
func NewFile() *File {
	return &File{index: make(map[string]int)}
}

// Load reads and parses the env file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open env file %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file %s: %w", path, err)
	}
	return parsed, nil
}

// Parse reads KEY=VALUE lines. Blank lines and comments are skipped, an
// optional "export " prefix is tolerated, CRLF input is tolerated, quoted
// values are unquoted. Malformed lines are skipped with a warning rather
// than failing the whole file.
func Parse(r io.Reader) (*File, error) {
	out := NewFile()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" || strings.ContainsAny(key, " \t") {
			log.Warn().Int("line", lineNo).Str("content", line).Msg("skipping malformed env line")
			continue
		}
		out.Set(key, unquote(strings.TrimSpace(value)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read env content: %w", err)
	}
	return out, nil
}

// Set adds or replaces a key, keeping the position of an existing one.
func (f *File) Set(key, value string) {
	if i, ok := f.index[key]; ok {
		f.pairs[i].Value = value
		return
	}
	f.index[key] = len(f.pairs)
	f.pairs = append(f.pairs, Pair{Key: key, Value: value})
}

// Get returns the value for key and whether it is present.
func (f *File) Get(key string) (string, bool) {
	i, ok := f.index[key]
	if !ok {
		return "", false
	}
	return f.pairs[i].Value, true
}

// Pairs returns the entries in file order.
func (f *File) Pairs() []Pair {
	out := make([]Pair, len(f.pairs))
	copy(out, f.pairs)
	return out
}

// Len returns the number of entries.
func (f *File) Len() int {
	return len(f.pairs)
}

// Environ returns the entries in KEY=VALUE form, suitable for exec.Cmd.Env.
func (f *File) Environ() []string {
	out := make([]string, 0, len(f.pairs))
	for _, p := range f.pairs {
		out = append(out, p.Key+"="+p.Value)
	}
	return out
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func quoteIfNeeded(v string) string {
	if v == "" || strings.ContainsAny(v, " #\t\"'") {
		return fmt.Sprintf("%q", v)
	}
	return v
}
