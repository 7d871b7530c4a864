// Package walker enumerates the files a repository scan should consider,
// honoring VCS ignore rules, a repository-local ignore file, caller
// exclusions, and a fixed extension allow-list.
package walker

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// FileEntry describes one file discovered under a walked root, with a
// path relative to the root.
type FileEntry struct {
	Path  string
	MTime uint64
}

// blacklistedDirs are path components that are never descended into,
// regardless of ignore-file contents.
var blacklistedDirs = map[string]bool{
	"target":       true,
	".git":         true,
	"node_modules": true,
}

// validExtensions is the fixed allow-list of file extensions that are
// candidates for indexing.
var validExtensions = map[string]bool{
	"rs": true, "py": true, "js": true, "ts": true, "jsx": true, "tsx": true,
	"go": true, "java": true, "cpp": true, "c": true, "h": true, "hpp": true,
	"php": true, "rb": true, "cs": true,
	"md": true, "txt": true, "json": true, "yml": true, "yaml": true, "toml": true,
}

const codesearchIgnoreFile = ".codesearchignore"

// Walk enumerates every allow-listed, non-ignored file under root.
// excludes are caller-supplied glob patterns; a leading "!" is treated
// as already meaning "exclude" and is stripped, matching the CLI
// convention that bare patterns and "!"-prefixed patterns both exclude.
//
// As a side effect, Walk best-effort appends ".code-search/" to
// <root>/.gitignore so the on-disk index never gets committed.
func Walk(root string, excludes []string) ([]FileEntry, error) {
	ensureGitignore(root)

	matcher := NewMatcher(root, excludes)

	dirs := []string{root}
	var files []string
	for len(dirs) > 0 {
		dir := dirs[len(dirs)-1]
		dirs = dirs[:len(dirs)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			rel, err := filepath.Rel(root, full)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			if !matcher.ShouldIndex(rel, entry.IsDir()) {
				continue
			}

			if entry.IsDir() {
				dirs = append(dirs, full)
				continue
			}
			files = append(files, full)
		}
	}

	return statAll(root, files)
}

// Matcher answers whether a relative path should be considered for
// indexing, applying the blacklist, ignore-file rules, and (for files)
// the extension allow-list. Safe for concurrent use.
type Matcher struct {
	ignore gitignore.IgnoreParser
}

// NewMatcher compiles a Matcher for root using its .gitignore,
// .codesearchignore, and the caller's exclude globs.
func NewMatcher(root string, excludes []string) *Matcher {
	return &Matcher{ignore: buildMatcher(root, excludes)}
}

// ShouldIndex reports whether relPath (slash-separated, relative to the
// matcher's root) passes the blacklist and ignore rules, and, for files,
// the extension allow-list.
func (m *Matcher) ShouldIndex(relPath string, isDir bool) bool {
	if hasBlacklistedComponent(relPath) {
		return false
	}
	if m.ignore != nil && m.ignore.MatchesPath(relPath) {
		return false
	}
	if !isDir && !hasValidExtension(filepath.Base(relPath)) {
		return false
	}
	return true
}

// statAll stats the discovered files in parallel, bounded by runtime.NumCPU(),
// and converts them into root-relative FileEntry values.
func statAll(root string, paths []string) ([]FileEntry, error) {
	results := make([]FileEntry, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			info, err := os.Stat(p)
			if err != nil {
				// File disappeared between discovery and stat (race with a
				// concurrent edit); skip it rather than fail the whole walk.
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return nil
			}
			results[i] = FileEntry{
				Path:  filepath.ToSlash(rel),
				MTime: uint64(info.ModTime().Unix()),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]FileEntry, 0, len(results))
	for _, r := range results {
		if r.Path != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

func hasBlacklistedComponent(relPath string) bool {
	for _, part := range strings.Split(relPath, "/") {
		if blacklistedDirs[part] {
			return true
		}
	}
	return false
}

func hasValidExtension(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return validExtensions[strings.ToLower(ext)]
}

// buildMatcher compiles a single gitignore-style matcher from, in priority
// order: the repository-root .gitignore, the repository-local
// .codesearchignore, and the caller's exclude globs.
func buildMatcher(root string, excludes []string) gitignore.IgnoreParser {
	var lines []string

	lines = append(lines, readIgnoreLines(filepath.Join(root, ".gitignore"))...)
	lines = append(lines, readIgnoreLines(filepath.Join(root, codesearchIgnoreFile))...)

	for _, pattern := range excludes {
		lines = append(lines, strings.TrimPrefix(pattern, "!"))
	}

	if len(lines) == 0 {
		return nil
	}
	return gitignore.CompileIgnoreLines(lines...)
}

func readIgnoreLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// ensureGitignore appends ".code-search/" to root's .gitignore if it
// isn't already present, creating the file if it doesn't exist. Best
// effort: failures are silently ignored, matching the teacher's project
// source of truth for this convenience.
func ensureGitignore(root string) {
	const entry = ".code-search/"
	path := filepath.Join(root, ".gitignore")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			_ = os.WriteFile(path, []byte(entry+"\n"), 0o644)
		}
		return
	}
	if strings.Contains(string(data), entry) {
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString("\n" + entry + "\n")
}
