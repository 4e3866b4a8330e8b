// Package ignore merges built-in excludes, .gitignore, and .contextignore
// into a single shouldIgnore predicate, mirroring gitignore pattern semantics.
package ignore

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// BuiltinDirBlocklist are directories never walked regardless of ignore files.
var BuiltinDirBlocklist = []string{
	".git", "node_modules", "vendor", "dist", "build", ".augment",
	".idea", ".vscode", "__pycache__", ".venv", "venv", "target",
}

// BuiltinFileGlobBlocklist are file globs excluded by default.
var BuiltinFileGlobBlocklist = []string{
	"*.pyc", "*.pyo", "*.so", "*.dylib", "*.dll", "*.exe",
	"*.min.js", "*.min.css", "*.lock", "*.log",
}

// pattern is one parsed ignore rule.
type pattern struct {
	raw       string
	negated   bool
	anchored  bool // leading '/'
	dirOnly   bool // trailing '/'
	glob      string
}

// Set is a per-workspace merged ignore rule set, built eagerly by Load.
type Set struct {
	patterns []pattern
}

// Load builds the ignore Set for a workspace root, reading
// /.gitignore then /.contextignore (first of a preference list, both additive).
func Load(workspaceRoot string) (*Set, error) {
	s := &Set{}

	for _, glob := range BuiltinFileGlobBlocklist {
		s.patterns = append(s.patterns, parsePattern(glob))
	}
	for _, dir := range BuiltinDirBlocklist {
		s.patterns = append(s.patterns, parsePattern(dir+"/"))
	}

	for _, name := range []string{".gitignore", ".contextignore"} {
		p := filepath.Join(workspaceRoot, name)
		pats, err := readIgnoreFile(p)
		if err != nil {
			return nil, err
		}
		s.patterns = append(s.patterns, pats...)
	}

	logging.IgnoreDebug("loaded %d ignore patterns for %s", len(s.patterns), workspaceRoot)
	return s, nil
}

func readIgnoreFile(path string) ([]pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, parsePattern(line))
	}
	return out, scanner.Err()
}

func parsePattern(raw string) pattern {
	p := pattern{raw: raw}
	s := raw

	if strings.HasPrefix(s, "!") {
		p.negated = true
		s = s[1:]
	}
	if strings.HasPrefix(s, "/") {
		p.anchored = true
		s = s[1:]
	}
	if strings.HasSuffix(s, "/") {
		p.dirOnly = true
		s = strings.TrimSuffix(s, "/")
	}
	p.glob = s
	return p
}

// ShouldIgnore reports whether relpath (workspace-relative, forward-slash)
// matches any rule. Negations are parsed but treated as no-ops, matching
// nothing, per spec.md §4.2.
func (s *Set) ShouldIgnore(relpath string, isDir bool) bool {
	relpath = filepath.ToSlash(relpath)
	ignored := false
	for _, p := range s.patterns {
		if p.negated {
			continue
		}
		if p.dirOnly && !isDir {
			continue
		}
		if matchPattern(p, relpath, isDir) {
			ignored = true
		}
	}
	return ignored
}

func matchPattern(p pattern, relpath string, isDir bool) bool {
	candidate := relpath
	glob := p.glob

	if p.anchored {
		return globMatch(glob, candidate) || (p.dirOnly && dirPrefixMatch(glob, candidate))
	}

	if strings.Contains(glob, "/") {
		return globMatch(glob, candidate) || dirComponentMatch(glob, candidate)
	}

	// No slash: match against basename, or any path component for dir-only rules.
	base := path.Base(candidate)
	if globMatch(glob, base) {
		return true
	}
	if p.dirOnly {
		for _, seg := range strings.Split(candidate, "/") {
			if globMatch(glob, seg) {
				return true
			}
		}
	}
	return false
}

func dirPrefixMatch(glob, candidate string) bool {
	return candidate == glob || strings.HasPrefix(candidate, glob+"/")
}

func dirComponentMatch(glob, candidate string) bool {
	return globMatch(glob, candidate) || strings.HasPrefix(candidate, glob+"/")
}

// globMatch implements shell-style glob matching with ** across separators.
func globMatch(glob, name string) bool {
	if !strings.Contains(glob, "**") {
		ok, err := path.Match(glob, name)
		return err == nil && ok
	}
	return doubleStarMatch(strings.Split(glob, "/"), strings.Split(name, "/"))
}

func doubleStarMatch(globParts, nameParts []string) bool {
	if len(globParts) == 0 {
		return len(nameParts) == 0
	}
	head := globParts[0]
	if head == "**" {
		if len(globParts) == 1 {
			return true
		}
		for i := 0; i <= len(nameParts); i++ {
			if doubleStarMatch(globParts[1:], nameParts[i:]) {
				return true
			}
		}
		return false
	}
	if len(nameParts) == 0 {
		return false
	}
	ok, err := path.Match(head, nameParts[0])
	if err != nil || !ok {
		return false
	}
	return doubleStarMatch(globParts[1:], nameParts[1:])
}
