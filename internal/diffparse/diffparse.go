// Package diffparse implements the Diff Parser & Risk Preflight (C13):
// parsing a unified diff into per-file hunks with tracked old/new line
// numbers, followed by a deterministic, no-LLM risk assessment.
package diffparse

import (
	"bufio"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
)

// LineType classifies one line within a hunk.
type LineType string

const (
	LineContext LineType = "context"
	LineAdded   LineType = "added"
	LineRemoved LineType = "removed"
)

// Line is a single tracked line within a hunk.
type Line struct {
	OldLine int      `json:"old_line,omitempty"`
	NewLine int      `json:"new_line,omitempty"`
	Type    LineType `json:"type"`
	Content string   `json:"content"`
}

// Hunk is one `@@ -a,b +c,d @@` block.
type Hunk struct {
	OldStart int    `json:"old_start"`
	OldCount int    `json:"old_count"`
	NewStart int    `json:"new_start"`
	NewCount int    `json:"new_count"`
	Header   string `json:"header,omitempty"`
	Lines    []Line `json:"lines"`
}

// FileDiff is the set of hunks touching one file.
type FileDiff struct {
	OldPath  string `json:"old_path"`
	NewPath  string `json:"new_path"`
	IsNew    bool   `json:"is_new"`
	IsDelete bool   `json:"is_delete"`
	IsBinary bool   `json:"is_binary"`
	Hunks    []Hunk `json:"hunks"`
}

var (
	reDiffGit  = regexp.MustCompile(`^diff --git a/(.+) b/(.+)$`)
	reOldPath  = regexp.MustCompile(`^--- (?:a/)?(.+)$`)
	reNewPath  = regexp.MustCompile(`^\+\+\+ (?:b/)?(.+)$`)
	reHunkHead = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)$`)
)

// Parse parses a unified diff (as produced by `git diff`) into per-file
// hunks. old_line/new_line are initialized from each hunk's old_start/
// new_start and advanced per line, per spec.
func Parse(raw string) ([]FileDiff, *daemonerr.Error) {
	var files []FileDiff
	var current *FileDiff
	var hunk *Hunk
	oldLine, newLine := 0, 0

	flushHunk := func() {
		if current != nil && hunk != nil {
			current.Hunks = append(current.Hunks, *hunk)
			hunk = nil
		}
	}
	flushFile := func() {
		flushHunk()
		if current != nil {
			files = append(files, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(raw))
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if m := reDiffGit.FindStringSubmatch(line); m != nil {
			flushFile()
			current = &FileDiff{OldPath: m[1], NewPath: m[2]}
			continue
		}
		if current == nil {
			continue
		}
		if strings.HasPrefix(line, "Binary files") {
			current.IsBinary = true
			continue
		}
		if strings.HasPrefix(line, "--- ") {
			flushHunk()
			if m := reOldPath.FindStringSubmatch(line); m != nil {
				if m[1] == "/dev/null" {
					current.IsNew = true
				} else {
					current.OldPath = m[1]
				}
			}
			continue
		}
		if strings.HasPrefix(line, "+++ ") {
			if m := reNewPath.FindStringSubmatch(line); m != nil {
				if m[1] == "/dev/null" {
					current.IsDelete = true
				} else {
					current.NewPath = m[1]
				}
			}
			continue
		}
		if m := reHunkHead.FindStringSubmatch(line); m != nil {
			flushHunk()
			oldStart := atoiOr(m[1], 0)
			newStart := atoiOr(m[3], 0)
			hunk = &Hunk{
				OldStart: oldStart,
				OldCount: atoiOr(m[2], 1),
				NewStart: newStart,
				NewCount: atoiOr(m[4], 1),
				Header:   strings.TrimSpace(m[5]),
			}
			oldLine = oldStart
			newLine = newStart
			continue
		}
		if hunk == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "+"):
			hunk.Lines = append(hunk.Lines, Line{NewLine: newLine, Type: LineAdded, Content: line[1:]})
			newLine++
		case strings.HasPrefix(line, "-"):
			hunk.Lines = append(hunk.Lines, Line{OldLine: oldLine, Type: LineRemoved, Content: line[1:]})
			oldLine++
		case strings.HasPrefix(line, " "):
			hunk.Lines = append(hunk.Lines, Line{OldLine: oldLine, NewLine: newLine, Type: LineContext, Content: line[1:]})
			oldLine++
			newLine++
		case strings.HasPrefix(line, "\\"):
			// "\ No newline at end of file" — not a content line.
		default:
			hunk.Lines = append(hunk.Lines, Line{OldLine: oldLine, NewLine: newLine, Type: LineContext, Content: line})
			oldLine++
			newLine++
		}
	}
	flushFile()

	if err := scanner.Err(); err != nil {
		return nil, daemonerr.Wrap(err)
	}
	return files, nil
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// Classification buckets a risk score per spec.
type Classification string

const (
	ClassTrivial  Classification = "trivial"
	ClassRoutine  Classification = "routine"
	ClassRisky    Classification = "risky"
	ClassCritical Classification = "critical"
)

// Hotspot names a file and why it's considered sensitive.
type Hotspot struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Preflight is C13's deterministic risk assessment.
type Preflight struct {
	RiskScore      int            `json:"risk_score"`
	Classification Classification `json:"classification"`
	Hotspots       []Hotspot      `json:"hotspots"`
	LinesTouched   int            `json:"lines_touched"`
}

// RunPreflight scores files against hotspot globs and high-risk patterns,
// and counts touched lines, entirely deterministically.
func RunPreflight(files []FileDiff, hotspotGlobs, riskPatterns []string) *Preflight {
	p := &Preflight{}

	for _, f := range files {
		path := f.NewPath
		if path == "" || path == "/dev/null" {
			path = f.OldPath
		}
		for _, g := range hotspotGlobs {
			if globMatch(g, path) {
				p.Hotspots = append(p.Hotspots, Hotspot{File: path, Reason: "matches hotspot glob " + g})
				break
			}
		}

		for _, h := range f.Hunks {
			for _, l := range h.Lines {
				if l.Type == LineContext {
					continue
				}
				p.LinesTouched++
				lower := strings.ToLower(l.Content)
				for _, pattern := range riskPatterns {
					if strings.Contains(lower, strings.ToLower(pattern)) {
						p.Hotspots = append(p.Hotspots, Hotspot{File: path, Reason: "matches risk pattern " + pattern})
						break
					}
				}
			}
		}
	}

	p.RiskScore = scoreRisk(p.LinesTouched, len(p.Hotspots))
	p.Classification = classify(p.RiskScore)
	return p
}

func scoreRisk(linesTouched, hotspotHits int) int {
	score := 1
	switch {
	case linesTouched > 200:
		score = 4
	case linesTouched > 50:
		score = 3
	case linesTouched > 10:
		score = 2
	}
	if hotspotHits > 0 {
		score++
	}
	if score > 5 {
		score = 5
	}
	if score < 1 {
		score = 1
	}
	return score
}

func classify(score int) Classification {
	switch {
	case score <= 1:
		return ClassTrivial
	case score == 2:
		return ClassRoutine
	case score <= 4:
		return ClassRisky
	default:
		return ClassCritical
	}
}

// GlobMatch matches a "**"-aware glob against a forward-slash path. Exported
// for reuse by the invariants engine's path-scoping (C14).
func GlobMatch(pattern, path string) bool {
	return globMatch(pattern, path)
}

// globMatch is the unexported implementation used internally by RunPreflight.
// Standard library filepath.Match has no "**" (match-across-separators)
// support, so a "**"-bearing pattern is translated into an equivalent regex;
// patterns without "**" go straight through filepath.Match.
func globMatch(pattern, path string) bool {
	pattern = filepath.ToSlash(pattern)
	path = filepath.ToSlash(path)
	if !strings.Contains(pattern, "**") {
		ok, err := filepath.Match(pattern, path)
		return err == nil && ok
	}
	re := globToRegexp(pattern)
	return re.MatchString(path)
}

// globToRegexp translates a "**"-aware shell glob into an anchored regexp.
// "**" matches zero or more path segments, "*" matches within one segment,
// "?" matches one non-separator rune.
func globToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
				for i+1 < len(runes) && runes[i+1] == '/' {
					i++
				}
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
