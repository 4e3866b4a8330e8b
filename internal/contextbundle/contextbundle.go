// Package contextbundle implements the Context Bundler (C8): assembling a
// token-budgeted, relevance-sorted bundle of file snippets and hints from
// the Retrieval Service's search results.
package contextbundle

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/codetype"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/retrieval"
)

// charsPerToken is the conservative token estimate, the single source of
// truth for total_tokens and truncation decisions per spec §4.8.
const charsPerToken = 4

// EstimateTokens is the shared 4-chars-per-token heuristic.
func EstimateTokens(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		n = 1
	}
	return n
}

// Options configures bundle assembly; zero values fall back to defaults.
type Options struct {
	MaxFiles         int
	TokenBudget      int
	IncludeRelated   bool
	MinRelevance     float64
	IncludeSummaries bool
}

// DefaultOptions mirror spec §4.8's defaults.
func DefaultOptions() Options {
	return Options{
		MaxFiles:         5,
		TokenBudget:      8000,
		IncludeRelated:   true,
		MinRelevance:     0.3,
		IncludeSummaries: true,
	}
}

func (o Options) normalized() Options {
	if o.MaxFiles <= 0 {
		o.MaxFiles = 5
	}
	if o.MaxFiles > 20 {
		o.MaxFiles = 20
	}
	if o.TokenBudget <= 0 {
		o.TokenBudget = 8000
	}
	return o
}

// Snippet is one ranked excerpt of a file.
type Snippet struct {
	Text       string  `json:"text"`
	LineStart  int     `json:"line_start,omitempty"`
	LineEnd    int     `json:"line_end,omitempty"`
	Relevance  float64 `json:"relevance"`
	TokenCount int     `json:"token_count"`
	CodeType   string  `json:"code_type"`
}

// FileContext is one file's contribution to a bundle.
type FileContext struct {
	Path         string    `json:"path"`
	Relevance    float64   `json:"relevance"`
	Snippets     []Snippet `json:"snippets"`
	RelatedFiles []string  `json:"related_files,omitempty"`
}

// Metadata summarizes bundle-level accounting.
type Metadata struct {
	TotalFiles    int  `json:"total_files"`
	TotalSnippets int  `json:"total_snippets"`
	TotalTokens   int  `json:"total_tokens"`
	TokenBudget   int  `json:"token_budget"`
	Truncated     bool `json:"truncated"`
	SearchTimeMs  int64 `json:"search_time_ms"`
}

// Bundle is the spec §3 "Context bundle" record.
type Bundle struct {
	Summary  string       `json:"summary"`
	Query    string       `json:"query"`
	Files    []FileContext `json:"files"`
	Hints    []string     `json:"hints"`
	Metadata Metadata     `json:"metadata"`
}

// Bundler assembles Bundles from a Retrieval Service.
type Bundler struct {
	retrieval *retrieval.Service
	reader    func(relPath string) (string, error)
}

// New constructs a Bundler. reader resolves related-file content (e.g. the
// Retrieval Service's GetFile) for import discovery.
func New(svc *retrieval.Service, reader func(relPath string) (string, error)) *Bundler {
	return &Bundler{retrieval: svc, reader: reader}
}

// Assemble runs the deterministic 8-step pipeline from spec §4.8.
func (b *Bundler) Assemble(ctx context.Context, query string, opts Options) (*Bundle, error) {
	opts = opts.normalized()
	start := time.Now()
	timer := logging.StartTimer(logging.CategoryBundler, "Assemble")
	defer timer.Stop()

	topK := opts.MaxFiles * 3
	results, err := b.retrieval.SemanticSearch(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	filtered := make([]retrieval.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Relevance >= opts.MinRelevance {
			filtered = append(filtered, r)
		}
	}

	grouped := groupByPath(filtered)
	sort.Slice(grouped, func(i, j int) bool { return grouped[i].relevance > grouped[j].relevance })
	if len(grouped) > opts.MaxFiles {
		grouped = grouped[:opts.MaxFiles]
	}

	files, truncated := b.buildFileContexts(grouped, opts)

	bundle := &Bundle{
		Query: query,
		Files: files,
		Metadata: Metadata{
			TotalFiles:   len(files),
			TokenBudget:  opts.TokenBudget,
			Truncated:    truncated,
			SearchTimeMs: time.Since(start).Milliseconds(),
		},
	}
	for _, f := range files {
		bundle.Metadata.TotalSnippets += len(f.Snippets)
		for _, s := range f.Snippets {
			bundle.Metadata.TotalTokens += s.TokenCount
		}
	}
	bundle.Hints = generateHints(files, len(results))
	bundle.Summary = fmt.Sprintf("showing %d of %d matched files for %q", len(files), len(grouped), query)

	logging.Bundler("assembled bundle: %d files, %d tokens (budget %d), truncated=%v",
		bundle.Metadata.TotalFiles, bundle.Metadata.TotalTokens, bundle.Metadata.TokenBudget, truncated)
	return bundle, nil
}

type groupedFile struct {
	path      string
	relevance float64
	results   []retrieval.SearchResult
}

func groupByPath(results []retrieval.SearchResult) []groupedFile {
	byPath := make(map[string]*groupedFile)
	var order []string
	for _, r := range results {
		g, ok := byPath[r.Path]
		if !ok {
			g = &groupedFile{path: r.Path}
			byPath[r.Path] = g
			order = append(order, r.Path)
		}
		g.results = append(g.results, r)
		if r.Relevance > g.relevance {
			g.relevance = r.Relevance
		}
	}
	out := make([]groupedFile, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	return out
}

// buildFileContexts divides the remaining budget evenly across files, then
// across each file's snippets, applying smart extraction when content
// overflows its allotment.
func (b *Bundler) buildFileContexts(grouped []groupedFile, opts Options) ([]FileContext, bool) {
	if len(grouped) == 0 {
		return nil, false
	}

	remainingBudget := opts.TokenBudget
	var files []FileContext
	truncated := false

	for i, g := range grouped {
		filesLeft := len(grouped) - i
		perFileBudget := remainingBudget / filesLeft
		if perFileBudget < 100 {
			truncated = true
			break
		}

		snippetBudget := perFileBudget / len(g.results)
		spent := 0
		var snippets []Snippet
		for _, r := range g.results {
			text := extractSnippet(g.path, r.Content, snippetBudget)
			tokens := EstimateTokens(text)
			snippets = append(snippets, Snippet{
				Text:       text,
				LineStart:  r.LineStart,
				LineEnd:    r.LineEnd,
				Relevance:  r.Relevance,
				TokenCount: tokens,
				CodeType:   dominantCodeType(g.path, text),
			})
			spent += tokens
		}

		var related []string
		if opts.IncludeRelated && b.reader != nil {
			related = b.relatedFiles(g.path, g.results, grouped)
		}

		files = append(files, FileContext{
			Path:         g.path,
			Relevance:    g.relevance,
			Snippets:     snippets,
			RelatedFiles: related,
		})
		remainingBudget -= spent
	}

	return files, truncated
}

// extractSnippet keeps content verbatim if it fits the budget, else ranks
// lines by structural priority, keeps the top lines, restores original
// order, and marks omitted gaps.
func extractSnippet(path, content string, tokenBudget int) string {
	if EstimateTokens(content) <= tokenBudget {
		return content
	}

	lines := strings.Split(content, "\n")
	kinds := codetype.ClassifyLines(path, []byte(content))

	type ranked struct {
		idx      int
		priority int
	}
	rankedLines := make([]ranked, len(lines))
	for i := range lines {
		p := 99
		if i < len(kinds) {
			p = kinds[i].Priority()
		}
		rankedLines[i] = ranked{idx: i, priority: p}
	}
	sort.SliceStable(rankedLines, func(i, j int) bool { return rankedLines[i].priority < rankedLines[j].priority })

	budget := tokenBudget * charsPerToken
	keep := make(map[int]bool)
	used := 0
	for _, r := range rankedLines {
		cost := len(lines[r.idx]) + 1
		if used+cost > budget {
			continue
		}
		keep[r.idx] = true
		used += cost
	}

	var out strings.Builder
	gapOpen := false
	for i, l := range lines {
		if keep[i] {
			if gapOpen {
				out.WriteString("// … (lines omitted) …\n")
				gapOpen = false
			}
			out.WriteString(l)
			out.WriteString("\n")
		} else {
			gapOpen = true
		}
	}
	if gapOpen {
		out.WriteString("// … (lines omitted) …\n")
	}
	return strings.TrimRight(out.String(), "\n")
}

func dominantCodeType(path, text string) string {
	kinds := codetype.ClassifyLines(path, []byte(text))
	best := codetype.KindOther
	for _, k := range kinds {
		if k.Priority() < best.Priority() {
			best = k
		}
	}
	switch best {
	case codetype.KindFunction:
		return "function"
	case codetype.KindClass:
		return "class"
	case codetype.KindInterface:
		return "interface"
	case codetype.KindType:
		return "type"
	case codetype.KindExport:
		return "export"
	case codetype.KindImport:
		return "import"
	case codetype.KindDocComment:
		return "doc_comment"
	default:
		return "other"
	}
}

var reRelativeImport = regexp.MustCompile(`(?m)(?:import\s+.*["'](\.[./][^"']+)["']|from\s+["'](\.[./][^"']+)["']|require\(["'](\.[./][^"']+)["']\))`)

// relatedFiles parses relative imports out of the file's own source and
// includes the first 3 siblings that are readable via the bundler's reader
// and are not already in the bundle.
func (b *Bundler) relatedFiles(path string, results []retrieval.SearchResult, grouped []groupedFile) []string {
	already := map[string]bool{path: true}
	for _, g := range grouped {
		already[g.path] = true
	}

	var source string
	for _, r := range results {
		source += r.Content + "\n"
	}
	if full, err := b.reader(path); err == nil {
		source += full
	}

	matches := reRelativeImport.FindAllStringSubmatch(source, -1)
	dir := filepath.Dir(path)
	var out []string
	for _, m := range matches {
		rel := firstNonEmpty(m[1], m[2], m[3])
		if rel == "" {
			continue
		}
		candidate := filepath.ToSlash(filepath.Clean(filepath.Join(dir, rel)))
		if already[candidate] {
			continue
		}
		if _, err := b.reader(candidate); err != nil {
			continue
		}
		already[candidate] = true
		out = append(out, candidate)
		if len(out) >= 3 {
			break
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// generateHints produces the file-type histogram, code-type histogram,
// related-files roll-up, coverage, and high-relevance highlights.
func generateHints(files []FileContext, totalMatched int) []string {
	var hints []string

	fileTypes := make(map[string]int)
	codeTypes := make(map[string]int)
	relatedCount := 0
	var highRelevance []string

	for _, f := range files {
		ext := filepath.Ext(f.Path)
		if ext == "" {
			ext = "(none)"
		}
		fileTypes[ext]++
		relatedCount += len(f.RelatedFiles)
		if f.Relevance >= 0.8 {
			highRelevance = append(highRelevance, f.Path)
		}
		for _, s := range f.Snippets {
			codeTypes[s.CodeType]++
		}
	}

	hints = append(hints, fmt.Sprintf("showing %d of %d matched files", len(files), totalMatched))
	hints = append(hints, fmt.Sprintf("file types: %s", histogramString(fileTypes)))
	hints = append(hints, fmt.Sprintf("code types: %s", histogramString(codeTypes)))
	if relatedCount > 0 {
		hints = append(hints, fmt.Sprintf("%d related file(s) discovered via import analysis", relatedCount))
	}
	if len(highRelevance) > 0 {
		hints = append(hints, fmt.Sprintf("high-relevance: %s", strings.Join(highRelevance, ", ")))
	}
	return hints
}

func histogramString(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}
