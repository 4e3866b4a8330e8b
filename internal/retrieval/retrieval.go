// Package retrieval implements the Retrieval Service (C7): a thin, caching
// wrapper over the external ContextEngine's search/ask/getFile operations,
// with a permissive parser for engines that return formatted text blocks
// rather than structured results.
package retrieval

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/cache"
	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/engine"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
)

// MatchType classifies how a SearchResult was produced.
type MatchType string

const (
	MatchSemantic MatchType = "semantic"
	MatchKeyword  MatchType = "keyword"
	MatchHybrid   MatchType = "hybrid"
)

// SearchResult is the spec §3 "Search result" record.
type SearchResult struct {
	Path       string    `json:"path"`
	Content    string    `json:"content"`
	LineStart  int       `json:"line_start,omitempty"`
	LineEnd    int       `json:"line_end,omitempty"`
	Relevance  float64   `json:"relevance"`
	MatchType  MatchType `json:"match_type"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Service wraps a ContextEngine with caching, per spec §4.6's search-cache
// bounds (TTL 60s, LRU cap 100, keyed on query+top_k+index fingerprint).
type Service struct {
	eng         engine.ContextEngine
	policy      *pathpolicy.Policy
	searchCache *cache.Cache
	fingerprint *cache.Fingerprint
}

// New constructs a retrieval Service.
func New(eng engine.ContextEngine, policy *pathpolicy.Policy, searchCache *cache.Cache, fp *cache.Fingerprint) *Service {
	return &Service{eng: eng, policy: policy, searchCache: searchCache, fingerprint: fp}
}

// SemanticSearch consults the cache, else calls the engine and formats
// results with a monotone fallback relevance when the engine supplies none.
func (s *Service) SemanticSearch(ctx context.Context, query string, topK int) ([]SearchResult, *daemonerr.Error) {
	if topK <= 0 {
		topK = 5
	}
	timer := logging.StartTimer(logging.CategoryRetrieval, "SemanticSearch")
	defer timer.Stop()

	key := cache.Key("search", query, strconv.Itoa(topK), strconv.Itoa(s.fingerprint.Value()))
	if raw, ok := s.searchCache.Get(key); ok {
		var cached []SearchResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			logging.RetrievalDebug("cache hit for query %q", query)
			return cached, nil
		}
	}

	hits, err := s.eng.Search(ctx, query, topK*2000)
	if err != nil {
		return nil, daemonerr.Newf(daemonerr.EngineUnavailable, "engine search failed: %v", err)
	}

	results := formatResults(hits, topK)

	if err := s.searchCache.Set(key, results); err != nil {
		logging.RetrievalWarn("failed to populate search cache: %v", err)
	}
	logging.Retrieval("semantic_search %q returned %d results", query, len(results))
	return results, nil
}

// CodebaseRetrieval returns the same core results as SemanticSearch, intended
// for machine-readable JSON consumption with workspace/index metadata
// attached by the caller (the Tool Dispatcher).
func (s *Service) CodebaseRetrieval(ctx context.Context, query string, topK int) ([]SearchResult, *daemonerr.Error) {
	return s.SemanticSearch(ctx, query, topK)
}

// SearchAndAsk is a thin pass-through to the external LLM collaborator via
// the engine's searchAndAsk contract.
func (s *Service) SearchAndAsk(ctx context.Context, query, prompt string) (string, *daemonerr.Error) {
	text, err := s.eng.SearchAndAsk(ctx, query, prompt)
	if err != nil {
		return "", daemonerr.Newf(daemonerr.EngineUnavailable, "search_and_ask failed: %v", err)
	}
	return text, nil
}

// GetFile resolves path under the workspace, reads it, and optionally slices
// a 1-based inclusive line range.
func (s *Service) GetFile(ctx context.Context, relPath string, startLine, endLine int) (string, *daemonerr.Error) {
	full, polErr := s.policy.ResolveForRead(relPath)
	if polErr != nil {
		return "", polErr
	}

	content, err := s.eng.GetFile(ctx, relPath)
	if err != nil {
		content = ""
	}
	if content == "" {
		data, readErr := os.ReadFile(full)
		if readErr != nil {
			return "", daemonerr.Wrap(readErr)
		}
		content = string(data)
	}

	if startLine <= 0 && endLine <= 0 {
		return content, nil
	}
	return sliceLines(content, startLine, endLine)
}

func sliceLines(content string, startLine, endLine int) (string, *daemonerr.Error) {
	lines := strings.Split(content, "\n")
	if startLine <= 0 {
		startLine = 1
	}
	if endLine <= 0 || endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > len(lines) || startLine > endLine {
		return "", daemonerr.New(daemonerr.InvalidInput, "line range out of bounds")
	}
	return strings.Join(lines[startLine-1:endLine], "\n"), nil
}

// formatResults converts engine hits into SearchResults, assigning a
// monotone decreasing fallback relevance (1 - i/top_k) when the engine score
// is absent (<=0).
func formatResults(hits []engine.SearchHit, topK int) []SearchResult {
	out := make([]SearchResult, 0, len(hits))
	for i, h := range hits {
		relevance := h.Score
		matchType := MatchSemantic
		if relevance <= 0 {
			relevance = 1 - float64(i)/float64(topK)
			if relevance < 0 {
				relevance = 0
			}
			matchType = MatchKeyword
		}
		out = append(out, SearchResult{
			Path:        h.Path,
			Content:     h.Content,
			LineStart:   h.LineStart,
			LineEnd:     h.LineEnd,
			Relevance:   relevance,
			MatchType:   matchType,
			RetrievedAt: time.Now(),
		})
	}
	return out
}

var (
	rePathPrefix = regexp.MustCompile(`^Path:\s*(.+)$`)
	reMarkdownPath = regexp.MustCompile(`^##\s+(.+)$`)
	reLineNumberPrefix = regexp.MustCompile(`^\s*\d+[:|]\s?`)
)

// ParseEngineOutput is the permissive dual-shape parser for *external*
// engines that return a formatted text block rather than structured hits:
// it handles both a "Path: <path>" prefix shape and a markdown
// "## <path>" + fenced code-block shape, stripping decorative line-number
// prefixes. The line numbers those prefixes carried are not recorded:
// LineStart and LineEnd of the returned results are left zero.
func ParseEngineOutput(raw string) []SearchResult {
	var out []SearchResult
	scanner := bufio.NewScanner(strings.NewReader(raw))

	var currentPath string
	var buf strings.Builder
	inFence := false
	lineNo := 0

	flush := func() {
		if currentPath != "" && buf.Len() > 0 {
			out = append(out, SearchResult{
				Path:        currentPath,
				Content:     strings.TrimRight(buf.String(), "\n"),
				MatchType:   MatchSemantic,
				RetrievedAt: time.Now(),
			})
		}
		buf.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()

		if m := rePathPrefix.FindStringSubmatch(line); m != nil {
			flush()
			currentPath = strings.TrimSpace(m[1])
			continue
		}
		if m := reMarkdownPath.FindStringSubmatch(line); m != nil {
			flush()
			currentPath = strings.TrimSpace(m[1])
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}

		stripped := reLineNumberPrefix.ReplaceAllString(line, "")
		if stripped != line {
			lineNo++
		}
		buf.WriteString(stripped)
		buf.WriteString("\n")
	}
	flush()
	return out
}
