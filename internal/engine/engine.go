// Package engine defines the external ContextEngine collaborator interface
// and a default, in-repo implementation backed by pure-Go sqlite so the
// daemon is runnable standalone without a network-hosted retrieval backend.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rishitank/context-engine-sub000/internal/embedding"
	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// SearchHit is one engine-native search result, before Retrieval Service
// formatting.
type SearchHit struct {
	Path      string
	Content   string
	LineStart int
	LineEnd   int
	Score     float64
}

// ContextEngine is the narrow interface the core calls the retrieval/embedding
// back end through, per spec.md §1/§6.
type ContextEngine interface {
	Search(ctx context.Context, query string, maxOutputLength int) ([]SearchHit, error)
	SearchAndAsk(ctx context.Context, query, prompt string) (string, error)
	AddToIndex(ctx context.Context, paths []string, contents []string) error
	GetFile(ctx context.Context, path string) (string, error)
	URL() string
}

// LocalEngine is the bundled default ContextEngine: sqlite-backed document
// storage plus an EmbeddingEngine-driven vector column stored as JSON, ranked
// by brute-force cosine similarity; no vector extension is loaded.
type LocalEngine struct {
	db       *sql.DB
	embedder embedding.EmbeddingEngine
	dbPath   string
}

// Open opens (creating if needed) the local engine's sqlite database.
func Open(dbPath string, embedder embedding.EmbeddingEngine) (*LocalEngine, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			path TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding TEXT,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, err
	}

	logging.Engine("opened local context engine at %s", dbPath)
	return &LocalEngine{db: db, embedder: embedder, dbPath: dbPath}, nil
}

// URL reports the engine's endpoint for the offline-policy check: the local
// engine has no network endpoint, so it is always loopback-equivalent.
func (e *LocalEngine) URL() string { return "" }

// Close closes the underlying database.
func (e *LocalEngine) Close() error { return e.db.Close() }

// AddToIndex upserts documents and (if an embedder is configured) their
// vector embeddings.
func (e *LocalEngine) AddToIndex(ctx context.Context, paths []string, contents []string) error {
	if len(paths) != len(contents) {
		return fmt.Errorf("paths/contents length mismatch")
	}
	timer := logging.StartTimer(logging.CategoryEngine, "AddToIndex")
	defer timer.Stop()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, path := range paths {
		var embJSON string
		if e.embedder != nil {
			vec, embErr := e.embedder.Embed(ctx, contents[i])
			if embErr != nil {
				logging.EngineWarn("embedding failed for %s: %v", path, embErr)
			} else {
				raw, _ := json.Marshal(vec)
				embJSON = string(raw)
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (path, content, embedding, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET content=excluded.content, embedding=excluded.embedding, updated_at=excluded.updated_at
		`, path, contents[i], embJSON, time.Now().Unix())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetFile returns the indexed content of path, if present.
func (e *LocalEngine) GetFile(ctx context.Context, path string) (string, error) {
	var content string
	err := e.db.QueryRowContext(ctx, `SELECT content FROM documents WHERE path = ?`, path).Scan(&content)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("not indexed: %s", path)
	}
	return content, err
}

// Search ranks indexed documents against query, preferring cosine similarity
// over stored embeddings when an embedder is configured, falling back to a
// naive substring/keyword score otherwise.
func (e *LocalEngine) Search(ctx context.Context, query string, maxOutputLength int) ([]SearchHit, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "Search")
	defer timer.Stop()

	rows, err := e.db.QueryContext(ctx, `SELECT path, content, embedding FROM documents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type candidate struct {
		path, content string
		embJSON       string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.path, &c.content, &c.embJSON); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	var queryVec []float32
	if e.embedder != nil {
		if v, err := e.embedder.Embed(ctx, query); err == nil {
			queryVec = v
		} else {
			logging.EngineWarn("query embedding failed, falling back to keyword scoring: %v", err)
		}
	}

	hits := make([]SearchHit, 0, len(candidates))
	for _, c := range candidates {
		var score float64
		if queryVec != nil && c.embJSON != "" {
			var docVec []float32
			if json.Unmarshal([]byte(c.embJSON), &docVec) == nil {
				score, _ = embedding.CosineSimilarity(queryVec, docVec)
			}
		} else {
			score = keywordScore(query, c.content)
		}
		if score <= 0 {
			continue
		}
		content := c.content
		if len(content) > maxOutputLength && maxOutputLength > 0 {
			content = content[:maxOutputLength]
		}
		hits = append(hits, SearchHit{Path: c.path, Content: content, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	logging.EngineDebug("search for %q returned %d hits", query, len(hits))
	return hits, nil
}

func keywordScore(query, content string) float64 {
	if query == "" {
		return 0
	}
	count := 0
	qLower := toLower(query)
	cLower := toLower(content)
	idx := 0
	for {
		pos := indexOf(cLower[idx:], qLower)
		if pos < 0 {
			break
		}
		count++
		idx += pos + len(qLower)
		if idx >= len(cLower) {
			break
		}
	}
	if count == 0 {
		return 0
	}
	return 1 - 1/float64(count+1)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func indexOf(s, substr string) int {
	if len(substr) == 0 {
		return 0
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// SearchAndAsk is a thin pass-through that is not meaningfully implementable
// without a real LLM collaborator; the bundled engine returns the top search
// snippet as a degenerate answer so callers exercising the contract in tests
// get a deterministic, offline result.
func (e *LocalEngine) SearchAndAsk(ctx context.Context, query, prompt string) (string, error) {
	hits, err := e.Search(ctx, query, 2000)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}
	return hits[0].Content, nil
}
