// Package memory implements the Memory Store (C20): append-only,
// human-readable markdown notes grouped by category, one file per category
// under ./.memories. The on-disk format and the append-then-reread access
// pattern follow internal/history's append-only log (C10), adapted from
// JSONL to markdown records separated by "---".
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// Category is one of the three memory buckets spec §3 defines.
type Category string

const (
	CategoryPreferences Category = "preferences"
	CategoryDecisions   Category = "decisions"
	CategoryFacts       Category = "facts"
)

const maxContentChars = 5000

const timestampPrefix = "<!-- memory-timestamp: "

func validCategory(c Category) bool {
	switch c {
	case CategoryPreferences, CategoryDecisions, CategoryFacts:
		return true
	default:
		return false
	}
}

// Record is one memory entry.
type Record struct {
	Category  Category  `json:"category"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store manages the markdown memory files rooted at dir (e.g.
// ./.memories).
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore constructs a Store rooted at dir, creating it if absent.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(category Category) string {
	return filepath.Join(s.dir, string(category)+".md")
}

// Add appends a new record to category's markdown file and returns it.
func (s *Store) Add(category Category, title, content string) (Record, *daemonerr.Error) {
	if !validCategory(category) {
		return Record{}, daemonerr.Newf(daemonerr.InvalidInput, "unknown memory category: %s", category)
	}
	if content == "" {
		return Record{}, daemonerr.New(daemonerr.InvalidInput, "memory content must not be empty")
	}
	if len(content) > maxContentChars {
		return Record{}, daemonerr.Newf(daemonerr.InvalidInput, "memory content exceeds %d characters", maxContentChars)
	}

	rec := Record{Category: category, Title: title, Content: content, Timestamp: time.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(category), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Record{}, daemonerr.Wrap(err)
	}
	defer f.Close()

	if _, err := f.WriteString(renderRecord(rec)); err != nil {
		return Record{}, daemonerr.Wrap(err)
	}

	logging.Memory("added %s memory (%d chars)", category, len(content))
	return rec, nil
}

func renderRecord(rec Record) string {
	var b strings.Builder
	if rec.Title != "" {
		b.WriteString("## " + rec.Title + "\n\n")
	}
	b.WriteString(rec.Content)
	b.WriteString("\n\n")
	b.WriteString(timestampPrefix + rec.Timestamp.UTC().Format(time.RFC3339) + " -->\n")
	b.WriteString("\n---\n\n")
	return b.String()
}

// List returns every record in category, youngest first. An empty category
// lists across all three categories, interleaved youngest-first by
// timestamp.
func (s *Store) List(category Category) ([]Record, *daemonerr.Error) {
	if category != "" && !validCategory(category) {
		return nil, daemonerr.Newf(daemonerr.InvalidInput, "unknown memory category: %s", category)
	}

	cats := []Category{category}
	if category == "" {
		cats = []Category{CategoryPreferences, CategoryDecisions, CategoryFacts}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var all []Record
	for _, c := range cats {
		recs, err := s.readCategoryLocked(c)
		if err != nil {
			return nil, err
		}
		all = append(all, recs...)
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	sortByTimestampDesc(all)
	return all, nil
}

// sortByTimestampDesc performs a stable insertion sort; memory files are
// small (human-authored, one entry at a time) so this never needs to scale.
func sortByTimestampDesc(recs []Record) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j].Timestamp.After(recs[j-1].Timestamp); j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
}

func (s *Store) readCategoryLocked(category Category) ([]Record, *daemonerr.Error) {
	data, err := os.ReadFile(s.path(category))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, daemonerr.Wrap(err)
	}

	chunks := strings.Split(string(data), "\n---\n")
	recs := make([]Record, 0, len(chunks))
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		recs = append(recs, parseRecord(category, chunk))
	}
	return recs, nil
}

func parseRecord(category Category, chunk string) Record {
	rec := Record{Category: category}
	lines := strings.Split(chunk, "\n")

	if len(lines) > 0 && strings.HasPrefix(lines[0], "## ") {
		rec.Title = strings.TrimPrefix(lines[0], "## ")
		lines = lines[1:]
	}

	var contentLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, timestampPrefix) {
			ts := strings.TrimSuffix(strings.TrimPrefix(trimmed, timestampPrefix), " -->")
			if t, perr := time.Parse(time.RFC3339, ts); perr == nil {
				rec.Timestamp = t
			}
			continue
		}
		contentLines = append(contentLines, line)
	}
	rec.Content = strings.TrimSpace(strings.Join(contentLines, "\n"))
	return rec
}

// Render renders a record list as a single markdown document, for tools
// that want one string back (e.g. list_memories's text response).
func Render(recs []Record) string {
	var b strings.Builder
	for _, r := range recs {
		b.WriteString(fmt.Sprintf("## [%s] %s\n\n%s\n\n_%s_\n\n", r.Category, r.Title, r.Content, r.Timestamp.UTC().Format(time.RFC3339)))
	}
	return b.String()
}
