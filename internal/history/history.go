// Package history implements the Plan History (C10): an append-only,
// per-plan versioned log with structural diff and rollback, backed by an
// LRU in-memory cache over on-disk JSONL files.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/plan"
)

// ChangeType classifies one history entry.
type ChangeType string

const (
	ChangeCreated     ChangeType = "created"
	ChangeModified    ChangeType = "modified"
	ChangeRefined     ChangeType = "refined"
	ChangeRolledBack  ChangeType = "rolled_back"
)

const (
	maxHistories       = 50
	maxVersionsInMemory = 20
)

// Entry is one version of a plan's history.
type Entry struct {
	Version      int             `json:"version"`
	Timestamp    time.Time       `json:"timestamp"`
	ChangeType   ChangeType      `json:"change_type"`
	Description  string          `json:"description"`
	PlanSnapshot *plan.Plan      `json:"plan_snapshot,omitempty"`
}

// FieldDiff is one changed field between two step versions.
type FieldDiff struct {
	Name string      `json:"name"`
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// StepDiff describes a modified step.
type StepDiff struct {
	StepNumber int         `json:"step_number"`
	Fields     []FieldDiff `json:"fields"`
}

// Diff is the structural comparison between two plan versions.
type Diff struct {
	StepsAdded    []int      `json:"steps_added"`
	StepsRemoved  []int      `json:"steps_removed"`
	StepsModified []StepDiff `json:"steps_modified"`
	ScopeChanged  bool       `json:"scope_changed"`
	FileChanges   []string   `json:"file_changes"`
}

type history struct {
	mu         sync.Mutex
	versions   []Entry // most recent maxVersionsInMemory kept
	lastAccess time.Time
}

// Store manages per-plan append-only history logs rooted at dir.
type Store struct {
	mu   sync.Mutex
	dir  string
	histories map[string]*history
}

// NewStore constructs a Store rooted at dir (e.g. ./.augment-plans/history).
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, histories: make(map[string]*history)}, nil
}

func (s *Store) logPath(planID string) string {
	return filepath.Join(s.dir, planID+".jsonl")
}

// Append adds a new version entry for planID, evicting the least-recently
// accessed open history if the store is at its 50-history cap.
func (s *Store) Append(planID string, changeType ChangeType, description string, snapshot *plan.Plan) (Entry, error) {
	h := s.open(planID)
	h.mu.Lock()
	defer h.mu.Unlock()

	version := 1
	if len(h.versions) > 0 {
		version = h.versions[len(h.versions)-1].Version + 1
	} else if onDisk, err := countLines(s.logPath(planID)); err == nil {
		version = onDisk + 1
	}

	entry := Entry{
		Version:      version,
		Timestamp:    time.Now(),
		ChangeType:   changeType,
		Description:  description,
		PlanSnapshot: snapshot,
	}

	if err := appendJSONLine(s.logPath(planID), entry); err != nil {
		return Entry{}, err
	}

	h.versions = append(h.versions, entry)
	if len(h.versions) > maxVersionsInMemory {
		h.versions = h.versions[len(h.versions)-maxVersionsInMemory:]
	}
	h.lastAccess = time.Now()

	logging.History("appended %s history entry for plan %s: version %d", changeType, planID, version)
	return entry, nil
}

// open returns (creating/loading if needed) the in-memory history handle
// for planID, evicting the LRU entry if at capacity.
func (s *Store) open(planID string) *history {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.histories[planID]; ok {
		h.lastAccess = time.Now()
		return h
	}
	if len(s.histories) >= maxHistories {
		s.evictLRULocked()
	}

	h := &history{lastAccess: time.Now()}
	if tail, err := readTailJSONL(s.logPath(planID), maxVersionsInMemory); err == nil {
		h.versions = tail
	}
	s.histories[planID] = h
	return h
}

func (s *Store) evictLRULocked() {
	var oldestID string
	var oldestTime time.Time
	first := true
	for id, h := range s.histories {
		if first || h.lastAccess.Before(oldestTime) {
			oldestID = id
			oldestTime = h.lastAccess
			first = false
		}
	}
	if oldestID != "" {
		delete(s.histories, oldestID)
	}
}

// Versions returns the in-memory (most recent maxVersionsInMemory) entries.
func (s *Store) Versions(planID string) []Entry {
	h := s.open(planID)
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, len(h.versions))
	copy(out, h.versions)
	return out
}

// version fetches a specific version, reading from disk if it has aged out
// of the in-memory window.
func (s *Store) version(planID string, v int) (Entry, error) {
	h := s.open(planID)
	h.mu.Lock()
	for _, e := range h.versions {
		if e.Version == v {
			h.mu.Unlock()
			return e, nil
		}
	}
	h.mu.Unlock()

	entries, err := readAllJSONL(s.logPath(planID))
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Version == v {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("version %d not found", v)
}

// CompareVersions computes a structural diff across steps, scope,
// architecture, and file sets between two persisted versions.
func (s *Store) CompareVersions(planID string, from, to int) (*Diff, *daemonerr.Error) {
	fromEntry, err := s.version(planID, from)
	if err != nil {
		return nil, daemonerr.Wrap(err)
	}
	toEntry, err := s.version(planID, to)
	if err != nil {
		return nil, daemonerr.Wrap(err)
	}
	if fromEntry.PlanSnapshot == nil || toEntry.PlanSnapshot == nil {
		return nil, daemonerr.New(daemonerr.InvalidInput, "one or both versions have no snapshot")
	}
	return diffPlans(fromEntry.PlanSnapshot, toEntry.PlanSnapshot), nil
}

func diffPlans(from, to *plan.Plan) *Diff {
	fromSteps := make(map[int]plan.Step)
	for _, s := range from.Steps {
		fromSteps[s.StepNumber] = s
	}
	toSteps := make(map[int]plan.Step)
	for _, s := range to.Steps {
		toSteps[s.StepNumber] = s
	}

	d := &Diff{}
	for n := range toSteps {
		if _, ok := fromSteps[n]; !ok {
			d.StepsAdded = append(d.StepsAdded, n)
		}
	}
	for n := range fromSteps {
		if _, ok := toSteps[n]; !ok {
			d.StepsRemoved = append(d.StepsRemoved, n)
		}
	}
	for n, fs := range fromSteps {
		ts, ok := toSteps[n]
		if !ok {
			continue
		}
		if fields := diffStepFields(fs, ts); len(fields) > 0 {
			d.StepsModified = append(d.StepsModified, StepDiff{StepNumber: n, Fields: fields})
		}
	}

	d.ScopeChanged = !reflect.DeepEqual(from.Scope, to.Scope) || !reflect.DeepEqual(from.Architecture, to.Architecture)
	d.FileChanges = diffFileSets(from, to)
	return d
}

func diffStepFields(a, b plan.Step) []FieldDiff {
	var diffs []FieldDiff
	check := func(name string, av, bv interface{}) {
		if !reflect.DeepEqual(av, bv) {
			diffs = append(diffs, FieldDiff{Name: name, From: av, To: bv})
		}
	}
	check("title", a.Title, b.Title)
	check("description", a.Description, b.Description)
	check("priority", a.Priority, b.Priority)
	check("depends_on", a.DependsOn, b.DependsOn)
	check("files_to_modify", a.FilesToModify, b.FilesToModify)
	check("files_to_create", a.FilesToCreate, b.FilesToCreate)
	check("files_to_delete", a.FilesToDelete, b.FilesToDelete)
	return diffs
}

func diffFileSets(from, to *plan.Plan) []string {
	fromFiles := collectFiles(from)
	toFiles := collectFiles(to)
	var changes []string
	for f := range toFiles {
		if !fromFiles[f] {
			changes = append(changes, "+"+f)
		}
	}
	for f := range fromFiles {
		if !toFiles[f] {
			changes = append(changes, "-"+f)
		}
	}
	return changes
}

func collectFiles(p *plan.Plan) map[string]bool {
	set := make(map[string]bool)
	for _, s := range p.Steps {
		for _, f := range append(append(append([]string{}, s.FilesToModify...), s.FilesToCreate...), s.FilesToDelete...) {
			set[f] = true
		}
	}
	return set
}

// RollbackPlan appends a rolled_back entry whose snapshot equals the target
// version's snapshot, returning the restored plan.
func (s *Store) RollbackPlan(planID string, version int, reason string) (*plan.Plan, *daemonerr.Error) {
	entry, err := s.version(planID, version)
	if err != nil {
		return nil, daemonerr.Wrap(err)
	}
	if entry.PlanSnapshot == nil {
		return nil, daemonerr.New(daemonerr.InvalidInput, fmt.Sprintf("version %d has no snapshot", version))
	}
	desc := fmt.Sprintf("rolled back to version %d", version)
	if reason != "" {
		desc += ": " + reason
	}
	if _, err := s.Append(planID, ChangeRolledBack, desc, entry.PlanSnapshot); err != nil {
		return nil, daemonerr.Wrap(err)
	}
	logging.History("rolled back plan %s to version %d", planID, version)
	return entry.PlanSnapshot, nil
}

func appendJSONLine(path string, v interface{}) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n := 0
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

func readAllJSONL(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []Entry
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, scanner.Err()
}

func readTailJSONL(path string, n int) ([]Entry, error) {
	all, err := readAllJSONL(path)
	if err != nil {
		return nil, err
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}
