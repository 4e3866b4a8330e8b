// Package plan defines the Plan DAG data model and the Plan Store (C9):
// durable per-plan persistence rooted at ./.augment-plans/ with an index.
package plan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// Priority is a step's importance band.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Step is one DAG node, per spec §3.
type Step struct {
	StepNumber         int      `json:"step_number"`
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	FilesToModify      []string `json:"files_to_modify,omitempty"`
	FilesToCreate      []string `json:"files_to_create,omitempty"`
	FilesToDelete      []string `json:"files_to_delete,omitempty"`
	DependsOn          []int    `json:"depends_on,omitempty"`
	Blocks             []int    `json:"blocks,omitempty"`
	CanParallelWith    []int    `json:"can_parallel_with,omitempty"`
	Priority           Priority `json:"priority"`
	EstimatedEffort    string   `json:"estimated_effort,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
}

// Scope carries the plan's boundary decisions.
type Scope struct {
	Included    []string `json:"included,omitempty"`
	Excluded    []string `json:"excluded,omitempty"`
	Assumptions []string `json:"assumptions,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}

// Architecture carries design notes.
type Architecture struct {
	Notes    string   `json:"notes,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
	Diagrams []string `json:"diagrams,omitempty"`
}

// Plan is the spec §3 Plan DAG record.
type Plan struct {
	ID                       string       `json:"id"`
	Version                  int          `json:"version"`
	CreatedAt                time.Time    `json:"created_at"`
	UpdatedAt                time.Time    `json:"updated_at"`
	Goal                     string       `json:"goal"`
	Scope                    Scope        `json:"scope"`
	MVPFeatures              []string     `json:"mvp_features,omitempty"`
	NiceToHaveFeatures       []string     `json:"nice_to_have_features,omitempty"`
	Architecture             Architecture `json:"architecture"`
	Risks                    []string     `json:"risks,omitempty"`
	Milestones               []string     `json:"milestones,omitempty"`
	Steps                    []Step       `json:"steps"`
	DependencyGraph          *DependencyGraph `json:"dependency_graph,omitempty"`
	TestingStrategy          string       `json:"testing_strategy,omitempty"`
	AcceptanceCriteria       []string     `json:"acceptance_criteria,omitempty"`
	ConfidenceScore          float64      `json:"confidence_score,omitempty"`
	QuestionsForClarification []string    `json:"questions_for_clarification,omitempty"`
	ContextFiles             []string     `json:"context_files,omitempty"`
	CodebaseInsights         string       `json:"codebase_insights,omitempty"`

	Name   string   `json:"name,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Status string   `json:"status,omitempty"`
}

// DependencyGraph is derived, never hand-authored.
type DependencyGraph struct {
	ExecutionOrder []int   `json:"execution_order"`
	CriticalPath   []int   `json:"critical_path"`
	ParallelGroups [][]int `json:"parallel_groups"`
}

// Validate checks the DAG invariants: unique step numbers, acyclic
// depends_on, and that every step referenced by depends_on or blocks exists.
// It does not check that blocks is the transpose of depends_on.
func (p *Plan) Validate() *daemonerr.Error {
	seen := make(map[int]bool)
	for _, s := range p.Steps {
		if seen[s.StepNumber] {
			return daemonerr.Newf(daemonerr.InvalidInput, "duplicate step_number %d", s.StepNumber)
		}
		seen[s.StepNumber] = true
	}
	for _, s := range p.Steps {
		for _, dep := range append(append([]int{}, s.DependsOn...), s.Blocks...) {
			if !seen[dep] {
				return daemonerr.Newf(daemonerr.InvalidInput, "step %d references unknown step %d", s.StepNumber, dep)
			}
		}
	}
	if hasCycle(p.Steps) {
		return daemonerr.New(daemonerr.InvalidInput, "depends_on relation contains a cycle")
	}
	return nil
}

func hasCycle(steps []Step) bool {
	deps := make(map[int][]int)
	for _, s := range steps {
		deps[s.StepNumber] = s.DependsOn
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int)
	var visit func(n int) bool
	visit = func(n int) bool {
		color[n] = gray
		for _, d := range deps[n] {
			if color[d] == gray {
				return true
			}
			if color[d] == white && visit(d) {
				return true
			}
		}
		color[n] = black
		return false
	}
	for _, s := range steps {
		if color[s.StepNumber] == white {
			if visit(s.StepNumber) {
				return true
			}
		}
	}
	return false
}

// DeriveDependencyGraph computes execution_order (topological), critical_path
// (longest depends_on chain), and parallel_groups (maximal antichains among
// ready nodes), overwriting p.DependencyGraph.
func (p *Plan) DeriveDependencyGraph() {
	order := topologicalOrder(p.Steps)
	p.DependencyGraph = &DependencyGraph{
		ExecutionOrder: order,
		CriticalPath:   longestChain(p.Steps),
		ParallelGroups: parallelGroups(p.Steps, order),
	}
}

func topologicalOrder(steps []Step) []int {
	deps := make(map[int][]int)
	for _, s := range steps {
		deps[s.StepNumber] = append([]int{}, s.DependsOn...)
	}
	var order []int
	done := make(map[int]bool)
	remaining := len(steps)
	nums := make([]int, 0, len(steps))
	for _, s := range steps {
		nums = append(nums, s.StepNumber)
	}
	sort.Ints(nums)
	for remaining > 0 {
		progressed := false
		for _, n := range nums {
			if done[n] {
				continue
			}
			ready := true
			for _, d := range deps[n] {
				if !done[d] {
					ready = false
					break
				}
			}
			if ready {
				order = append(order, n)
				done[n] = true
				remaining--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return order
}

func longestChain(steps []Step) []int {
	deps := make(map[int][]int)
	for _, s := range steps {
		deps[s.StepNumber] = s.DependsOn
	}
	memo := make(map[int][]int)
	var chain func(n int) []int
	chain = func(n int) []int {
		if c, ok := memo[n]; ok {
			return c
		}
		best := []int{}
		for _, d := range deps[n] {
			c := chain(d)
			if len(c) > len(best) {
				best = c
			}
		}
		result := append(append([]int{}, best...), n)
		memo[n] = result
		return result
	}
	var longest []int
	for _, s := range steps {
		c := chain(s.StepNumber)
		if len(c) > len(longest) {
			longest = c
		}
	}
	return longest
}

func parallelGroups(steps []Step, order []int) [][]int {
	deps := make(map[int][]int)
	for _, s := range steps {
		deps[s.StepNumber] = s.DependsOn
	}
	completed := make(map[int]bool)
	var groups [][]int
	remaining := make(map[int]bool)
	for _, n := range order {
		remaining[n] = true
	}
	for len(remaining) > 0 {
		var ready []int
		for _, n := range order {
			if !remaining[n] {
				continue
			}
			allDone := true
			for _, d := range deps[n] {
				if !completed[d] {
					allDone = false
					break
				}
			}
			if allDone {
				ready = append(ready, n)
			}
		}
		if len(ready) == 0 {
			break
		}
		groups = append(groups, ready)
		for _, n := range ready {
			completed[n] = true
			delete(remaining, n)
		}
	}
	return groups
}

// IndexEntry summarizes one plan in index.json.
type IndexEntry struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Tags               []string  `json:"tags"`
	Status             string    `json:"status"`
	FilesAffectedCount int       `json:"files_affected_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Store is the durable plan store rooted at dir.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore constructs a Store rooted at dir (e.g. ./.augment-plans).
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) planPath(id string) string {
	return filepath.Join(s.dir, "plan_"+id+".json")
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, "index.json")
}

func (s *Store) readIndex() ([]IndexEntry, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) writeIndex(entries []IndexEntry) error {
	return atomicWriteJSON(s.indexPath(), entries)
}

// SaveOptions controls save_plan behavior.
type SaveOptions struct {
	Name      string
	Tags      []string
	Overwrite bool
}

// Save persists a plan atomically, generating a fallback id when missing and
// rejecting duplicates unless Overwrite.
func (s *Store) Save(p *Plan, opts SaveOptions) (*Plan, *daemonerr.Error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	entries, err := s.readIndex()
	if err != nil {
		return nil, daemonerr.Wrap(err)
	}

	existingIdx := -1
	for i, e := range entries {
		if e.ID == p.ID {
			existingIdx = i
			break
		}
	}
	if existingIdx >= 0 && !opts.Overwrite {
		return nil, daemonerr.Newf(daemonerr.InvalidInput, "plan %s already exists; pass overwrite=true to replace", p.ID)
	}

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if opts.Name != "" {
		p.Name = opts.Name
	}
	if opts.Tags != nil {
		p.Tags = opts.Tags
	}
	if p.Status == "" {
		p.Status = "draft"
	}
	p.DeriveDependencyGraph()

	if err := atomicWriteJSON(s.planPath(p.ID), p); err != nil {
		return nil, daemonerr.Wrap(err)
	}

	entry := IndexEntry{
		ID:                 p.ID,
		Name:               p.Name,
		Tags:               p.Tags,
		Status:             p.Status,
		FilesAffectedCount: filesAffectedCount(p),
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if existingIdx >= 0 {
		entries[existingIdx] = entry
	} else {
		entries = append(entries, entry)
	}
	if err := s.writeIndex(entries); err != nil {
		return nil, daemonerr.Wrap(err)
	}

	logging.Plan("saved plan %s (version %d, %d steps)", p.ID, p.Version, len(p.Steps))
	return p, nil
}

func filesAffectedCount(p *Plan) int {
	seen := make(map[string]bool)
	for _, s := range p.Steps {
		for _, f := range s.FilesToModify {
			seen[f] = true
		}
		for _, f := range s.FilesToCreate {
			seen[f] = true
		}
		for _, f := range s.FilesToDelete {
			seen[f] = true
		}
	}
	return len(seen)
}

// Load retrieves a plan by id or name.
func (s *Store) Load(idOrName string) (*Plan, *daemonerr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readIndex()
	if err != nil {
		return nil, daemonerr.Wrap(err)
	}
	id := idOrName
	found := false
	for _, e := range entries {
		if e.ID == idOrName || e.Name == idOrName {
			id = e.ID
			found = true
			break
		}
	}
	if !found {
		return nil, daemonerr.New(daemonerr.PlanNotFound, "no plan matching: "+idOrName)
	}

	data, readErr := os.ReadFile(s.planPath(id))
	if readErr != nil {
		return nil, daemonerr.Wrap(readErr)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, daemonerr.Wrap(err)
	}
	return &p, nil
}

// ListFilter narrows list_plans.
type ListFilter struct {
	Status string
	Tags   []string
	Limit  int
}

// List returns index entries matching the filter, newest-updated first.
func (s *Store) List(filter ListFilter) ([]IndexEntry, *daemonerr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.readIndex()
	if err != nil {
		return nil, daemonerr.Wrap(err)
	}

	var out []IndexEntry
	for _, e := range entries {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if len(filter.Tags) > 0 && !hasAnyTag(e.Tags, filter.Tags) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func hasAnyTag(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, w := range want {
		if set[w] {
			return true
		}
	}
	return false
}

// Delete removes a plan's file and index entry.
func (s *Store) Delete(id string) *daemonerr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readIndex()
	if err != nil {
		return daemonerr.Wrap(err)
	}
	idx := -1
	for i, e := range entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return daemonerr.New(daemonerr.PlanNotFound, "no plan with id: "+id)
	}
	entries = append(entries[:idx], entries[idx+1:]...)
	if err := s.writeIndex(entries); err != nil {
		return daemonerr.Wrap(err)
	}
	if err := os.Remove(s.planPath(id)); err != nil && !os.IsNotExist(err) {
		return daemonerr.Wrap(err)
	}
	logging.Plan("deleted plan %s", id)
	return nil
}

// atomicWriteJSON marshals v and writes it via temp-file + rename.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".plan-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
