// Package approval implements the Approval Workflow (C11): a per-request
// state machine gating automatic plan execution.
package approval

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/plan"
)

// Scope names what part of a plan an approval request covers.
type Scope string

const (
	ScopePlan      Scope = "plan"
	ScopeStep      Scope = "step"
	ScopeStepGroup Scope = "step_group"
)

// Status is the request's state machine position.
type Status string

const (
	StatusPending          Status = "pending"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusChangesRequested Status = "changes_requested"
)

// Action is the verb applied by a Response.
type Action string

const (
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestChanges Action = "request_changes"
)

// Request is one approval ask.
type Request struct {
	ID          string   `json:"id"`
	PlanID      string   `json:"plan_id"`
	Scope       Scope    `json:"scope"`
	StepNumbers []int    `json:"step_numbers,omitempty"`
	Summary     string   `json:"summary"`
	Risks       []string `json:"risks,omitempty"`
	Status      Status   `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Response is the terminal reply to a Request.
type Response struct {
	Action   Action    `json:"action"`
	Comments string    `json:"comments,omitempty"`
	Actor    string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// Store tracks approval requests in memory, keyed by request id.
type Store struct {
	mu       sync.Mutex
	requests map[string]*Request
	responses map[string]*Response
}

// NewStore constructs an empty approval Store.
func NewStore() *Store {
	return &Store{
		requests:  make(map[string]*Request),
		responses: make(map[string]*Response),
	}
}

// RequestApproval creates a Request with an auto-generated summary and risk
// roll-up derived from the plan.
func (s *Store) RequestApproval(p *plan.Plan, stepNumbers []int) *Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := ScopePlan
	if len(stepNumbers) == 1 {
		scope = ScopeStep
	} else if len(stepNumbers) > 1 {
		scope = ScopeStepGroup
	}

	req := &Request{
		ID:          uuid.NewString(),
		PlanID:      p.ID,
		Scope:       scope,
		StepNumbers: stepNumbers,
		Summary:     summarize(p, stepNumbers),
		Risks:       p.Risks,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
	s.requests[req.ID] = req
	logging.Approval("created approval request %s for plan %s (scope=%s)", req.ID, p.ID, scope)
	return req
}

func summarize(p *plan.Plan, stepNumbers []int) string {
	if len(stepNumbers) == 0 {
		return fmt.Sprintf("approve plan %q (%d steps)", p.Goal, len(p.Steps))
	}
	parts := make([]string, 0, len(stepNumbers))
	for _, n := range stepNumbers {
		parts = append(parts, fmt.Sprintf("#%d", n))
	}
	return fmt.Sprintf("approve steps %s of plan %q", strings.Join(parts, ", "), p.Goal)
}

// RespondApproval transitions a pending request's state. Repeated responses
// are rejected once a request has reached a terminal state.
func (s *Store) RespondApproval(requestID string, action Action, comments, actor string) (*Request, *daemonerr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, daemonerr.New(daemonerr.InvalidInput, "no such approval request: "+requestID)
	}
	if req.Status != StatusPending {
		return nil, daemonerr.New(daemonerr.ApprovalStateConflict, "approval request already resolved: "+requestID)
	}

	switch action {
	case ActionApprove:
		req.Status = StatusApproved
	case ActionReject:
		req.Status = StatusRejected
	case ActionRequestChanges:
		req.Status = StatusChangesRequested
	default:
		return nil, daemonerr.New(daemonerr.InvalidInput, "unknown approval action: "+string(action))
	}

	s.responses[requestID] = &Response{Action: action, Comments: comments, Actor: actor, Timestamp: time.Now()}
	logging.Approval("approval request %s resolved: %s by %s", requestID, req.Status, actor)
	return req, nil
}

// Get returns a request by id.
func (s *Store) Get(requestID string) (*Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	return req, ok
}

// IsPlanApproved reports whether the most recent plan-scope request for
// planID is StatusApproved — the gate spec §4.11 requires before automatic
// execution transitions a plan out of ready.
func (s *Store) IsPlanApproved(planID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *Request
	for _, r := range s.requests {
		if r.PlanID != planID || r.Scope != ScopePlan {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest != nil && latest.Status == StatusApproved
}
