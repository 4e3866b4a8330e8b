package approval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rishitank/context-engine-sub000/internal/plan"
)

func TestRequestApprovalScopeDerivedFromStepCount(t *testing.T) {
	store := NewStore()
	p := &plan.Plan{ID: "p1", Goal: "ship feature", Steps: []plan.Step{{StepNumber: 1}, {StepNumber: 2}}}

	whole := store.RequestApproval(p, nil)
	require.Equal(t, ScopePlan, whole.Scope)

	single := store.RequestApproval(p, []int{1})
	require.Equal(t, ScopeStep, single.Scope)

	group := store.RequestApproval(p, []int{1, 2})
	require.Equal(t, ScopeStepGroup, group.Scope)
}

func TestRespondApprovalTransitionsAndRejectsRepeat(t *testing.T) {
	store := NewStore()
	p := &plan.Plan{ID: "p1", Goal: "ship feature"}
	req := store.RequestApproval(p, nil)

	updated, err := store.RespondApproval(req.ID, ActionApprove, "lgtm", "alice")
	require.Nil(t, err)
	require.Equal(t, StatusApproved, updated.Status)

	_, err2 := store.RespondApproval(req.ID, ActionReject, "changed my mind", "alice")
	require.NotNil(t, err2)
	require.Equal(t, "ApprovalStateConflict", string(err2.Code))
}

func TestIsPlanApprovedReflectsLatestPlanScopeRequest(t *testing.T) {
	store := NewStore()
	p := &plan.Plan{ID: "p1", Goal: "ship feature"}
	require.False(t, store.IsPlanApproved("p1"))

	req := store.RequestApproval(p, nil)
	_, err := store.RespondApproval(req.ID, ActionApprove, "", "bob")
	require.Nil(t, err)
	require.True(t, store.IsPlanApproved("p1"))
}
