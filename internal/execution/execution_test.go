package execution

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rishitank/context-engine-sub000/internal/config"
	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
	"github.com/rishitank/context-engine-sub000/internal/plan"
)

// fakeAsker is a stub Asker whose responses are queued per call.
type fakeAsker struct {
	responses []string
	errs      []*daemonerr.Error
	calls     int
}

func (f *fakeAsker) SearchAndAsk(ctx context.Context, query, prompt string) (string, *daemonerr.Error) {
	i := f.calls
	f.calls++
	var resp string
	var err *daemonerr.Error
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

func testConfig() config.ExecutionConfig {
	return config.ExecutionConfig{
		MaxTrackedPlans:   100,
		TerminalTTL:       time.Hour,
		SweepInterval:     5 * time.Minute,
		StepTimeout:       5 * time.Second,
		CircuitTripAfter:  3,
		CircuitResetAfter: 60 * time.Second,
	}
}

func samplePlan() *plan.Plan {
	return &plan.Plan{
		ID: "p1",
		Steps: []plan.Step{
			{StepNumber: 1},
			{StepNumber: 2, DependsOn: []int{1}},
			{StepNumber: 3, DependsOn: []int{1}},
			{StepNumber: 4, DependsOn: []int{2, 3}},
		},
	}
}

func TestReadinessFollowsDAGAfterCompletion(t *testing.T) {
	asker := &fakeAsker{responses: []string{"[]", "[]", "[]", "[]"}}
	tr := New(testConfig(), 4, asker, nil, nil)
	p := samplePlan()
	tr.Track(p)

	ready, err := tr.ReadySteps("p1")
	require.Nil(t, err)
	require.Equal(t, []int{1}, ready)

	_, serr := tr.StartStep(context.Background(), "p1", 1, false, "")
	require.Nil(t, serr)

	ready, err = tr.ReadySteps("p1")
	require.Nil(t, err)
	require.ElementsMatch(t, []int{2, 3}, ready)

	_, serr = tr.StartStep(context.Background(), "p1", 2, false, "")
	require.Nil(t, serr)
	_, serr = tr.StartStep(context.Background(), "p1", 3, false, "")
	require.Nil(t, serr)

	ready, err = tr.ReadySteps("p1")
	require.Nil(t, err)
	require.Equal(t, []int{4}, ready)
}

func TestStartStepFailsWhenNotReady(t *testing.T) {
	asker := &fakeAsker{responses: []string{"[]"}}
	tr := New(testConfig(), 1, asker, nil, nil)
	tr.Track(samplePlan())

	_, err := tr.StartStep(context.Background(), "p1", 2, false, "")
	require.NotNil(t, err)
	require.Equal(t, daemonerr.StepNotReady, err.Code)
}

func TestExecutePlanAllReadyRunsParallelBatch(t *testing.T) {
	asker := &fakeAsker{responses: []string{"[]", "[]", "[]", "[]"}}
	tr := New(testConfig(), 4, asker, nil, nil)
	tr.Track(samplePlan())

	res, err := tr.ExecutePlan(context.Background(), "p1", ExecuteOptions{Mode: ModeAllReady})
	require.Nil(t, err)
	require.Len(t, res.Executed, 1)
	require.Equal(t, StepCompleted, res.Executed[0].Status)
	require.ElementsMatch(t, []int{2, 3}, res.Ready)
}

func TestExecutePlanFullPlanDrainsDAGInOrder(t *testing.T) {
	asker := &fakeAsker{responses: []string{"[]", "[]", "[]", "[]"}}
	tr := New(testConfig(), 2, asker, nil, nil)
	tr.Track(samplePlan())

	res, err := tr.ExecutePlan(context.Background(), "p1", ExecuteOptions{Mode: ModeFullPlan})
	require.Nil(t, err)
	require.Len(t, res.Executed, 4)
	for _, st := range res.Executed {
		require.Equal(t, StepCompleted, st.Status)
	}
}

func TestExecutePlanFullPlanStopsOnFailure(t *testing.T) {
	asker := &fakeAsker{
		responses: []string{"", "", "", ""},
		errs: []*daemonerr.Error{
			daemonerr.New(daemonerr.EngineUnavailable, "boom"),
		},
	}
	tr := New(testConfig(), 1, asker, nil, nil)
	tr.Track(samplePlan())

	res, err := tr.ExecutePlan(context.Background(), "p1", ExecuteOptions{Mode: ModeFullPlan, StopOnFailure: true})
	require.Nil(t, err)
	require.Len(t, res.Executed, 1)
	require.Equal(t, StepFailed, res.Executed[0].Status)
}

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	failErr := daemonerr.New(daemonerr.EngineUnavailable, "down")
	asker := &fakeAsker{errs: []*daemonerr.Error{failErr, failErr, failErr, failErr}}
	cfg := testConfig()
	cfg.CircuitTripAfter = 2

	// One single-step plan; a failed step is returned with a nil error and
	// counts toward the breaker.
	tr := New(cfg, 1, asker, nil, nil)
	p := &plan.Plan{ID: "p1", Steps: []plan.Step{{StepNumber: 1}}}
	tr.Track(p)

	s1, e1 := tr.StartStep(context.Background(), "p1", 1, false, "")
	require.Nil(t, e1)
	require.Equal(t, StepFailed, s1.Status)

	// Manually reset step 1 back to ready for a second attempt (the state
	// machine doesn't allow re-running a failed step directly).
	tr.plans["p1"].steps[1].Status = StepReady

	s2, e2 := tr.StartStep(context.Background(), "p1", 1, false, "")
	require.Nil(t, e2)
	require.Equal(t, StepFailed, s2.Status)

	tr.plans["p1"].steps[1].Status = StepReady
	_, e3 := tr.StartStep(context.Background(), "p1", 1, false, "")
	require.NotNil(t, e3)
	require.Equal(t, daemonerr.CircuitBreakerOpen, e3.Code)
}

func TestApplyChangesCreatesModifiesAndDeletesUnderPolicy(t *testing.T) {
	dir := t.TempDir()
	policy, perr := pathpolicy.New(dir)
	require.NoError(t, perr)

	existing := filepath.Join(dir, "existing.txt")
	require.NoError(t, os.WriteFile(existing, []byte("old content"), 0644))

	changeSet := `[
		{"file_path": "new.txt", "operation": "create", "content": "fresh"},
		{"file_path": "existing.txt", "operation": "modify", "content": "new content"},
		{"file_path": "existing.txt", "operation": "delete"}
	]`
	asker := &fakeAsker{responses: []string{changeSet}}
	tr := New(testConfig(), 1, asker, policy, nil)
	tr.Track(&plan.Plan{ID: "p1", Steps: []plan.Step{{StepNumber: 1}}})

	st, err := tr.StartStep(context.Background(), "p1", 1, true, "")
	require.Nil(t, err)
	require.Equal(t, StepCompleted, st.Status)
	require.Empty(t, st.FileErrors)
}

func TestParseChangeSetJSONRejectsUnknownOperation(t *testing.T) {
	_, err := ParseChangeSetJSON(`[{"file_path": "a.txt", "operation": "rename"}]`)
	require.Error(t, err)
}

func TestParseChangeSetJSONEmptyOnPlainTextAnswer(t *testing.T) {
	changes, err := ParseChangeSetJSON("this is just a plain-text degenerate answer")
	require.NoError(t, err)
	require.Nil(t, changes)
}

func TestCompleteStepSkipDependentsCascadesToTransitiveDependents(t *testing.T) {
	asker := &fakeAsker{}
	tr := New(testConfig(), 4, asker, nil, nil)
	tr.Track(samplePlan())

	ready, rerr := tr.ReadySteps("p1")
	require.Nil(t, rerr)
	require.Equal(t, []int{1}, ready)

	st, derr := tr.CompleteStep(context.Background(), "p1", 1, "boom", true)
	require.Nil(t, derr)
	require.Equal(t, StepFailed, st.Status)

	states := tr.plans["p1"].steps
	require.Equal(t, StepSkipped, states[2].Status)
	require.Equal(t, StepSkipped, states[3].Status)
	require.Equal(t, StepSkipped, states[4].Status)
	require.True(t, tr.plans["p1"].terminal())
}

func TestCompleteStepWithoutSkipDependentsMarksDependentsBlocked(t *testing.T) {
	asker := &fakeAsker{}
	tr := New(testConfig(), 4, asker, nil, nil)
	tr.Track(samplePlan())

	ready, rerr := tr.ReadySteps("p1")
	require.Nil(t, rerr)
	require.Equal(t, []int{1}, ready)

	st, derr := tr.CompleteStep(context.Background(), "p1", 1, "boom", false)
	require.Nil(t, derr)
	require.Equal(t, StepFailed, st.Status)

	states := tr.plans["p1"].steps
	require.Equal(t, StepBlocked, states[2].Status)
	require.Equal(t, StepBlocked, states[3].Status)
	require.Equal(t, StepBlocked, states[4].Status)
	require.True(t, tr.plans["p1"].terminal())
}

func TestSweepRemovesTerminalPlansPastTTL(t *testing.T) {
	asker := &fakeAsker{responses: []string{"[]"}}
	cfg := testConfig()
	cfg.TerminalTTL = 0
	tr := New(cfg, 1, asker, nil, nil)
	tr.Track(&plan.Plan{ID: "p1", Steps: []plan.Step{{StepNumber: 1}}})

	_, serr := tr.StartStep(context.Background(), "p1", 1, false, "")
	require.Nil(t, serr)

	removed := tr.Sweep()
	require.Equal(t, 1, removed)

	_, getErr := tr.ReadySteps("p1")
	require.NotNil(t, getErr)
	require.Equal(t, daemonerr.PlanNotFound, getErr.Code)
}
