package reactive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rishitank/context-engine-sub000/internal/config"
	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/execution"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeDiffs struct {
	diff string
}

func (f *fakeDiffs) Diff(ctx context.Context, baseRef, commitHash, file string) (string, error) {
	return f.diff, nil
}

type noopAskerType struct{}

func (noopAskerType) SearchAndAsk(ctx context.Context, query, prompt string) (string, *daemonerr.Error) {
	return "", nil
}

func newTestManager(t *testing.T, diffs DiffProvider) (*Manager, *execution.Tracker) {
	t.Helper()
	policy, perr := pathpolicy.New(t.TempDir())
	require.NoError(t, perr)
	execCfg := config.ExecutionConfig{MaxTrackedPlans: 10, StepTimeout: 2 * time.Second, CircuitTripAfter: 3}
	tracker := execution.New(execCfg, 2, noopAskerType{}, policy, execution.ParseChangeSetJSON)

	reactiveCfg := config.ReactiveConfig{MaxSessions: 10, StalledAfter: 2 * time.Minute, HousekeepingInterval: 30 * time.Second}
	reviewCfg := config.ReviewConfig{ConfidenceThreshold: 0.55, MaxFindings: 20, FailOnSeverity: "CRITICAL"}

	m := New(reactiveCfg, reviewCfg, Dependencies{Tracker: tracker, Diffs: diffs})
	return m, tracker
}

func TestReactiveReviewPRCreatesSessionAndCompletes(t *testing.T) {
	diff := `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -1,1 +1,2 @@
 existing
+new line
`
	m, _ := newTestManager(t, &fakeDiffs{diff: diff})

	sid, err := m.ReactiveReviewPR(context.Background(), Request{
		CommitHash:   "abc123",
		BaseRef:      "main",
		ChangedFiles: []string{"a.go"},
	})
	require.Nil(t, err)
	require.NotEmpty(t, sid)

	require.Eventually(t, func() bool {
		status, serr := m.GetReviewStatus(sid)
		require.Nil(t, serr)
		return status.State == StateCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetReviewStatusReturnsNotFoundForUnknownSession(t *testing.T) {
	m, _ := newTestManager(t, &fakeDiffs{})
	_, err := m.GetReviewStatus("nope")
	require.NotNil(t, err)
	require.Equal(t, daemonerr.SessionNotFound, err.Code)
}

func TestPauseReviewRejectsAlreadyTerminalSession(t *testing.T) {
	m, _ := newTestManager(t, &fakeDiffs{})
	sid, err := m.ReactiveReviewPR(context.Background(), Request{CommitHash: "c1", ChangedFiles: nil})
	require.Nil(t, err)

	require.Eventually(t, func() bool {
		status, _ := m.GetReviewStatus(sid)
		return status.State == StateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	perr := m.PauseReview(sid)
	require.NotNil(t, perr)
}

func TestSweepFlagsStalledSessionsWithoutCancelling(t *testing.T) {
	m, _ := newTestManager(t, &fakeDiffs{})
	m.cfg.StalledAfter = 1 * time.Millisecond

	sid, err := m.ReactiveReviewPR(context.Background(), Request{CommitHash: "c1", ChangedFiles: []string{"a.go"}})
	require.Nil(t, err)

	sess, _ := m.get(sid)
	sess.mu.Lock()
	sess.state = StateRunning
	sess.lastActivityAt = time.Now().Add(-1 * time.Hour)
	sess.mu.Unlock()

	flagged := m.Sweep()
	require.Equal(t, 1, flagged)

	status, serr := m.GetReviewStatus(sid)
	require.Nil(t, serr)
	require.True(t, status.AppearsStalled)
}

func TestEvictLRUPrefersTerminalSession(t *testing.T) {
	m, _ := newTestManager(t, &fakeDiffs{})
	m.cfg.MaxSessions = 1

	sid1, err := m.ReactiveReviewPR(context.Background(), Request{CommitHash: "c1", ChangedFiles: nil})
	require.Nil(t, err)
	require.Eventually(t, func() bool {
		status, _ := m.GetReviewStatus(sid1)
		return status.State == StateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	_, err = m.ReactiveReviewPR(context.Background(), Request{CommitHash: "c2", ChangedFiles: nil})
	require.Nil(t, err)

	m.mu.Lock()
	_, stillThere := m.sessions[sid1]
	m.mu.Unlock()
	require.False(t, stillThere)
}

func TestSweepEvictsTerminalSessionsPastTTL(t *testing.T) {
	m, _ := newTestManager(t, &fakeDiffs{})
	m.cfg.TTL = 1 * time.Millisecond

	sid, err := m.ReactiveReviewPR(context.Background(), Request{CommitHash: "c1", ChangedFiles: nil})
	require.Nil(t, err)
	require.Eventually(t, func() bool {
		status, _ := m.GetReviewStatus(sid)
		return status.State == StateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	sess, _ := m.get(sid)
	sess.mu.Lock()
	sess.updatedAt = time.Now().Add(-1 * time.Hour)
	sess.mu.Unlock()

	m.Sweep()

	_, serr := m.GetReviewStatus(sid)
	require.NotNil(t, serr)
	require.Equal(t, daemonerr.SessionNotFound, serr.Code)
}

func TestDefaultPlanSynthesizerCreatesOneStepPerFileWithNoDeps(t *testing.T) {
	req := Request{CommitHash: "abc", ChangedFiles: []string{"a.go", "b.go", "c.go"}}
	p := DefaultPlanSynthesizer(req)
	require.Len(t, p.Steps, 3)
	for _, s := range p.Steps {
		require.Empty(t, s.DependsOn)
	}
}
