package history

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/rishitank/context-engine-sub000/internal/plan"
)

func samplePlan(title string) *plan.Plan {
	return &plan.Plan{
		ID:   "p1",
		Goal: "add auth",
		Steps: []plan.Step{
			{StepNumber: 1, Title: title, Priority: plan.PriorityHigh},
			{StepNumber: 2, Title: "implement", Priority: plan.PriorityHigh, DependsOn: []int{1}},
		},
	}
}

func TestAppendAssignsDenseIncreasingVersions(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	e1, err1 := store.Append("p1", ChangeCreated, "initial", samplePlan("scaffold"))
	require.NoError(t, err1)
	require.Equal(t, 1, e1.Version)

	e2, err2 := store.Append("p1", ChangeModified, "tweak", samplePlan("scaffold-v2"))
	require.NoError(t, err2)
	require.Equal(t, 2, e2.Version)
}

func TestCompareVersionsDetectsModifiedStepTitle(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err1 := store.Append("p1", ChangeCreated, "initial", samplePlan("scaffold"))
	require.NoError(t, err1)
	_, err2 := store.Append("p1", ChangeModified, "renamed step 1", samplePlan("scaffold-renamed"))
	require.NoError(t, err2)

	diff, diffErr := store.CompareVersions("p1", 1, 2)
	require.Nil(t, diffErr)
	require.Len(t, diff.StepsModified, 1)
	require.Equal(t, 1, diff.StepsModified[0].StepNumber)

	want := []FieldDiff{{Name: "title", From: "scaffold", To: "scaffold-renamed"}}
	if diffText := cmp.Diff(want, diff.StepsModified[0].Fields); diffText != "" {
		t.Fatalf("unexpected field diff (-want +got):\n%s", diffText)
	}
}

func TestRollbackPlanRestoresSnapshotAndAppendsEntry(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err1 := store.Append("p1", ChangeCreated, "initial", samplePlan("scaffold"))
	require.NoError(t, err1)
	_, err2 := store.Append("p1", ChangeModified, "renamed", samplePlan("scaffold-renamed"))
	require.NoError(t, err2)

	restored, rollbackErr := store.RollbackPlan("p1", 1, "bad rename")
	require.Nil(t, rollbackErr)
	require.Equal(t, "scaffold", restored.Steps[0].Title)

	versions := store.Versions("p1")
	require.Equal(t, ChangeRolledBack, versions[len(versions)-1].ChangeType)
	require.Equal(t, 3, versions[len(versions)-1].Version)
}

func TestHistoryPersistsAcrossStoreReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")
	store1, err := NewStore(dir)
	require.NoError(t, err)
	_, appendErr := store1.Append("p1", ChangeCreated, "initial", samplePlan("scaffold"))
	require.NoError(t, appendErr)

	store2, err := NewStore(dir)
	require.NoError(t, err)
	versions := store2.Versions("p1")
	require.Len(t, versions, 1)
	require.Equal(t, "scaffold", versions[0].PlanSnapshot.Steps[0].Title)
}
