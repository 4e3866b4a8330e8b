package plan

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func samplePlan() *Plan {
	return &Plan{
		Goal: "add auth",
		Steps: []Step{
			{StepNumber: 1, Title: "scaffold", Priority: PriorityHigh},
			{StepNumber: 2, Title: "implement", Priority: PriorityHigh, DependsOn: []int{1}},
			{StepNumber: 3, Title: "test", Priority: PriorityMedium, DependsOn: []int{2}},
		},
	}
}

func TestValidateRejectsDuplicateStepNumbers(t *testing.T) {
	p := samplePlan()
	p.Steps = append(p.Steps, Step{StepNumber: 1, Title: "dup"})
	err := p.Validate()
	require.NotNil(t, err)
}

func TestValidateRejectsCycles(t *testing.T) {
	p := &Plan{Steps: []Step{
		{StepNumber: 1, DependsOn: []int{2}},
		{StepNumber: 2, DependsOn: []int{1}},
	}}
	err := p.Validate()
	require.NotNil(t, err)
}

func TestDeriveDependencyGraphTopologicalOrder(t *testing.T) {
	p := samplePlan()
	p.DeriveDependencyGraph()
	require.Equal(t, []int{1, 2, 3}, p.DependencyGraph.ExecutionOrder)
	require.Equal(t, []int{1, 2, 3}, p.DependencyGraph.CriticalPath)
}

func TestSaveGeneratesIdAndPersistsIndex(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "plans"))
	require.NoError(t, err)

	p := samplePlan()
	saved, saveErr := store.Save(p, SaveOptions{Name: "auth-plan"})
	require.Nil(t, saveErr)
	require.NotEmpty(t, saved.ID)

	loaded, loadErr := store.Load("auth-plan")
	require.Nil(t, loadErr)
	require.Equal(t, saved.ID, loaded.ID)
	require.Len(t, loaded.Steps, 3)
}

func TestSaveRejectsDuplicateWithoutOverwrite(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "plans"))
	require.NoError(t, err)

	p := samplePlan()
	saved, saveErr := store.Save(p, SaveOptions{})
	require.Nil(t, saveErr)

	_, saveErr2 := store.Save(saved, SaveOptions{})
	require.NotNil(t, saveErr2)

	_, saveErr3 := store.Save(saved, SaveOptions{Overwrite: true})
	require.Nil(t, saveErr3)
}

func TestListFiltersByStatusAndTags(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "plans"))
	require.NoError(t, err)

	p1 := samplePlan()
	_, err1 := store.Save(p1, SaveOptions{Name: "p1", Tags: []string{"backend"}})
	require.Nil(t, err1)

	p2 := samplePlan()
	_, err2 := store.Save(p2, SaveOptions{Name: "p2", Tags: []string{"frontend"}})
	require.Nil(t, err2)

	results, listErr := store.List(ListFilter{Tags: []string{"backend"}})
	require.Nil(t, listErr)
	require.Len(t, results, 1)
	require.Equal(t, "p1", results[0].Name)
}

func TestDeleteRemovesPlanAndIndexEntry(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "plans"))
	require.NoError(t, err)

	p := samplePlan()
	saved, saveErr := store.Save(p, SaveOptions{Name: "to-delete"})
	require.Nil(t, saveErr)

	delErr := store.Delete(saved.ID)
	require.Nil(t, delErr)

	_, loadErr := store.Load(saved.ID)
	require.NotNil(t, loadErr)
}
