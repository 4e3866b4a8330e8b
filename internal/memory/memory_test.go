package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddAndListRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, derr := s.Add(CategoryPreferences, "Editor", "Use tabs, not spaces.")
	require.Nil(t, derr)
	time.Sleep(2 * time.Millisecond)
	_, derr = s.Add(CategoryPreferences, "", "Prefer small PRs.")
	require.Nil(t, derr)

	recs, derr := s.List(CategoryPreferences)
	require.Nil(t, derr)
	require.Len(t, recs, 2)
	require.Equal(t, "Prefer small PRs.", recs[0].Content)
	require.Equal(t, "Use tabs, not spaces.", recs[1].Content)
	require.Equal(t, "Editor", recs[1].Title)
}

func TestAddRejectsUnknownCategory(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, derr := s.Add(Category("bogus"), "", "content")
	require.NotNil(t, derr)
}

func TestAddRejectsOversizeContent(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	huge := make([]byte, maxContentChars+1)
	for i := range huge {
		huge[i] = 'a'
	}
	_, derr := s.Add(CategoryFacts, "", string(huge))
	require.NotNil(t, derr)
}

func TestListWithEmptyCategoryMergesAll(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, derr := s.Add(CategoryPreferences, "", "pref one")
	require.Nil(t, derr)
	_, derr = s.Add(CategoryDecisions, "", "decision one")
	require.Nil(t, derr)
	_, derr = s.Add(CategoryFacts, "", "fact one")
	require.Nil(t, derr)

	recs, derr := s.List("")
	require.Nil(t, derr)
	require.Len(t, recs, 3)
}

func TestListOnEmptyStoreReturnsNoRecordsNotError(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	recs, derr := s.List(CategoryDecisions)
	require.Nil(t, derr)
	require.Empty(t, recs)
}
