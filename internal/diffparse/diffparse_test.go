package diffparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDiff = `diff --git a/internal/auth/login.go b/internal/auth/login.go
index 1111111..2222222 100644
--- a/internal/auth/login.go
+++ b/internal/auth/login.go
@@ -10,7 +10,8 @@ func Login(user, pass string) error {
 	if user == "" {
 		return errInvalidUser
 	}
-	return checkPassword(user, pass)
+	ok := eval(pass)
+	return ok
 }

 func checkPassword(user, pass string) error {
`

func TestParseTracksOldAndNewLineNumbers(t *testing.T) {
	files, err := Parse(sampleDiff)
	require.Nil(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "internal/auth/login.go", files[0].NewPath)
	require.Len(t, files[0].Hunks, 1)

	hunk := files[0].Hunks[0]
	require.Equal(t, 10, hunk.OldStart)
	require.Equal(t, 10, hunk.NewStart)

	var removed, added Line
	for _, l := range hunk.Lines {
		if l.Type == LineRemoved {
			removed = l
		}
		if l.Type == LineAdded && l.Content == "	ok := eval(pass)" {
			added = l
		}
	}
	require.Equal(t, LineRemoved, removed.Type)
	require.NotZero(t, removed.OldLine)
	require.NotZero(t, added.NewLine)
}

func TestParseHandlesNewAndDeletedFiles(t *testing.T) {
	diff := `diff --git a/new.txt b/new.txt
new file mode 100644
index 0000000..abc1234
--- /dev/null
+++ b/new.txt
@@ -0,0 +1,2 @@
+line one
+line two
`
	files, err := Parse(diff)
	require.Nil(t, err)
	require.Len(t, files, 1)
	require.True(t, files[0].IsNew)
}

func TestRunPreflightFlagsHotspotAndRiskPattern(t *testing.T) {
	files, err := Parse(sampleDiff)
	require.Nil(t, err)

	pf := RunPreflight(files, []string{"**/auth/**"}, []string{"eval("})
	require.GreaterOrEqual(t, pf.RiskScore, 2)
	require.NotEmpty(t, pf.Hotspots)

	foundHotspotGlob := false
	foundRiskPattern := false
	for _, h := range pf.Hotspots {
		if h.Reason == "matches hotspot glob **/auth/**" {
			foundHotspotGlob = true
		}
		if h.Reason == "matches risk pattern eval(" {
			foundRiskPattern = true
		}
	}
	require.True(t, foundHotspotGlob)
	require.True(t, foundRiskPattern)
}

func TestClassifyMapsScoreToBand(t *testing.T) {
	require.Equal(t, ClassTrivial, classify(1))
	require.Equal(t, ClassRoutine, classify(2))
	require.Equal(t, ClassRisky, classify(3))
	require.Equal(t, ClassRisky, classify(4))
	require.Equal(t, ClassCritical, classify(5))
}

func TestRunPreflightTrivialForSmallQuietDiff(t *testing.T) {
	diff := `diff --git a/README.md b/README.md
--- a/README.md
+++ b/README.md
@@ -1,1 +1,1 @@
-old title
+new title
`
	files, err := Parse(diff)
	require.Nil(t, err)
	pf := RunPreflight(files, nil, nil)
	require.Equal(t, ClassTrivial, pf.Classification)
	require.Empty(t, pf.Hotspots)
}
