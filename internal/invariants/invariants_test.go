package invariants

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rishitank/context-engine-sub000/internal/diffparse"
	"github.com/rishitank/context-engine-sub000/internal/finding"
)

const secretYAML = `
security:
  - id: SEC
    paths: ["**/*.ts"]
    severity: HIGH
    action: deny
    pattern: 'secret\s*=\s*["''][^"'']+["'']'
`

const whenRequireYAML = `
style:
  - id: ERR-WRAP
    paths: ["**/*.go"]
    severity: MEDIUM
    action: when_require
    when:
      pattern: 'err != nil'
    require:
      pattern: 'fmt\.Errorf'
`

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, ".review-invariants.yml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestDenyInvariantFlagsSecretAssignment(t *testing.T) {
	path := writeYAML(t, secretYAML)
	rs, err := Load(path)
	require.Nil(t, err)
	require.Len(t, rs.Invariants, 1)

	diff := `diff --git a/src/api/auth.ts b/src/api/auth.ts
--- a/src/api/auth.ts
+++ b/src/api/auth.ts
@@ -1,1 +1,2 @@
 existing line
+const secret = "my-super-secret-key-12345"
`
	files, derr := diffparse.Parse(diff)
	require.Nil(t, derr)

	findings := Evaluate(rs, files, DefaultOptions())
	require.Len(t, findings, 1)
	require.Equal(t, finding.SeverityHigh, findings[0].Severity)
	require.Equal(t, finding.SourceInvariant, findings[0].Source)
	require.Equal(t, "SEC", findings[0].RuleID[len(findings[0].RuleID)-3:])
}

func TestWhenRequireEmitsFindingOnlyWhenRequirementMissing(t *testing.T) {
	path := writeYAML(t, whenRequireYAML)
	rs, err := Load(path)
	require.Nil(t, err)

	missingRequire := `diff --git a/internal/foo.go b/internal/foo.go
--- a/internal/foo.go
+++ b/internal/foo.go
@@ -1,2 +1,3 @@
 func f() error {
+	if err != nil {
+		return err
 	}
`
	files, derr := diffparse.Parse(missingRequire)
	require.Nil(t, derr)
	findings := Evaluate(rs, files, DefaultOptions())
	require.Len(t, findings, 1)
	require.Equal(t, finding.SeverityMedium, findings[0].Severity)

	satisfied := `diff --git a/internal/foo.go b/internal/foo.go
--- a/internal/foo.go
+++ b/internal/foo.go
@@ -1,2 +1,3 @@
 func f() error {
+	if err != nil {
+		return fmt.Errorf("wrap: %w", err)
 	}
`
	files2, derr2 := diffparse.Parse(satisfied)
	require.Nil(t, derr2)
	findings2 := Evaluate(rs, files2, DefaultOptions())
	require.Empty(t, findings2)
}

func TestLoadRejectsInvalidRegex(t *testing.T) {
	bad := `
security:
  - id: BAD
    paths: ["**"]
    severity: LOW
    action: deny
    pattern: '(unclosed'
`
	path := writeYAML(t, bad)
	_, err := Load(path)
	require.NotNil(t, err)
	require.Equal(t, "PatternInvalid", string(err.Code))
}

func TestLoadReturnsEmptyRuleSetWhenFileMissing(t *testing.T) {
	rs, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Nil(t, err)
	require.Empty(t, rs.Invariants)
}

func TestChangedLinesOnlyFalseScansContextLines(t *testing.T) {
	yaml := `
security:
  - id: CTX
    paths: ["**"]
    severity: LOW
    action: deny
    pattern: 'TODO'
`
	path := writeYAML(t, yaml)
	rs, err := Load(path)
	require.Nil(t, err)

	diff := `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -1,2 +1,2 @@
 // TODO: context line unchanged
-old
+new
`
	files, derr := diffparse.Parse(diff)
	require.Nil(t, derr)

	require.Empty(t, Evaluate(rs, files, DefaultOptions()))

	full := Evaluate(rs, files, Options{ChangedLinesOnly: false})
	require.Len(t, full, 1)
}
