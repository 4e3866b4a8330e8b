package verdict

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rishitank/context-engine-sub000/internal/finding"
)

func sampleFindings() []finding.Finding {
	return []finding.Finding{
		{ID: "a1", FilePath: "x.go", LineStart: 10, LineEnd: 10, RuleID: "sec/SEC", Severity: finding.SeverityMedium, Confidence: 0.4, Title: "t1"},
		{ID: "a2", FilePath: "x.go", LineStart: 10, LineEnd: 10, RuleID: "sec/SEC", Severity: finding.SeverityHigh, Confidence: 0.5, Title: "t2"},
		{ID: "b1", FilePath: "y.go", LineStart: 2, LineEnd: 2, RuleID: "style/FOO", Severity: finding.SeverityLow, Confidence: 0.9, Title: "t3"},
	}
}

func TestMergeKeepsHighestSeverityAndSumsConfidence(t *testing.T) {
	merged := Merge(sampleFindings())
	require.Len(t, merged, 2)

	var xgo finding.Finding
	for _, f := range merged {
		if f.FilePath == "x.go" {
			xgo = f
		}
	}
	require.Equal(t, finding.SeverityHigh, xgo.Severity)
	require.InDelta(t, 0.9, xgo.Confidence, 1e-9)
}

func TestMergeConfidenceCapsAtOne(t *testing.T) {
	findings := []finding.Finding{
		{ID: "1", FilePath: "x.go", LineStart: 1, LineEnd: 1, RuleID: "r", Confidence: 0.8, Severity: finding.SeverityLow},
		{ID: "2", FilePath: "x.go", LineStart: 1, LineEnd: 1, RuleID: "r", Confidence: 0.8, Severity: finding.SeverityLow},
	}
	merged := Merge(findings)
	require.Len(t, merged, 1)
	require.Equal(t, 1.0, merged[0].Confidence)
}

func TestMergeReseeingSameFindingIDIsANoOp(t *testing.T) {
	f := finding.Finding{ID: "dup", FilePath: "x.go", LineStart: 1, LineEnd: 1, RuleID: "r", Confidence: 0.4, Severity: finding.SeverityLow}
	merged := Merge([]finding.Finding{f, f})
	require.Len(t, merged, 1)
	require.InDelta(t, 0.4, merged[0].Confidence, 1e-9)
}

func TestMergeIsIdempotent(t *testing.T) {
	base := sampleFindings()
	once := Merge(base)
	twice := Merge(append(append([]finding.Finding{}, base...), base...))
	require.Equal(t, len(once), len(twice))
	for i := range once {
		require.Equal(t, once[i].Confidence, twice[i].Confidence)
		require.Equal(t, once[i].Severity, twice[i].Severity)
	}
}

func TestFilterByConfidenceRemovesBelowThreshold(t *testing.T) {
	findings := []finding.Finding{
		{ID: "1", Confidence: 0.3},
		{ID: "2", Confidence: 0.6},
	}
	out := FilterByConfidence(findings, 0.55)
	require.Len(t, out, 1)
	require.Equal(t, "2", out[0].ID)
	for _, f := range out {
		require.GreaterOrEqual(t, f.Confidence, 0.55)
	}
}

func TestSortOrdersBySeverityThenConfidenceThenLine(t *testing.T) {
	findings := []finding.Finding{
		{ID: "low-early", Severity: finding.SeverityLow, Confidence: 0.9, LineStart: 1},
		{ID: "high-late", Severity: finding.SeverityHigh, Confidence: 0.5, LineStart: 100},
		{ID: "high-early", Severity: finding.SeverityHigh, Confidence: 0.5, LineStart: 2},
	}
	Sort(findings)
	require.Equal(t, "high-early", findings[0].ID)
	require.Equal(t, "high-late", findings[1].ID)
	require.Equal(t, "low-early", findings[2].ID)
}

func TestCapTruncatesAfterSort(t *testing.T) {
	findings := make([]finding.Finding, 0, 25)
	for i := 0; i < 25; i++ {
		findings = append(findings, finding.Finding{ID: string(rune('a' + i)), Severity: finding.SeverityLow, Confidence: 1})
	}
	capped := Cap(findings, 20)
	require.Len(t, capped, 20)
}

func TestShouldFailMonotoneInFailOnSeverity(t *testing.T) {
	findings := []finding.Finding{{ID: "f1", Severity: finding.SeverityHigh, Confidence: 1}}

	vHigherThreshold := Compute(findings, Options{FailOnSeverity: finding.SeverityCritical})
	require.False(t, vHigherThreshold.ShouldFail)

	vLowerThreshold := Compute(findings, Options{FailOnSeverity: finding.SeverityHigh})
	require.True(t, vLowerThreshold.ShouldFail)
}

func TestComputeHonorsAllowlist(t *testing.T) {
	findings := []finding.Finding{{ID: "allowed", Severity: finding.SeverityCritical, Confidence: 1}}
	v := Compute(findings, Options{FailOnSeverity: finding.SeverityCritical, AllowlistFindingIDs: []string{"allowed"}})
	require.False(t, v.ShouldFail)
}

func TestReviewVerdictGateScenarioHardcodedSecret(t *testing.T) {
	secretFinding := finding.Finding{
		ID:        finding.StableID("src/api/auth.ts", 3, 3, "SEC"),
		FilePath:  "src/api/auth.ts",
		LineStart: 3,
		LineEnd:   3,
		RuleID:    "security/SEC",
		Severity:  finding.SeverityHigh,
		Confidence: 1.0,
		Title:     "violates SEC",
		Source:    finding.SourceInvariant,
	}

	findings, v := Pipeline([]finding.Finding{secretFinding}, Options{FailOnSeverity: finding.SeverityHigh})
	require.Len(t, findings, 1)
	require.True(t, v.ShouldFail)
	require.Len(t, v.FailReasons, 1)
}

func TestPipelineEndToEndDedupFilterSortCap(t *testing.T) {
	all := append(sampleFindings(), finding.Finding{ID: "c1", FilePath: "z.go", LineStart: 1, LineEnd: 1, RuleID: "x/Y", Severity: finding.SeverityCritical, Confidence: 0.9})
	findings, v := Pipeline(all, Options{})
	require.NotEmpty(t, findings)
	require.True(t, v.ShouldFail)
	Sort(findings)
	require.Equal(t, finding.SeverityCritical, findings[0].Severity)
}
