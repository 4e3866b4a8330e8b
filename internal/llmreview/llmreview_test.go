package llmreview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/finding"
)

type fakeAsker struct {
	answers []string
	calls   int
}

func (f *fakeAsker) SearchAndAsk(ctx context.Context, query, prompt string) (string, *daemonerr.Error) {
	i := f.calls
	f.calls++
	if i < len(f.answers) {
		return f.answers[i], nil
	}
	return "", nil
}

func TestReviewSkipsWhenBelowRiskThreshold(t *testing.T) {
	asker := &fakeAsker{}
	o := New(asker)
	findings, stats, err := o.Review(context.Background(), "diff text", nil, 1, Options{RiskThreshold: 3})
	require.Nil(t, err)
	require.Empty(t, findings)
	require.Equal(t, 0, asker.calls)
	require.NotNil(t, stats)
}

func TestReviewForcesLLMWhenLLMForceSet(t *testing.T) {
	asker := &fakeAsker{answers: []string{`[{"category":"security","severity":"high","confidence":0.9,"file_path":"a.go","line_start":1,"line_end":1,"title":"issue","description":"desc"}]`}}
	o := New(asker)
	findings, stats, err := o.Review(context.Background(), "diff text", nil, 1, Options{RiskThreshold: 3, LLMForce: true})
	require.Nil(t, err)
	require.Len(t, findings, 1)
	require.Equal(t, finding.SeverityHigh, findings[0].Severity)
	require.Equal(t, finding.SourceLLMStructural, findings[0].Source)
	require.Contains(t, stats.TimingsMs, "llm_structural")
}

func TestReviewTwoPassAppendsDetailedFindings(t *testing.T) {
	structural := `[{"category":"bug","severity":"medium","confidence":0.7,"file_path":"a.go","line_start":2,"line_end":2,"title":"s1","description":"d1"}]`
	detailed := `[{"category":"bug","severity":"critical","confidence":0.95,"file_path":"a.go","line_start":2,"line_end":3,"title":"d2","description":"deep dive"}]`
	asker := &fakeAsker{answers: []string{structural, detailed}}
	o := New(asker)

	findings, stats, err := o.Review(context.Background(), "diff text", nil, 5, Options{RiskThreshold: 3, TwoPass: true})
	require.Nil(t, err)
	require.Len(t, findings, 2)
	require.Equal(t, finding.SourceLLMStructural, findings[0].Source)
	require.Equal(t, finding.SourceLLMDetailed, findings[1].Source)
	require.Contains(t, stats.TimingsMs, "llm_detailed")
}

func TestReviewTreatsDegeneratePlainTextAnswerAsNoFindings(t *testing.T) {
	asker := &fakeAsker{answers: []string{"I looked at the diff and it seems fine, no issues."}}
	o := New(asker)
	findings, _, err := o.Review(context.Background(), "diff text", nil, 5, Options{RiskThreshold: 3})
	require.Nil(t, err)
	require.Empty(t, findings)
}
