package agents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

func TestSummarize(t *testing.T) {
	analysis := Analyze(workers.AnalysisRequest{SearchResults: energyRecords()})
	s, err := Summarize(workers.SummaryRequest{Analysis: analysis, OriginalQuery: "renewable energy"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(s.ExecutiveSummary, "Executive Summary\n\nResearch Query: renewable energy\n\n"))
	assert.Contains(t, s.ExecutiveSummary, "regarding \"renewable energy\". \n\nKey Findings:\n1. Solar capacity grew 25% in 2023 across Europe and Asia\n2. Offshore")
	assert.Contains(t, s.ExecutiveSummary, "Trends Identified:\n• solar\n• capacity\n• power")
	assert.True(t, strings.HasSuffix(s.ExecutiveSummary, "Confidence Level: 85%"))

	assert.True(t, strings.HasPrefix(s.DetailedReport, "Research Report: renewable energy\n\n=== INTRODUCTION ===\n"))
	for _, heading := range []string{"KEY POINTS", "TRENDS AND PATTERNS", "STATISTICS", "INSIGHTS", "CONCLUSION"} {
		assert.Contains(t, s.DetailedReport, "\n\n=== "+heading+" ===\n")
	}
	assert.Contains(t, s.DetailedReport, "{\n  \"mentionedNumbers\": [\n    \"25%\",\n    \"2023\",\n    \"10.5\"\n  ]\n}")
	assert.True(t, strings.HasSuffix(s.DetailedReport,
		"Based on the analysis of 2 key findings and 3 identified trends, this report provides a comprehensive overview of \"renewable energy\"."))
	assert.Equal(t, len(strings.Fields(s.DetailedReport)), s.WordCount)

	require.Len(t, s.Sections, 3)
	assert.Equal(t, "Key Findings", s.Sections[0].Title)
	assert.Equal(t, "• solar\n• capacity\n• power", s.Sections[1].Content)
	assert.Equal(t, "Insights", s.Sections[2].Title)
}

func TestSummarizeWithoutInsights(t *testing.T) {
	s, err := Summarize(workers.SummaryRequest{OriginalQuery: "nothing"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(s.ExecutiveSummary, "Confidence Level: 70%"))
	assert.Contains(t, s.DetailedReport, "{\n  \"mentionedNumbers\": []\n}")
}

func TestSummarizeHandlerValidatesFormat(t *testing.T) {
	h := SummarizeHandler()
	_, err := h(t.Context(), []byte(`{"originalQuery":"q","format":"poem"}`))
	assert.ErrorIs(t, err, workers.ErrInvalidArguments)

	_, err = h(t.Context(), []byte(`{"format":"brief"}`))
	assert.ErrorIs(t, err, workers.ErrInvalidArguments)

	raw, err := h(t.Context(), []byte(`{"originalQuery":"q","format":"brief"}`))
	require.NoError(t, err)
	var s workers.Summary
	require.NoError(t, workers.Unwrap(raw, &s))
	assert.Positive(t, s.WordCount)
}
