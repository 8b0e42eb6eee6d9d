package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// Summarize renders an analysis as an executive summary, a plain-text
// report and three titled sections. Every format currently produces the
// same detailed report.
func Summarize(req workers.SummaryRequest) (workers.Summary, error) {
	report, err := detailedReport(req.Analysis, req.OriginalQuery)
	if err != nil {
		return workers.Summary{}, err
	}
	return workers.Summary{
		ExecutiveSummary: executiveSummary(req.Analysis, req.OriginalQuery),
		DetailedReport:   report,
		Sections: []workers.Section{
			{Title: "Key Findings", Content: strings.Join(req.Analysis.KeyPoints, "\n\n")},
			{Title: "Trends", Content: strings.Join(bullets(req.Analysis.Trends), "\n")},
			{Title: "Insights", Content: strings.Join(req.Analysis.Insights, "\n\n")},
		},
		WordCount: len(strings.Fields(report)),
	}, nil
}

// SummarizeHandler serves the generateSummary capability.
func SummarizeHandler() workers.Handler {
	return workers.Typed(func(_ context.Context, req workers.SummaryRequest) (workers.Summary, error) {
		return Summarize(req)
	})
}

func numbered(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = fmt.Sprintf("%d. %s", i+1, s)
	}
	return out
}

func bullets(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = "• " + s
	}
	return out
}

func executiveSummary(a workers.Analysis, query string) string {
	confidence := 70
	if len(a.Insights) > 0 {
		confidence = 85
	}
	var b strings.Builder
	b.WriteString("Executive Summary\n\n")
	fmt.Fprintf(&b, "Research Query: %s\n\n", query)
	fmt.Fprintf(&b, "This report analyzes information gathered from multiple sources regarding \"%s\". \n\n", query)
	b.WriteString("Key Findings:\n")
	b.WriteString(strings.Join(numbered(a.KeyPoints), "\n"))
	b.WriteString("\n\nTrends Identified:\n")
	b.WriteString(strings.Join(bullets(a.Trends), "\n"))
	b.WriteString("\n\nInsights:\n")
	b.WriteString(strings.Join(a.Insights, "\n"))
	fmt.Fprintf(&b, "\n\nConfidence Level: %d%%", confidence)
	return b.String()
}

func detailedReport(a workers.Analysis, query string) (string, error) {
	stats := a.Statistics
	if stats.MentionedNumbers == nil {
		stats.MentionedNumbers = []string{}
	}
	statsJSON, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode statistics: %w", err)
	}

	lines := []string{
		"Research Report: " + query,
		"\n=== INTRODUCTION ===",
		fmt.Sprintf("This comprehensive report presents findings from an analysis of multiple sources related to \"%s\".", query),
		"\n=== KEY POINTS ===",
	}
	lines = append(lines, numbered(a.KeyPoints)...)
	lines = append(lines, "\n=== TRENDS AND PATTERNS ===")
	lines = append(lines, bullets(a.Trends)...)
	lines = append(lines, "\n=== STATISTICS ===", string(statsJSON))
	lines = append(lines, "\n=== INSIGHTS ===")
	lines = append(lines, a.Insights...)
	lines = append(lines, "\n=== CONCLUSION ===",
		fmt.Sprintf("Based on the analysis of %d key findings and %d identified trends, this report provides a comprehensive overview of \"%s\".",
			len(a.KeyPoints), len(a.Trends), query))
	return strings.Join(lines, "\n"), nil
}
