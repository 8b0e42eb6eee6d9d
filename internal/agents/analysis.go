package agents

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

const (
	maxKeyPoints      = 5
	maxTrends         = 3
	maxNumbers        = 5
	minKeyPointLength = 20
	minTermLength     = 4
)

var (
	sentenceBreak = regexp.MustCompile(`[.!?]+`)
	nonWord       = regexp.MustCompile(`\W+`)
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?%?`)
)

// Analyze extracts key points, recurring terms, mentioned numbers and
// insights from search records. Confidence grows with the number of
// records and is capped at 0.95.
func Analyze(req workers.AnalysisRequest) workers.Analysis {
	parts := make([]string, len(req.SearchResults))
	for i, r := range req.SearchResults {
		parts[i] = r.Title + ". " + r.Snippet
	}
	text := strings.Join(parts, " ")

	keyPoints := extractKeyPoints(text, len(req.SearchResults))
	trends := commonTerms(req.SearchResults, maxTrends)

	numbers := numberPattern.FindAllString(text, maxNumbers)
	if numbers == nil {
		numbers = []string{}
	}

	return workers.Analysis{
		KeyPoints:  keyPoints,
		Trends:     trends,
		Statistics: workers.Statistics{MentionedNumbers: numbers},
		Insights:   insights(keyPoints, trends, req.FocusAreas),
		Confidence: math.Min(0.95, 0.5+float64(len(req.SearchResults))*0.1),
	}
}

// AnalyzeHandler serves the analyze capability.
func AnalyzeHandler() workers.Handler {
	return workers.Typed(func(_ context.Context, req workers.AnalysisRequest) (workers.Analysis, error) {
		return Analyze(req), nil
	})
}

func extractKeyPoints(text string, resultCount int) []string {
	limit := min(maxKeyPoints, resultCount)
	points := []string{}
	for _, s := range sentenceBreak.Split(text, -1) {
		if len(points) >= limit {
			break
		}
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) > minKeyPointLength {
			points = append(points, s)
		}
	}
	return points
}

// commonTerms ranks lowercase words longer than minTermLength by frequency.
// Ties keep first-appearance order.
func commonTerms(records []workers.SearchRecord, limit int) []string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = r.Title + " " + r.Snippet
	}

	counts := make(map[string]int)
	var order []string
	for _, w := range nonWord.Split(strings.ToLower(strings.Join(parts, " ")), -1) {
		if len(w) <= minTermLength {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	if len(order) > limit {
		order = order[:limit]
	}
	if order == nil {
		order = []string{}
	}
	return order
}

func insights(keyPoints, trends, focusAreas []string) []string {
	out := []string{}
	if len(keyPoints) > 0 {
		out = append(out, fmt.Sprintf("Found %d key findings related to the research topic.", len(keyPoints)))
	}
	if len(trends) > 0 {
		out = append(out, fmt.Sprintf("Common themes identified: %s.", strings.Join(trends, ", ")))
	}
	if len(focusAreas) > 0 {
		out = append(out, fmt.Sprintf("Analysis focused on: %s.", strings.Join(focusAreas, ", ")))
	}
	return out
}
