// Package planner expands a research topic into the search queries that
// fan out at the start of a research pipeline.
package planner

// MaxQueries caps the fan-out width of the search stage.
const MaxQueries = 4

var defaultSuffixes = []string{"overview", "analysis", "trends"}

// Plan returns the ordered search queries for topic. With focus areas the
// topic is followed by one "topic area" query per area; without them the
// canonical overview/analysis/trends variants are used. The result never
// holds more than MaxQueries entries. Callers validate topic.
func Plan(topic string, focusAreas []string) []string {
	suffixes := focusAreas
	if len(suffixes) == 0 {
		suffixes = defaultSuffixes
	}

	queries := make([]string, 0, MaxQueries)
	queries = append(queries, topic)
	for _, s := range suffixes {
		if len(queries) == MaxQueries {
			break
		}
		queries = append(queries, topic+" "+s)
	}
	return queries
}

// PerQueryLimit is the result bound handed to each fanned-out search:
// ceil(maxSources / numQueries), at least 1.
func PerQueryLimit(maxSources, numQueries int) int {
	if numQueries <= 0 || maxSources <= 0 {
		return 1
	}
	return (maxSources + numQueries - 1) / numQueries
}
