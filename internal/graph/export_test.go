package graph

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

func TestExportWireFormat(t *testing.T) {
	g, err := Build(canonical(t), RootParams{
		Query:          "renewable energy",
		MaxSources:     4,
		CitationFormat: workers.CitationIEEE,
		AgentIDs: map[workers.Capability]string{
			workers.CapabilitySearch:          "agent-search",
			workers.CapabilityAnalyze:         "agent-analysis",
			workers.CapabilityGenerateSummary: "agent-summary",
			workers.CapabilityFormatCitations: "agent-citation",
		},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(g.Export())
	require.NoError(t, err)

	var tasks []map[string]any
	require.NoError(t, json.Unmarshal(raw, &tasks))
	require.Len(t, tasks, 7)

	first := tasks[0]
	assert.Equal(t, "agent-search", first["agentId"])
	assert.Equal(t, "tools/search", first["operation"])
	_, hasParents := first["parents"]
	assert.False(t, hasParents, "roots omit parents")

	summary, err := json.Marshal(tasks[5])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"agentId": "agent-summary",
		"operation": "tools/generateSummary",
		"parents": ["4"],
		"params": {
			"analysis": {"source": {"field": "data.content", "taskId": "4"}, "type": "object"},
			"format": "detailed",
			"originalQuery": "renewable energy"
		}
	}`, string(summary))

	citations, err := json.Marshal(tasks[6]["params"])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"format": "ieee",
		"sources": {"source": {"field": "data.content", "taskIds": ["0","1","2","3"]}, "type": "array", "limit": 4}
	}`, string(citations))
}

func TestFromComposedRoundTrip(t *testing.T) {
	g, err := Build(canonical(t), RootParams{Query: "ocean currents", MaxSources: 5, CitationFormat: workers.CitationMLA})
	require.NoError(t, err)

	raw, err := json.Marshal(g.Export())
	require.NoError(t, err)
	var tasks []ComposedTask
	require.NoError(t, json.Unmarshal(raw, &tasks))

	back, err := FromComposed(tasks)
	require.NoError(t, err)
	require.Equal(t, g.Len(), back.Len())

	for i, n := range g.Nodes {
		m := back.Nodes[i]
		assert.Equal(t, n.ID, m.ID)
		assert.Equal(t, n.Capability, m.Capability)
		assert.Equal(t, n.AgentID, m.AgentID)
		if diff := cmp.Diff(n.Parents, m.Parents); diff != "" {
			t.Fatalf("node %s parents (-want +got):\n%s", n.ID, diff)
		}
		for k, p := range n.Params {
			q, ok := m.Params[k]
			require.True(t, ok, "node %s lost param %s", n.ID, k)
			if p.IsRef() {
				require.True(t, q.IsRef())
				if diff := cmp.Diff(p.Ref, q.Ref); diff != "" {
					t.Fatalf("node %s param %s (-want +got):\n%s", n.ID, k, diff)
				}
				continue
			}
			assert.JSONEq(t, string(p.Literal), string(q.Literal))
		}
	}
}

func TestFromComposedRejects(t *testing.T) {
	ref := func(ids ...string) map[string]Param {
		return map[string]Param{"in": RefParam(ArrayRef(ids, workers.ContentPath))}
	}
	tests := []struct {
		name  string
		tasks []ComposedTask
		code  string
	}{
		{
			name:  "unknown operation",
			tasks: []ComposedTask{{Operation: "tools/translate"}},
			code:  "operation_unknown",
		},
		{
			name:  "parent out of range",
			tasks: []ComposedTask{{Operation: "tools/search", Parents: []string{"7"}}},
			code:  "parent_unknown",
		},
		{
			name:  "self parent",
			tasks: []ComposedTask{{Operation: "tools/search", Parents: []string{"0"}}},
			code:  "parent_self",
		},
		{
			name: "reference outside parents",
			tasks: []ComposedTask{
				{Operation: "tools/search"},
				{Operation: "tools/search"},
				{Operation: "tools/analyze", Parents: []string{"0"}, Params: ref("0", "1")},
			},
			code: "reference_not_parent",
		},
		{
			name: "cycle",
			tasks: []ComposedTask{
				{Operation: "tools/analyze", Parents: []string{"1"}},
				{Operation: "tools/generateSummary", Parents: []string{"0"}},
			},
			code: "cycle",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromComposed(tt.tasks)
			var cErr *GraphConstructionError
			require.ErrorAs(t, err, &cErr)
			assert.Contains(t, cErr.Codes(), tt.code)
		})
	}
}

func TestParamLiteralThatIsNotAReference(t *testing.T) {
	var p Param
	require.NoError(t, json.Unmarshal([]byte(`{"type":"object","value":1}`), &p))
	assert.False(t, p.IsRef())
	assert.JSONEq(t, `{"type":"object","value":1}`, string(p.Literal))

	require.NoError(t, json.Unmarshal([]byte(`{"type":"array","source":{"field":"data.content","taskIds":["0"]},"distinct":"url"}`), &p))
	require.True(t, p.IsRef())
	assert.Equal(t, KindArray, p.Ref.Kind)
	assert.Equal(t, "url", p.Ref.DistinctBy)

	err := json.Unmarshal([]byte(`{"type":"object","source":{"field":"data.content"}}`), &p)
	assert.Error(t, err)
}
