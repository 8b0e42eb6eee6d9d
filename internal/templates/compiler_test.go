package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

func TestCanonicalTemplateCompiles(t *testing.T) {
	c, err := Canonical()
	require.NoError(t, err)
	require.Len(t, c.Stages, 4)

	kinds := []StageKind{StageFanOut, StageFanIn, StageSingle, StageFanIn}
	caps := []workers.Capability{
		workers.CapabilitySearch,
		workers.CapabilityAnalyze,
		workers.CapabilityGenerateSummary,
		workers.CapabilityFormatCitations,
	}
	for i, st := range c.Stages {
		assert.Equal(t, kinds[i], st.Kind, "stage %s", st.ID)
		assert.Equal(t, caps[i], st.Capability, "stage %s", st.ID)
	}

	analysis, ok := c.Stage("analysis")
	require.True(t, ok)
	require.Len(t, analysis.Inputs, 1)
	assert.Equal(t, ContainerArray, analysis.Inputs[0].Container)
	assert.Equal(t, workers.ContentPath, analysis.Inputs[0].Field)
	assert.Equal(t, BindMaxSources, analysis.Inputs[0].Limit)

	summary, _ := c.Stage("summary")
	assert.Equal(t, ContainerSingle, summary.Inputs[0].Container)

	assert.Equal(t, Outputs{Sources: "search", Analysis: "analysis", Summary: "summary", Citations: "citations"}, c.Outputs())
}

func TestCompileDefaultsFieldPath(t *testing.T) {
	c, err := CompileTemplate(validTemplate())
	require.NoError(t, err)

	citations, ok := c.Stage("citations")
	require.True(t, ok)
	assert.Equal(t, workers.ContentPath, citations.Inputs[0].Field)
	assert.Equal(t, StageFanIn, citations.Kind)

	_, ok = c.Stage("missing")
	assert.False(t, ok)
}

func TestCompileRejectsInvalid(t *testing.T) {
	tpl := validTemplate()
	tpl.Stages[1].Inputs[0].From = "nowhere"
	_, err := CompileTemplate(tpl)
	require.Error(t, err)
}
