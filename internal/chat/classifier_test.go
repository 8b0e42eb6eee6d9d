package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordClassifier(t *testing.T) {
	c, err := NewKeywordClassifier()
	require.NoError(t, err)

	tests := []struct {
		message string
		want    Intent
	}{
		{"Research the impact of AI on healthcare", Intent{Kind: IntentResearch, Query: "the impact of AI on healthcare"}},
		{"Can you find information about renewable energy trends?", Intent{Kind: IntentResearch, Query: "renewable energy trends?"}},
		{"analyze   quantum computing", Intent{Kind: IntentResearch, Query: "quantum computing"}},
		{"What is   fusion power", Intent{Kind: IntentResearch, Query: "fusion power"}},
		{"tell me about tidal energy", Intent{Kind: IntentResearch, Query: "tidal energy"}},
		{"please explore", Intent{Kind: IntentResearch, Query: "please explore"}},
		{"Hello there", Intent{Kind: IntentGreeting}},
		{"hi", Intent{Kind: IntentGreeting}},
		{"I need help", Intent{Kind: IntentHelp}},
		{"What can you do?", Intent{Kind: IntentCapabilities}},
		{"list your capabilities", Intent{Kind: IntentCapabilities}},
		// "hi" inside a word is not a greeting
		{"this is nothing", Intent{Kind: IntentUnknown}},
		{"researching cats", Intent{Kind: IntentUnknown}},
		{"", Intent{Kind: IntentUnknown}},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.message))
		})
	}
}

func TestParseKeywordRules(t *testing.T) {
	c, err := ParseKeywordRules([]byte(`
research:
  keywords: [look up]
  extract: [look up]
greeting:
  keywords: [hey]
`))
	require.NoError(t, err)
	assert.Equal(t, Intent{Kind: IntentResearch, Query: "comets"}, c.Classify("please LOOK UP comets"))
	assert.Equal(t, Intent{Kind: IntentGreeting}, c.Classify("hey"))
	assert.Equal(t, Intent{Kind: IntentUnknown}, c.Classify("help"))

	_, err = ParseKeywordRules([]byte(`greeting: {keywords: [hey]}`))
	assert.Error(t, err)
	_, err = ParseKeywordRules([]byte(`research: [`))
	assert.Error(t, err)
}
