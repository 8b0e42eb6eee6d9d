package agents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

func fixedClock() time.Time { return time.Date(2024, time.March, 5, 14, 0, 0, 0, time.UTC) }

func TestFormatCitationStyles(t *testing.T) {
	src := []workers.SearchRecord{
		{Title: "Energy Report", URL: "https://www.iea.org/reports/energy"},
		{URL: "https://example.com/untitled"},
	}
	tests := []struct {
		format    workers.CitationFormat
		first     string
		second    string
		inText    string
		biblioTop string
	}{
		{
			format:    workers.CitationAPA,
			first:     "[1] Energy Report. (March 5, 2024). Retrieved from https://www.iea.org/reports/energy",
			second:    "[2] Untitled. (March 5, 2024). Retrieved from https://example.com/untitled",
			inText:    "(1)",
			biblioTop: "Bibliography (APA Format)\n\n",
		},
		{
			format:    workers.CitationMLA,
			first:     "[1] \"Energy Report.\" iea.org, March 5, 2024, https://www.iea.org/reports/energy",
			second:    "[2] \"Untitled.\" example.com, March 5, 2024, https://example.com/untitled",
			inText:    "(1)",
			biblioTop: "Bibliography (MLA Format)\n\n",
		},
		{
			format:    workers.CitationChicago,
			first:     "Energy Report. Accessed March 5, 2024. https://www.iea.org/reports/energy",
			second:    "Untitled. Accessed March 5, 2024. https://example.com/untitled",
			inText:    "[1]",
			biblioTop: "Bibliography (CHICAGO Format)\n\n",
		},
		{
			format:    workers.CitationIEEE,
			first:     "[1] Energy Report, Mar 5, 2024. [Online]. Available: https://www.iea.org/reports/energy",
			second:    "[2] Untitled, Mar 5, 2024. [Online]. Available: https://example.com/untitled",
			inText:    "[1]",
			biblioTop: "Bibliography (IEEE Format)\n\n",
		},
	}

	f := NewCitationFormatter(fixedClock)
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			c, err := f.Format(workers.CitationRequest{Sources: src, Format: tt.format})
			require.NoError(t, err)
			require.Len(t, c.FormattedSources, 2)

			assert.Equal(t, workers.FormattedSource{ID: "source-1", Citation: tt.first, URL: src[0].URL}, c.FormattedSources[0])
			assert.Equal(t, tt.second, c.FormattedSources[1].Citation)
			assert.Equal(t, "source-2", c.FormattedSources[1].ID)
			assert.Equal(t, workers.InTextCitation{Text: tt.first, Citation: tt.inText}, c.InTextCitations[0])
			assert.Equal(t, tt.biblioTop+tt.first+"\n\n"+tt.second, c.Bibliography)
		})
	}
}

func TestFormatDefaultsToAPA(t *testing.T) {
	c, err := NewCitationFormatter(fixedClock).Format(workers.CitationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Bibliography (APA Format)\n\n", c.Bibliography)
	assert.NotNil(t, c.FormattedSources)
	assert.Empty(t, c.InTextCitations)
}

func TestFormatRejectsUnknownStyle(t *testing.T) {
	_, err := NewCitationFormatter(fixedClock).Format(workers.CitationRequest{Format: "harvard"})
	assert.Error(t, err)
}

func TestValidateSource(t *testing.T) {
	assert.Equal(t, SourceValidation{Valid: true}, ValidateSource("https://example.com/a"))
	assert.Equal(t, SourceValidation{Valid: true}, ValidateSource("mailto:someone@example.com"))
	assert.Equal(t, SourceValidation{Valid: false, Reason: "Invalid URL format"}, ValidateSource("example.com/a"))
	assert.Equal(t, SourceValidation{Valid: false, Reason: "Invalid URL format"}, ValidateSource("::"))
}
