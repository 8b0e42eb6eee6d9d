package agents

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

const (
	longDate  = "January 2, 2006"
	shortDate = "Jan 2, 2006"
)

// CitationFormatter renders sources in one of the supported citation
// styles, dated with its clock.
type CitationFormatter struct {
	now func() time.Time
}

// NewCitationFormatter uses time.Now when now is nil.
func NewCitationFormatter(now func() time.Time) *CitationFormatter {
	if now == nil {
		now = time.Now
	}
	return &CitationFormatter{now: now}
}

// Format numbers sources from 1 in input order.
func (f *CitationFormatter) Format(req workers.CitationRequest) (workers.Citations, error) {
	format := req.Format
	if format == "" {
		format = workers.CitationAPA
	}
	if !format.Valid() {
		return workers.Citations{}, fmt.Errorf("unsupported citation format %q", format)
	}
	today := f.now()

	out := workers.Citations{
		InTextCitations:  make([]workers.InTextCitation, 0, len(req.Sources)),
		FormattedSources: make([]workers.FormattedSource, 0, len(req.Sources)),
	}
	citations := make([]string, 0, len(req.Sources))
	for i, src := range req.Sources {
		n := i + 1
		citation, err := formatCitation(src, format, n, today)
		if err != nil {
			return workers.Citations{}, err
		}
		citations = append(citations, citation)
		out.FormattedSources = append(out.FormattedSources, workers.FormattedSource{
			ID:       fmt.Sprintf("source-%d", n),
			Citation: citation,
			URL:      src.URL,
		})
		out.InTextCitations = append(out.InTextCitations, workers.InTextCitation{
			Text:     citation,
			Citation: inTextMarker(format, n),
		})
	}
	out.Bibliography = fmt.Sprintf("Bibliography (%s Format)\n\n", strings.ToUpper(string(format))) +
		strings.Join(citations, "\n\n")
	return out, nil
}

// Handler serves the formatCitations capability.
func (f *CitationFormatter) Handler() workers.Handler {
	return workers.Typed(func(_ context.Context, req workers.CitationRequest) (workers.Citations, error) {
		return f.Format(req)
	})
}

func formatCitation(src workers.SearchRecord, format workers.CitationFormat, n int, today time.Time) (string, error) {
	title := src.Title
	if title == "" {
		title = "Untitled"
	}
	switch format {
	case workers.CitationMLA:
		u, err := url.Parse(src.URL)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("source %d: invalid URL %q", n, src.URL)
		}
		domain := strings.Replace(u.Hostname(), "www.", "", 1)
		return fmt.Sprintf("[%d] \"%s.\" %s, %s, %s", n, title, domain, today.Format(longDate), src.URL), nil
	case workers.CitationChicago:
		return fmt.Sprintf("%s. Accessed %s. %s", title, today.Format(longDate), src.URL), nil
	case workers.CitationIEEE:
		return fmt.Sprintf("[%d] %s, %s. [Online]. Available: %s", n, title, today.Format(shortDate), src.URL), nil
	default:
		return fmt.Sprintf("[%d] %s. (%s). Retrieved from %s", n, title, today.Format(longDate), src.URL), nil
	}
}

func inTextMarker(format workers.CitationFormat, n int) string {
	if format == workers.CitationAPA || format == workers.CitationMLA {
		return fmt.Sprintf("(%d)", n)
	}
	return fmt.Sprintf("[%d]", n)
}

// SourceValidation is the result of ValidateSource.
type SourceValidation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ValidateSource accepts any absolute URL.
func ValidateSource(raw string) SourceValidation {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
		return SourceValidation{Valid: false, Reason: "Invalid URL format"}
	}
	return SourceValidation{Valid: true}
}
