package workers

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// EnvelopeType tags every worker result.
	EnvelopeType = "json"
	// ContentPath is the field path at which a worker's payload lives inside its envelope.
	ContentPath = "data.content"
)

// Envelope wraps every worker result so that references can address
// the payload with a stable path.
type Envelope struct {
	Type string       `json:"type"`
	Data EnvelopeData `json:"data"`
}

type EnvelopeData struct {
	Content json.RawMessage `json:"content"`
}

// Wrap encodes v as the content of a result envelope.
func Wrap(v any) (json.RawMessage, error) {
	var content json.RawMessage
	switch p := v.(type) {
	case json.RawMessage:
		content = p
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		content = b
	}
	return json.Marshal(Envelope{Type: EnvelopeType, Data: EnvelopeData{Content: content}})
}

// Unwrap decodes the content of a result envelope into v.
func Unwrap(raw json.RawMessage, v any) error {
	content, err := Content(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("%w: decode content: %v", ErrInvalidResult, err)
	}
	return nil
}

// Content returns the raw payload carried by a result envelope.
func Content(raw json.RawMessage) (json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if c := strings.TrimSpace(string(env.Data.Content)); c == "" || c == "null" {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidResult, ContentPath)
	}
	return env.Data.Content, nil
}

// ValidateResult decodes a content payload into the response type of c and
// checks it against the schema tags. Unknown fields are tolerated.
func ValidateResult(c Capability, content json.RawMessage) error {
	var out any
	switch c {
	case CapabilitySearch:
		out = &[]SearchRecord{}
	case CapabilityAnalyze:
		out = &Analysis{}
	case CapabilityGenerateSummary:
		out = &Summary{}
	case CapabilityFormatCitations:
		out = &Citations{}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCapability, c)
	}
	if err := json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResult, c, err)
	}
	if err := ValidatePayload(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResult, c, err)
	}
	return nil
}

// SearchRecord is one result returned by a search worker.
type SearchRecord struct {
	Title   string `json:"title" validate:"required"`
	URL     string `json:"url" validate:"required,url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source,omitempty"`
}

type SearchRequest struct {
	Query      string   `json:"query" validate:"required"`
	MaxResults int      `json:"maxResults,omitempty" validate:"gte=0"`
	Sources    []string `json:"sources,omitempty"`
}

type AnalysisRequest struct {
	SearchResults []SearchRecord `json:"searchResults" validate:"dive"`
	FocusAreas    []string       `json:"focusAreas,omitempty"`
}

type Statistics struct {
	MentionedNumbers []string `json:"mentionedNumbers"`
}

// Analysis is the payload produced by the analyze capability.
type Analysis struct {
	KeyPoints  []string   `json:"keyPoints"`
	Trends     []string   `json:"trends"`
	Statistics Statistics `json:"statistics"`
	Insights   []string   `json:"insights"`
	Confidence float64    `json:"confidence" validate:"gte=0,lte=1"`
}

type SummaryFormat string

const (
	SummaryExecutive SummaryFormat = "executive"
	SummaryDetailed  SummaryFormat = "detailed"
	SummaryBrief     SummaryFormat = "brief"
)

type SummaryRequest struct {
	Analysis      Analysis      `json:"analysis"`
	OriginalQuery string        `json:"originalQuery" validate:"required"`
	Format        SummaryFormat `json:"format,omitempty" validate:"omitempty,oneof=executive detailed brief"`
}

type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Summary is the payload produced by the generateSummary capability.
type Summary struct {
	ExecutiveSummary string    `json:"executiveSummary"`
	DetailedReport   string    `json:"detailedReport"`
	Sections         []Section `json:"sections"`
	WordCount        int       `json:"wordCount"`
}

type CitationFormat string

const (
	CitationAPA     CitationFormat = "apa"
	CitationMLA     CitationFormat = "mla"
	CitationChicago CitationFormat = "chicago"
	CitationIEEE    CitationFormat = "ieee"
)

// Valid reports whether f is a supported citation style.
func (f CitationFormat) Valid() bool {
	switch f {
	case CitationAPA, CitationMLA, CitationChicago, CitationIEEE:
		return true
	}
	return false
}

type CitationRequest struct {
	Sources []SearchRecord `json:"sources" validate:"dive"`
	Format  CitationFormat `json:"format,omitempty" validate:"omitempty,oneof=apa mla chicago ieee"`
}

type InTextCitation struct {
	Text     string `json:"text"`
	Citation string `json:"citation"`
}

type FormattedSource struct {
	ID       string `json:"id"`
	Citation string `json:"citation"`
	URL      string `json:"url"`
}

// Citations is the payload produced by the formatCitations capability.
type Citations struct {
	Bibliography     string            `json:"bibliography"`
	InTextCitations  []InTextCitation  `json:"inTextCitations"`
	FormattedSources []FormattedSource `json:"formattedSources"`
}
