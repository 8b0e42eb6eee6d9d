package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ContainerKind selects how a reference collects its source fields.
type ContainerKind string

const (
	// KindSingle unwraps exactly one producer's field.
	KindSingle ContainerKind = "single"
	// KindArray concatenates the field of every producer, in source order,
	// flattening one level of nesting.
	KindArray ContainerKind = "array"
)

// wire names of the two container kinds
const (
	wireSingle = "object"
	wireArray  = "array"
)

// Reference is a placeholder inside a node's parameters that points at a
// field of one or more parent results.
type Reference struct {
	Kind      ContainerKind
	SourceIDs []string
	FieldPath string
	// Limit truncates an array after merging; zero keeps everything.
	Limit int
	// DistinctBy drops later array elements whose value at this path repeats.
	DistinctBy string
}

// SingleRef points at field path of one producer.
func SingleRef(sourceID, path string) *Reference {
	return &Reference{Kind: KindSingle, SourceIDs: []string{sourceID}, FieldPath: path}
}

// ArrayRef collects field path from every producer in order.
func ArrayRef(sourceIDs []string, path string) *Reference {
	ids := make([]string, len(sourceIDs))
	copy(ids, sourceIDs)
	return &Reference{Kind: KindArray, SourceIDs: ids, FieldPath: path}
}

type wireSource struct {
	Field   string   `json:"field"`
	TaskID  string   `json:"taskId,omitempty"`
	TaskIDs []string `json:"taskIds,omitempty"`
}

type wireReference struct {
	Source   *wireSource `json:"source"`
	Type     string      `json:"type"`
	Limit    int         `json:"limit,omitempty"`
	Distinct string      `json:"distinct,omitempty"`
}

func (r Reference) MarshalJSON() ([]byte, error) {
	w := wireReference{Source: &wireSource{Field: r.FieldPath}, Limit: r.Limit, Distinct: r.DistinctBy}
	switch r.Kind {
	case KindSingle:
		if len(r.SourceIDs) != 1 {
			return nil, fmt.Errorf("single reference needs exactly one source, has %d", len(r.SourceIDs))
		}
		w.Type = wireSingle
		w.Source.TaskID = r.SourceIDs[0]
	case KindArray:
		w.Type = wireArray
		w.Source.TaskIDs = r.SourceIDs
		if w.Source.TaskIDs == nil {
			w.Source.TaskIDs = []string{}
		}
	default:
		return nil, fmt.Errorf("unknown reference kind %q", r.Kind)
	}
	return json.Marshal(w)
}

func (r *Reference) UnmarshalJSON(data []byte) error {
	var w wireReference
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Source == nil || w.Source.Field == "" {
		return errors.New("reference source.field is required")
	}
	switch w.Type {
	case wireSingle:
		if w.Source.TaskID == "" {
			return errors.New("object reference requires source.taskId")
		}
		*r = *SingleRef(w.Source.TaskID, w.Source.Field)
	case wireArray:
		if len(w.Source.TaskIDs) == 0 {
			return errors.New("array reference requires source.taskIds")
		}
		*r = *ArrayRef(w.Source.TaskIDs, w.Source.Field)
	default:
		return fmt.Errorf("unknown reference type %q", w.Type)
	}
	if w.Limit < 0 {
		return fmt.Errorf("reference limit %d is negative", w.Limit)
	}
	r.Limit = w.Limit
	r.DistinctBy = w.Distinct
	return nil
}

// Param is one node parameter: a literal JSON value or a Reference.
type Param struct {
	Literal json.RawMessage
	Ref     *Reference
}

// Literal encodes v as a literal parameter.
func Literal(v any) (Param, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Param{}, fmt.Errorf("encode literal: %w", err)
	}
	return Param{Literal: b}, nil
}

// RefParam wraps a reference as a parameter.
func RefParam(ref *Reference) Param { return Param{Ref: ref} }

// IsRef reports whether p is a placeholder.
func (p Param) IsRef() bool { return p.Ref != nil }

func (p Param) MarshalJSON() ([]byte, error) {
	if p.Ref != nil {
		return json.Marshal(*p.Ref)
	}
	if len(p.Literal) == 0 {
		return []byte("null"), nil
	}
	return p.Literal, nil
}

// UnmarshalJSON treats any object shaped like a wire reference (a "type" of
// object or array plus a "source" with a field) as a Reference and
// everything else as a literal.
func (p *Param) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if looksLikeReference(trimmed) {
		var ref Reference
		if err := json.Unmarshal(trimmed, &ref); err != nil {
			return fmt.Errorf("decode reference: %w", err)
		}
		*p = Param{Ref: &ref}
		return nil
	}
	p.Literal = append(json.RawMessage(nil), trimmed...)
	p.Ref = nil
	return nil
}

func looksLikeReference(data []byte) bool {
	if len(data) == 0 || data[0] != '{' {
		return false
	}
	var probe struct {
		Type   string          `json:"type"`
		Source json.RawMessage `json:"source"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return (probe.Type == wireSingle || probe.Type == wireArray) && len(probe.Source) > 0 && probe.Source[0] == '{'
}
