package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

// ResolveParams returns n's parameters as one JSON object with every
// reference replaced by the referenced field of its completed source(s).
func (g *Graph) ResolveParams(n *TaskNode) (json.RawMessage, error) {
	keys := make([]string, 0, len(n.Params))
	for k := range n.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		p := n.Params[k]
		var value json.RawMessage
		if p.IsRef() {
			v, err := g.Resolve(n, p.Ref)
			if err != nil {
				return nil, fmt.Errorf("param %q: %w", k, err)
			}
			value = v
		} else {
			value = p.Literal
			if len(value) == 0 {
				value = json.RawMessage("null")
			}
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(k)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Resolve evaluates ref on behalf of n. Every source must be a completed
// parent of n; a source result lacking the field is an AggregationError.
func (g *Graph) Resolve(n *TaskNode, ref *Reference) (json.RawMessage, error) {
	parents := make(map[string]struct{}, len(n.Parents))
	for _, p := range n.Parents {
		parents[p] = struct{}{}
	}
	for _, id := range ref.SourceIDs {
		if _, ok := parents[id]; !ok {
			return nil, fmt.Errorf("%w: node %s is not a parent of %s", ErrUnresolvedReference, id, n.ID)
		}
	}
	return g.Collect(ref)
}

// Collect evaluates ref against the graph's completed nodes without a
// consuming node. It is used to assemble terminal results.
func (g *Graph) Collect(ref *Reference) (json.RawMessage, error) {
	values := make([]gjson.Result, 0, len(ref.SourceIDs))
	for _, id := range ref.SourceIDs {
		src, ok := g.Node(id)
		if !ok || src.State != StateCompleted {
			return nil, fmt.Errorf("%w: node %s has not completed", ErrUnresolvedReference, id)
		}
		v := gjson.GetBytes(src.Result, ref.FieldPath)
		if !v.Exists() {
			return nil, &AggregationError{NodeID: id, Field: ref.FieldPath}
		}
		values = append(values, v)
	}

	switch ref.Kind {
	case KindSingle:
		if len(values) != 1 {
			return nil, fmt.Errorf("single reference with %d sources", len(values))
		}
		return json.RawMessage(values[0].Raw), nil
	case KindArray:
		return mergeArray(values, ref), nil
	default:
		return nil, fmt.Errorf("unknown reference kind %q", ref.Kind)
	}
}

// mergeArray concatenates values in source order, flattening sequences by
// one level, then applies DistinctBy and Limit in that order.
func mergeArray(values []gjson.Result, ref *Reference) json.RawMessage {
	var items []string
	for _, v := range values {
		if v.IsArray() {
			for _, el := range v.Array() {
				items = append(items, el.Raw)
			}
			continue
		}
		items = append(items, v.Raw)
	}

	if ref.DistinctBy != "" {
		seen := make(map[string]struct{}, len(items))
		kept := items[:0]
		for _, raw := range items {
			key := gjson.Get(raw, ref.DistinctBy)
			if key.Exists() {
				if _, dup := seen[key.Raw]; dup {
					continue
				}
				seen[key.Raw] = struct{}{}
			}
			kept = append(kept, raw)
		}
		items = kept
	}
	if ref.Limit > 0 && len(items) > ref.Limit {
		items = items[:ref.Limit]
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, raw := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(raw)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
