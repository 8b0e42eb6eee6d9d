package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Invoker is the uniform call contract for every worker capability.
// Arguments and results are JSON; results are always result envelopes.
type Invoker interface {
	Invoke(ctx context.Context, capability Capability, args json.RawMessage) (json.RawMessage, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, capability Capability, args json.RawMessage) (json.RawMessage, error)

func (f InvokerFunc) Invoke(ctx context.Context, capability Capability, args json.RawMessage) (json.RawMessage, error) {
	return f(ctx, capability, args)
}

// Handler serves one capability inside this process.
type Handler func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Typed builds a Handler around a function with a typed request and response.
// The request is decoded strictly and validated before fn runs; the response
// is validated and wrapped in a result envelope.
func Typed[Req any, Resp any](fn func(context.Context, Req) (Resp, error)) Handler {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var req Req
		if len(bytes.TrimSpace(args)) == 0 {
			args = json.RawMessage("{}")
		}
		dec := json.NewDecoder(bytes.NewReader(args))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		if err := ValidatePayload(req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := ValidatePayload(resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
		}
		return Wrap(resp)
	}
}
