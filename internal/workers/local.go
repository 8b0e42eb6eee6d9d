package workers

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/metrics"
	"github.com/Kocoro-lab/research-orchestrator/internal/tracing"
)

const modeLocal = "local"

// LocalInvoker dispatches capabilities to handlers registered in this process.
type LocalInvoker struct {
	mu       sync.RWMutex
	handlers map[Capability]Handler
	logger   *zap.Logger
}

// NewLocalInvoker creates an empty registry.
func NewLocalInvoker(logger *zap.Logger) *LocalInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalInvoker{handlers: make(map[Capability]Handler), logger: logger}
}

// Register installs h for capability c, replacing any previous handler.
func (l *LocalInvoker) Register(c Capability, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[c] = h
}

// Capabilities lists registered capabilities in name order.
func (l *LocalInvoker) Capabilities() []Capability {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Capability, 0, len(l.handlers))
	for c := range l.handlers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (l *LocalInvoker) Invoke(ctx context.Context, c Capability, args json.RawMessage) (json.RawMessage, error) {
	l.mu.RLock()
	h, ok := l.handlers[c]
	l.mu.RUnlock()
	if !ok {
		return nil, &InvocationError{Capability: c, Mode: modeLocal, Err: ErrUnknownCapability}
	}

	ctx, span := tracing.StartSpan(ctx, "worker.invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("worker.capability", string(c)),
		attribute.String("worker.mode", modeLocal),
	)

	start := time.Now()
	out, err := h(ctx, args)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordWorkerInvocation(string(c), modeLocal, "error", elapsed.Seconds())
		l.logger.Debug("Local worker invocation failed",
			zap.String("capability", string(c)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, &InvocationError{Capability: c, Mode: modeLocal, Err: err}
	}
	metrics.RecordWorkerInvocation(string(c), modeLocal, "success", elapsed.Seconds())
	return out, nil
}
