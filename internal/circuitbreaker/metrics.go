package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "research_circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name", "service"},
	)

	breakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "service", "state", "result"},
	)

	breakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_circuit_breaker_state_changes_total",
			Help: "Total number of state changes in circuit breaker",
		},
		[]string{"name", "service", "from_state", "to_state"},
	)
)

type registered struct {
	service string
	cb      *CircuitBreaker
}

// MetricsCollector exports breaker state to Prometheus
type MetricsCollector struct {
	mu       sync.RWMutex
	breakers map[string]registered
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{breakers: make(map[string]registered)}
}

// GlobalMetricsCollector is shared by every wrapper in the process
var GlobalMetricsCollector = NewMetricsCollector()

// RegisterCircuitBreaker starts exporting cb and chains a state-change hook
func (mc *MetricsCollector) RegisterCircuitBreaker(service string, cb *CircuitBreaker) {
	mc.mu.Lock()
	mc.breakers[cb.name] = registered{service: service, cb: cb}
	mc.mu.Unlock()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	prev := cb.config.OnStateChange
	cb.config.OnStateChange = func(name string, from, to State) {
		if prev != nil {
			prev(name, from, to)
		}
		breakerStateChanges.WithLabelValues(name, service, from.String(), to.String()).Inc()
		breakerState.WithLabelValues(name, service).Set(float64(to))
	}
	breakerState.WithLabelValues(cb.name, service).Set(float64(cb.state))
}

// Services returns the registered breaker names and their service labels
func (mc *MetricsCollector) Services() map[string]string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	out := make(map[string]string, len(mc.breakers))
	for name, r := range mc.breakers {
		out[name] = r.service
	}
	return out
}

// RecordRequest records one call outcome
func (mc *MetricsCollector) RecordRequest(name, service string, state State, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	breakerRequests.WithLabelValues(name, service, state.String(), result).Inc()
}

// UpdateMetrics refreshes the state gauge of every registered breaker
func (mc *MetricsCollector) UpdateMetrics() {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	for name, r := range mc.breakers {
		breakerState.WithLabelValues(name, r.service).Set(float64(r.cb.State()))
	}
}

// StartMetricsCollection refreshes gauges periodically until ctx is done
func StartMetricsCollection(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				GlobalMetricsCollector.UpdateMetrics()
			}
		}
	}()
}
