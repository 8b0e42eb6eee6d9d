package circuitbreaker

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPWrapper sends requests through a circuit breaker. Transport errors
// and 5xx responses count as failures; 4xx responses do not.
type HTTPWrapper struct {
	client  *http.Client
	cb      *CircuitBreaker
	service string
}

// NewHTTPWrapper creates a wrapper whose breaker is tuned by CB_HTTP_* settings
func NewHTTPWrapper(client *http.Client, name, service string, logger *zap.Logger) *HTTPWrapper {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cb := NewCircuitBreaker(name, GetHTTPConfig().ToConfig(), logger)
	GlobalMetricsCollector.RegisterCircuitBreaker(service, cb)
	return &HTTPWrapper{client: client, cb: cb, service: service}
}

// Do executes req. A 5xx response is still returned to the caller with a
// nil error once it has been counted against the breaker.
func (hw *HTTPWrapper) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := hw.cb.Execute(req.Context(), func() error {
		var doErr error
		resp, doErr = hw.client.Do(req)
		if doErr != nil {
			return doErr
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return &statusError{code: resp.StatusCode}
		}
		return nil
	})

	var se *statusError
	isStatus := errors.As(err, &se)
	GlobalMetricsCollector.RecordRequest(hw.cb.name, hw.service, hw.cb.State(), err == nil)
	if isStatus {
		return resp, nil
	}
	return resp, err
}

// State exposes the breaker state for health reporting
func (hw *HTTPWrapper) State() State { return hw.cb.State() }

type statusError struct{ code int }

func (e *statusError) Error() string { return http.StatusText(e.code) }
