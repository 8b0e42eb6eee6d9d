package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager runs registered checkers concurrently on demand.
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	last     map[string]CheckResult
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		checkers: make(map[string]Checker),
		last:     make(map[string]CheckResult),
		logger:   logger,
	}
}

// RegisterChecker adds c. Names must be unique.
func (m *Manager) RegisterChecker(c Checker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := c.Name()
	if name == "" {
		return fmt.Errorf("checker name cannot be empty")
	}
	if _, exists := m.checkers[name]; exists {
		return fmt.Errorf("checker %s already registered", name)
	}
	m.checkers[name] = c
	m.logger.Info("Health checker registered",
		zap.String("checker", name),
		zap.Bool("critical", c.IsCritical()),
		zap.Duration("timeout", c.Timeout()),
	)
	return nil
}

// Checkers returns the registered checker names, sorted.
func (m *Manager) Checkers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LastResult returns the most recent result of a checker.
func (m *Manager) LastResult(name string) (CheckResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.last[name]
	return r, ok
}

// GetDetailedHealth runs every checker and aggregates the results.
func (m *Manager) GetDetailedHealth(ctx context.Context) DetailedHealth {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	start := time.Now()
	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, c)
		}()
	}
	wg.Wait()

	components := make(map[string]CheckResult, len(results))
	summary := Summary{Total: len(results)}
	for _, r := range results {
		components[r.Component] = r
		switch r.Status {
		case StatusHealthy:
			summary.Healthy++
		case StatusDegraded:
			summary.Degraded++
		case StatusUnhealthy:
			summary.Unhealthy++
		}
		if r.Critical {
			summary.Critical++
		} else {
			summary.NonCritical++
		}
		if r.Status == StatusUnhealthy {
			m.logger.Warn("Health check failing",
				zap.String("checker", r.Component),
				zap.Bool("critical", r.Critical),
				zap.String("error", r.Error),
			)
		}
	}

	m.mu.Lock()
	for name, r := range components {
		m.last[name] = r
	}
	m.mu.Unlock()

	overall := overallStatus(components, summary)
	overall.Timestamp = start
	overall.Duration = time.Since(start)
	return DetailedHealth{Overall: overall, Components: components, Summary: summary, Timestamp: start}
}

// GetOverallHealth runs every checker and returns only the aggregate.
func (m *Manager) GetOverallHealth(ctx context.Context) OverallHealth {
	return m.GetDetailedHealth(ctx).Overall
}

// IsReady reports whether no critical checker is unhealthy.
func (m *Manager) IsReady(ctx context.Context) bool {
	return m.GetOverallHealth(ctx).Ready
}

// IsLive is true while the process can serve requests at all.
func (m *Manager) IsLive(context.Context) bool { return true }

func runCheck(ctx context.Context, c Checker) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()

	start := time.Now()
	done := make(chan CheckResult, 1)
	go func() { done <- c.Check(checkCtx) }()

	var r CheckResult
	select {
	case r = <-done:
	case <-checkCtx.Done():
		r = CheckResult{Status: StatusUnhealthy, Error: "check timed out", Message: checkCtx.Err().Error()}
	}
	r.Component = c.Name()
	r.Critical = c.IsCritical()
	r.Duration = time.Since(start)
	r.Timestamp = start
	return r
}

func overallStatus(components map[string]CheckResult, summary Summary) OverallHealth {
	if summary.Total == 0 {
		return OverallHealth{Status: StatusHealthy, Message: "No health checks registered", Ready: true, Live: true}
	}
	critical, nonCritical := 0, 0
	for _, r := range components {
		if r.Status != StatusUnhealthy {
			continue
		}
		if r.Critical {
			critical++
		} else {
			nonCritical++
		}
	}
	switch {
	case critical > 0:
		return OverallHealth{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("%d critical component(s) failing", critical),
			Live:    true,
		}
	case summary.Degraded > 0 || nonCritical > 0:
		return OverallHealth{
			Status:   StatusDegraded,
			Message:  fmt.Sprintf("%d component(s) degraded", summary.Degraded+nonCritical),
			Degraded: true,
			Ready:    true,
			Live:     true,
		}
	}
	return OverallHealth{Status: StatusHealthy, Message: "All components healthy", Ready: true, Live: true}
}
