// Package execution runs independent tasks concurrently and drives a task
// graph to completion one readiness layer at a time.
package execution

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ParallelConfig controls fan-out execution.
type ParallelConfig struct {
	// MaxConcurrency bounds in-flight tasks; zero or less means unbounded.
	MaxConcurrency int
}

// Task is one independent unit of a fan-out.
type Task[T any] func(ctx context.Context) (T, error)

// Outcome holds a task's value or its error.
type Outcome[T any] struct {
	Value T
	Err   error
}

// RunAll executes tasks concurrently and returns once every task has
// finished. outcomes[i] always belongs to tasks[i]. A failing or panicking
// task does not cancel its siblings; its error is reported in its slot.
func RunAll[T any](ctx context.Context, tasks []Task[T], cfg ParallelConfig) []Outcome[T] {
	outcomes := make([]Outcome[T], len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	// a plain Group: member errors are collected per slot, never returned,
	// so one failure cannot cancel the others
	var g errgroup.Group
	if cfg.MaxConcurrency > 0 {
		g.SetLimit(cfg.MaxConcurrency)
	}
	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = runOne(ctx, i, task)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func runOne[T any](ctx context.Context, i int, task Task[T]) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome[T]{Err: fmt.Errorf("task %d panicked: %v", i, r)}
		}
	}()
	if task == nil {
		return Outcome[T]{Err: fmt.Errorf("task %d is nil", i)}
	}
	v, err := task(ctx)
	return Outcome[T]{Value: v, Err: err}
}
