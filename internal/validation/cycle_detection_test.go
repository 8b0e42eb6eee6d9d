package validation

import (
	"errors"
	"testing"
)

func TestTopologicalOrderLinear(t *testing.T) {
	deps := []Dependency{
		{ID: "C", DependsOn: []string{"B"}},
		{ID: "A"},
		{ID: "B", DependsOn: []string{"A"}},
	}

	order, err := TopologicalOrder(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"A", "B", "C"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestTopologicalOrderStableForSiblings(t *testing.T) {
	// four roots feeding one fan-in; roots must keep their input order
	deps := []Dependency{
		{ID: "0"}, {ID: "1"}, {ID: "2"}, {ID: "3"},
		{ID: "4", DependsOn: []string{"0", "1", "2", "3"}},
		{ID: "5", DependsOn: []string{"4"}},
		{ID: "6", DependsOn: []string{"0", "1", "2", "3"}},
	}

	order, err := TopologicalOrder(deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"0", "1", "2", "3", "4", "5", "6"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestTopologicalOrderCycle(t *testing.T) {
	deps := []Dependency{
		{ID: "A", DependsOn: []string{"C"}},
		{ID: "B", DependsOn: []string{"A"}},
		{ID: "C", DependsOn: []string{"B"}},
		{ID: "D"},
	}

	_, err := TopologicalOrder(deps)
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycle.Path) != 4 || cycle.Path[0] != cycle.Path[len(cycle.Path)-1] {
		t.Fatalf("cycle path should close on itself: %v", cycle.Path)
	}
	for _, id := range cycle.Path {
		if id == "D" {
			t.Fatalf("node outside the cycle reported: %v", cycle.Path)
		}
	}
}

func TestTopologicalOrderSelfDependency(t *testing.T) {
	_, err := TopologicalOrder([]Dependency{{ID: "A", DependsOn: []string{"A"}}})
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycle.Path) != 2 || cycle.Path[0] != "A" || cycle.Path[1] != "A" {
		t.Fatalf("unexpected path %v", cycle.Path)
	}
}

func TestTopologicalOrderUnknownDependency(t *testing.T) {
	_, err := TopologicalOrder([]Dependency{{ID: "A", DependsOn: []string{"Z"}}})
	var unknown *UnknownDependencyError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownDependencyError, got %v", err)
	}
	if unknown.DependsOn != "Z" {
		t.Fatalf("unexpected dependency %q", unknown.DependsOn)
	}
}

func TestTopologicalOrderEmpty(t *testing.T) {
	order, err := TopologicalOrder(nil)
	if err != nil || len(order) != 0 {
		t.Fatalf("expected empty order, got %v %v", order, err)
	}
}
