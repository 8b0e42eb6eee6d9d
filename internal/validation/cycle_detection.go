// Package validation checks dependency lists before they are scheduled.
package validation

import (
	"fmt"
	"strings"
)

// Dependency is one node and the nodes it waits on.
type Dependency struct {
	ID        string
	DependsOn []string
}

// CycleError lists the nodes on a dependency cycle, first node repeated last.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

// UnknownDependencyError is returned when a node waits on an id that is not in the list.
type UnknownDependencyError struct {
	ID        string
	DependsOn string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("node %s depends on unknown node %s", e.ID, e.DependsOn)
}

// TopologicalOrder sorts deps with Kahn's algorithm. Among nodes that are
// ready at the same time the input order wins, so the result is stable.
// Self-dependencies count as cycles.
func TopologicalOrder(deps []Dependency) ([]string, error) {
	position := make(map[string]int, len(deps))
	for i, d := range deps {
		position[d.ID] = i
	}

	inDegree := make([]int, len(deps))
	dependents := make([][]int, len(deps))
	for i, d := range deps {
		for _, on := range d.DependsOn {
			j, ok := position[on]
			if !ok {
				return nil, &UnknownDependencyError{ID: d.ID, DependsOn: on}
			}
			dependents[j] = append(dependents[j], i)
			inDegree[i]++
		}
	}

	// the ready set is kept ordered by input position
	var ready []int
	for i := range deps {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]string, 0, len(deps))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, deps[cur].ID)
		for _, next := range dependents[cur] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = insertSorted(ready, next)
			}
		}
	}

	if len(order) == len(deps) {
		return order, nil
	}
	return nil, &CycleError{Path: cyclePath(deps, position, inDegree)}
}

func insertSorted(s []int, v int) []int {
	i := len(s)
	for i > 0 && s[i-1] > v {
		i--
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// cyclePath walks dependencies from the first unsorted node until a node
// repeats. Every unsorted node waits on at least one other unsorted node,
// so the walk always closes a cycle.
func cyclePath(deps []Dependency, position map[string]int, inDegree []int) []string {
	start := -1
	for i, d := range inDegree {
		if d > 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	visitedAt := make(map[int]int)
	var walk []int
	for cur := start; ; {
		if at, seen := visitedAt[cur]; seen {
			path := make([]string, 0, len(walk)-at+1)
			for _, i := range walk[at:] {
				path = append(path, deps[i].ID)
			}
			return append(path, deps[cur].ID)
		}
		visitedAt[cur] = len(walk)
		walk = append(walk, cur)

		next := -1
		for _, on := range deps[cur].DependsOn {
			if j := position[on]; inDegree[j] > 0 {
				next = j
				break
			}
		}
		if next < 0 {
			return []string{deps[cur].ID}
		}
		cur = next
	}
}
