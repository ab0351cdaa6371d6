package harness

import (
	"github.com/roach88/flint/internal/spec"
)

// SuitePlan is a dependency-ordered list of tests. It lives for one run.
type SuitePlan struct {
	Tests []*spec.TestSpec
}

// Names returns the planned test names in run order.
func (p *SuitePlan) Names() []string {
	out := make([]string, len(p.Tests))
	for i, t := range p.Tests {
		out[i] = t.Name
	}
	return out
}

// Plan orders tests so every dependency runs before its dependents. tests
// must be in discovery order; ties are broken by it.
func Plan(tests []*spec.TestSpec) (*SuitePlan, error) {
	index := make(map[string]int, len(tests))
	for i, t := range tests {
		if _, dup := index[t.Name]; dup {
			return nil, &PlanError{Code: ErrCodeDuplicateTest, Test: t.Name}
		}
		index[t.Name] = i
	}

	// edge: dependency -> dependent
	g := make(graph, len(tests))
	indegree := make([]int, len(tests))
	for i, t := range tests {
		for _, dep := range t.Dependencies {
			j, ok := index[dep]
			if !ok {
				return nil, &PlanError{Code: ErrCodeUnknownDependency, Test: t.Name, Dependency: dep}
			}
			g[j] = append(g[j], i)
			indegree[i]++
		}
	}

	if cycles := findCycles(g); len(cycles) > 0 {
		named := make([][]string, len(cycles))
		for i, c := range cycles {
			for _, v := range c {
				named[i] = append(named[i], tests[v].Name)
			}
		}
		return nil, &PlanError{Code: ErrCodeCyclicDependency, Test: named[0][0], Cycles: named}
	}

	// Kahn's algorithm, always taking the earliest-discovered ready test.
	done := make([]bool, len(tests))
	plan := &SuitePlan{Tests: make([]*spec.TestSpec, 0, len(tests))}
	for len(plan.Tests) < len(tests) {
		next := -1
		for i := range tests {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		done[next] = true
		plan.Tests = append(plan.Tests, tests[next])
		for _, w := range g[next] {
			indegree[w]--
		}
	}
	return plan, nil
}

// Select keeps the tests carrying at least one of tags, in order. With no
// tags every test is kept. Dependencies are not added.
func Select(tests []*spec.TestSpec, tags []string) []*spec.TestSpec {
	if len(tags) == 0 {
		return tests
	}
	var out []*spec.TestSpec
	for _, t := range tests {
		for _, tag := range tags {
			if t.HasTag(tag) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
