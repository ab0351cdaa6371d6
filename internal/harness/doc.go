// Package harness runs suites of tests: it orders them by declared
// dependencies, compiles them, executes them one at a time through the
// engine and aggregates the verdicts into a Report.
//
// # Planning
//
// Plan builds a graph with an edge from each dependency to its dependent
// and returns a topological order. Tests with no ordering constraint
// between them keep their discovery order, so the same directory always
// runs in the same order. Plan fails with a *PlanError when:
//
//   - two tests share a name (DUPLICATE_TEST)
//   - a dependency names a test not in the set (UNKNOWN_DEPENDENCY)
//   - dependencies form a cycle (CYCLIC_DEPENDENCY), self-dependency
//     included
//
// Select filters by tag before planning and never pulls dependencies in:
// a dependency filtered out by tag is reported as unknown.
//
// # Running
//
// Runner.Run compiles every planned test before touching the world; one
// compile error aborts the whole run. Tests then execute strictly in
// sequence, each including its teardown before the next starts, because
// freeze and step are global to the world. A failing or errored test does
// not skip its dependents.
package harness
