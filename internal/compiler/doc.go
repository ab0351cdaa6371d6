// Package compiler lowers a test's timeline into a tick-ordered schedule.
//
// A compiled Schedule holds one Step per distinct tick, in ascending tick
// order. Each Step separates world mutations from expectations: the engine
// applies every mutation of a tick, waits for the world to converge, and
// only then evaluates that tick's expectations.
//
// Lowering rules:
//
//	place        -> SetBlock
//	place_each   -> SetBlock per entry, in declaration order
//	fill         -> FillRegion
//	remove       -> SetBlock(air)
//	assert       -> BlockIs per check
//	assert_state -> StateIs per tick, values[i] paired with at[i]
//
// An event whose `at` lists several ticks is repeated once per tick. A
// scalar `at` is a one-element list, so assert_state with a scalar tick
// takes exactly one value.
//
// Compile is pure: it performs no I/O and the returned Schedule is never
// modified afterwards.
package compiler
