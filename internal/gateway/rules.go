package gateway

import (
	"github.com/roach88/flint/internal/spec"
)

// Toggle flips a boolean property on every block with the given id every
// period ticks, like a redstone clock.
func Toggle(id, property string, period int) Rule {
	if period < 1 {
		period = 1
	}
	return func(tick int64, blocks *Blocks) {
		if tick%int64(period) != 0 {
			return
		}
		for _, p := range blocks.Positions() {
			bs := blocks.Get(p)
			if bs.ID != id {
				continue
			}
			v, ok := bs.Prop(property)
			if !ok {
				continue
			}
			switch v {
			case "true":
				blocks.Set(p, bs.With(property, "false"))
			case "false":
				blocks.Set(p, bs.With(property, "true"))
			}
		}
	}
}

// Fall moves blocks with one of the given ids down one position per tick
// while the block below is air. Lower blocks move first.
func Fall(ids ...string) Rule {
	falling := make(map[string]bool, len(ids))
	for _, id := range ids {
		falling[id] = true
	}
	return func(_ int64, blocks *Blocks) {
		for _, p := range blocks.Positions() {
			bs := blocks.Get(p)
			if !falling[bs.ID] {
				continue
			}
			below := spec.Pos{p[0], p[1] - 1, p[2]}
			if !blocks.Get(below).IsAir() {
				continue
			}
			blocks.Set(below, bs)
			blocks.Set(p, BlockState{ID: spec.Air})
		}
	}
}

// NamedRules are the rules selectable by name from configuration.
var NamedRules = map[string]Rule{
	"lever_clock": Toggle("minecraft:lever", "powered", 2),
	"gravity":     Fall("minecraft:sand", "minecraft:gravel"),
}
