// Package spec defines the typed model of a flint test file.
//
// A test file names a test, its tags and dependencies, an optional
// cleanup region, and a timeline of tick-pinned actions and assertions:
//
//	{
//	  "name": "lever_powers_lamp",
//	  "tags": ["redstone"],
//	  "setup": {"cleanup": {"region": [[0, 64, 0], [4, 66, 4]]}},
//	  "timeline": [
//	    {"at": 0, "do": "place", "pos": [0, 64, 0], "block": "minecraft:stone"},
//	    {"at": 1, "do": "assert", "checks": [{"pos": [0, 64, 0], "is": "minecraft:stone"}]},
//	    {"at": [2, 3], "do": "assert_state", "pos": [1, 64, 0], "state": "lit", "values": ["false", "true"]}
//	  ]
//	}
//
// The `do` field selects one of the Action variants. Test files may be
// written as JSON, YAML or CUE; all three are converted to JSON and checked
// against an embedded JSON Schema before typed decoding.
//
// Model values are pure data. Turning a TestSpec into something the engine
// can execute is the compiler's job.
package spec
