package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flint/internal/spec"
)

func TestFindTestFiles(t *testing.T) {
	files, err := FindTestFiles("testdata/suite", false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "suite", "basic_placement.json"),
		filepath.Join("testdata", "suite", "lever_toggle.yaml"),
	}, files)

	files, err = FindTestFiles("testdata/suite", true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "suite", "basic_placement.json"),
		filepath.Join("testdata", "suite", "lever_toggle.yaml"),
		filepath.Join("testdata", "suite", "nested", "fill_clear.cue"),
	}, files)
}

func TestFindTestFilesSingleFile(t *testing.T) {
	files, err := FindTestFiles("testdata/suite/lever_toggle.yaml", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"testdata/suite/lever_toggle.yaml"}, files)

	notes := writeTest(t, t.TempDir(), "notes.txt", "hello")
	_, err = FindTestFiles(notes, false)
	assert.ErrorContains(t, err, "unsupported test file")
}

func TestFindTestFilesSkipsOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	writeTest(t, dir, "b.yml", "name: b\ntimeline: []\n")
	writeTest(t, dir, "a.JSON", "{}")
	writeTest(t, dir, "README.md", "# tests")

	files, err := FindTestFiles(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.JSON"), filepath.Join(dir, "b.yml")}, files)
}

func TestLoadTestsCollectsEveryIssue(t *testing.T) {
	dir := t.TempDir()
	good := writeTest(t, dir, "good.json", `{"name": "good", "timeline": [{"at": 0, "do": "place", "pos": [0, 0, 0], "block": "minecraft:stone"}]}`)
	outside := writeTest(t, dir, "outside.json", `{
		"name": "outside",
		"setup": {"cleanup": {"region": [[0, 0, 0], [1, 1, 1]]}},
		"timeline": [
			{"at": 0, "do": "place", "pos": [5, 0, 0], "block": "minecraft:stone"},
			{"at": 1, "do": "remove", "pos": [0, 9, 0]}
		]
	}`)
	broken := writeTest(t, dir, "broken.json", `{"name": "broken", "timeline": [{"at": 0, "do": "explode"}]}`)

	tests, issues := LoadTests([]string{broken, good, outside})
	require.Len(t, tests, 1)
	assert.Equal(t, "good", tests[0].Name)

	require.Len(t, issues, 3)
	assert.Equal(t, broken, issues[0].File)
	assert.Equal(t, ErrCodeLoadFailed, issues[0].Code)
	assert.Equal(t, spec.ErrPositionOutsideRegion, issues[1].Code)
	assert.Equal(t, spec.ErrPositionOutsideRegion, issues[2].Code)
	assert.Equal(t, outside, issues[2].File)
}

func TestCompileIssues(t *testing.T) {
	dir := t.TempDir()
	path := writeTest(t, dir, "mismatch.yaml", `
name: mismatch
timeline:
  - at: [1, 2]
    do: assert_state
    pos: [0, 0, 0]
    state: powered
    values: ["true"]
`)
	tests, issues := LoadTests([]string{path})
	require.Empty(t, issues)

	issues = CompileIssues(tests)
	require.Len(t, issues, 1)
	assert.Equal(t, "MISMATCHED_ARRAY_LENGTHS", issues[0].Code)
	assert.Equal(t, "mismatch", issues[0].Test)
	assert.Equal(t, path, issues[0].File)
	assert.Contains(t, issues[0].String(), path+": MISMATCHED_ARRAY_LENGTHS: ")
}
