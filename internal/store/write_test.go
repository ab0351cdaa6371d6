package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flint/internal/trace"
)

func TestWriteEvent_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ev := trace.Event{RunID: "r1", Seq: 1, Test: "t", Tick: 0, WorldTick: 100, Kind: trace.KindFreeze, OK: true}

	require.NoError(t, s.WriteEvent(ctx, ev))
	require.NoError(t, s.WriteEvent(ctx, ev))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRecord_ImplementsRecorder(t *testing.T) {
	s := createTestStore(t)
	var rec trace.Recorder = s

	require.NoError(t, rec.Record(trace.Event{RunID: "r1", Seq: 7, Test: "t", Tick: -1, Kind: trace.KindCleanup, Detail: "[0, 0, 0]..[1, 1, 1]", OK: true}))

	events, err := s.Events(context.Background(), "r1", "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(7), events[0].Seq)
	assert.Equal(t, -1, events[0].Tick)
	assert.True(t, events[0].OK)
}

func TestWriteReport_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteReport(ctx, createTestReport("r1")))
	require.NoError(t, s.WriteReport(ctx, createTestReport("r1")))

	var runs, verdicts int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs))
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM verdicts").Scan(&verdicts))
	assert.Equal(t, 1, runs)
	assert.Equal(t, 3, verdicts)
}

func TestWriteReport_StoresCanonicalFailures(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.WriteReport(context.Background(), createTestReport("r1")))

	var text string
	require.NoError(t, s.db.QueryRow("SELECT failures FROM verdicts WHERE test = 'bad'").Scan(&text))
	assert.Equal(t,
		`[{"expected":"minecraft:dirt","observed":"minecraft:stone","pos":[0,64,0],"tick":1}]`,
		text)

	require.NoError(t, s.db.QueryRow("SELECT failures FROM verdicts WHERE test = 'ok'").Scan(&text))
	assert.Equal(t, `[]`, text)
}
