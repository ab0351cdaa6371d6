package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flint/internal/gateway"
	"github.com/roach88/flint/internal/spec"
)

func TestRecordingGatewayRecordsCalls(t *testing.T) {
	ctx := context.Background()
	g := NewRecordingGateway(gateway.NewWorld())

	_, err := g.Freeze(ctx)
	require.NoError(t, err)
	require.NoError(t, g.SetBlock(ctx, spec.Pos{0, 64, 0}, "minecraft:stone"))
	_, err = g.Step(ctx, 1)
	require.NoError(t, err)
	id, err := g.QueryBlock(ctx, spec.Pos{0, 64, 0})
	require.NoError(t, err)
	assert.Equal(t, "minecraft:stone", id)

	assert.Equal(t, []string{
		"freeze",
		"set_block [0, 64, 0] minecraft:stone",
		"step 1",
		"query [0, 64, 0]",
	}, g.Calls())
	assert.Equal(t, 1, g.Count("step"))
}

func TestRecordingGatewayInjectsFaults(t *testing.T) {
	ctx := context.Background()
	g := NewRecordingGateway(gateway.NewWorld())
	boom := errors.New("boom")
	g.Inject(Fault{Op: "sync", Nth: 2, Err: boom})

	require.NoError(t, g.Sync(ctx))
	assert.ErrorIs(t, g.Sync(ctx), boom)
	require.NoError(t, g.Sync(ctx))
}

func TestRecordingGatewayHangs(t *testing.T) {
	g := NewRecordingGateway(gateway.NewWorld())
	g.Inject(Fault{Op: "freeze", Nth: 1, Hang: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Freeze(ctx)
	assert.True(t, gateway.IsKind(err, gateway.KindTimeout))
}

func TestRecordingGatewaySkewsSteps(t *testing.T) {
	ctx := context.Background()
	g := NewRecordingGateway(gateway.NewWorld())
	g.SkewSteps(5)

	_, err := g.Freeze(ctx)
	require.NoError(t, err)
	tick, err := g.Step(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), tick)
}
