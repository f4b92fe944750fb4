package main

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/redis"
)

func TestApp_StartRegistersDependencies(t *testing.T) {
	a, err := newApp()
	require.NoError(t, err)

	ctx, err := a.start(context.Background(), appOptions{memoryStore: true})
	require.NoError(t, err)
	defer a.stop()

	ctx, cfg, err := resolve[*config.Config](ctx)
	require.NoError(t, err)
	assert.Same(t, a.cfg, cfg)

	ctx, logger, err := resolve[ectologger.Logger](ctx)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	ctx, stores, err := resolve[docstore.Provider](ctx)
	require.NoError(t, err)
	assert.IsType(t, &docstore.MemoryStore{}, stores)

	// optional dependencies are only registered when enabled
	_, _, err = resolve[*redis.Locker](ctx)
	assert.Error(t, err)
	_, _, err = resolve[*events.Emitter](ctx)
	assert.Error(t, err)
}

func TestApp_ContainersAreIsolated(t *testing.T) {
	first, err := newApp()
	require.NoError(t, err)
	second, err := newApp()
	require.NoError(t, err)
	assert.NotEqual(t, first.container.GetContainerID(), second.container.GetContainerID())

	firstCtx, err := first.start(context.Background(), appOptions{memoryStore: true})
	require.NoError(t, err)
	defer first.stop()
	secondCtx, err := second.start(context.Background(), appOptions{memoryStore: true})
	require.NoError(t, err)
	defer second.stop()

	_, a, err := resolve[docstore.Provider](firstCtx)
	require.NoError(t, err)
	_, b, err := resolve[docstore.Provider](secondCtx)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}
