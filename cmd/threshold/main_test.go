package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smukkama/airquality-server/internal/alerting"
)

func TestRun_GetAndSet(t *testing.T) {
	ctx := context.Background()
	store := alerting.NewMemoryThresholdStore(150)

	require.NoError(t, run(ctx, store, []string{"get"}))
	require.NoError(t, run(ctx, store, []string{"set", "175"}))

	v, err := store.Threshold(ctx)
	require.NoError(t, err)
	require.Equal(t, 175, v)
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	store := alerting.NewMemoryThresholdStore(150)

	require.Error(t, run(ctx, store, nil))
	require.Error(t, run(ctx, store, []string{"set"}))
	require.Error(t, run(ctx, store, []string{"set", "high"}))
	require.ErrorIs(t, run(ctx, store, []string{"set", "750"}), alerting.ErrInvalidThreshold)
	require.Error(t, run(ctx, store, []string{"delete"}))
}
