package main

import (
	"context"
	"testing"

	"github.com/nulzo/prism-console/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_Idempotent(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	require.NoError(t, seed(ctx, repo))
	require.NoError(t, seed(ctx, repo))

	providers, err := repo.Providers().List(ctx)
	require.NoError(t, err)
	assert.Len(t, providers, 3)

	rules, err := repo.Rules().List(ctx, "claude_code")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "2f4e8a90-anthropic", rules[0].Services[0].Provider)
}
