// Package storetest holds behaviour checks shared by every store.Repository
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nulzo/prism-console/internal/store"
	"github.com/nulzo/prism-console/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises repo. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) store.Repository) {
	t.Run("providers", func(t *testing.T) { testProviders(t, newRepo(t)) })
	t.Run("provider models", func(t *testing.T) { testProviderModels(t, newRepo(t)) })
	t.Run("rules", func(t *testing.T) { testRules(t, newRepo(t)) })
	t.Run("rule routing settings", func(t *testing.T) { testRuleRouting(t, newRepo(t)) })
	t.Run("guardrails", func(t *testing.T) { testGuardrails(t, newRepo(t)) })
	t.Run("transactions", func(t *testing.T) { testTx(t, newRepo(t)) })
}

func openai() *api.Provider {
	return &api.Provider{
		UUID:     "p1",
		Name:     "OpenAI",
		APIBase:  "https://api.openai.com/v1",
		APIStyle: "openai",
		Token:    "sk-test",
		Enabled:  true,
		Models:   []string{"gpt-4", "gpt-4o"},
	}
}

func testProviders(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	providers := repo.Providers()

	require.NoError(t, providers.Create(ctx, openai()))
	second := openai()
	second.UUID, second.Name = "p2", "Anthropic"
	require.NoError(t, providers.Create(ctx, second))

	err := providers.Create(ctx, openai())
	assert.True(t, errors.Is(err, store.ErrConflict), "got %v", err)

	list, err := providers.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].UUID)
	assert.Equal(t, []string{"gpt-4", "gpt-4o"}, list[0].Models)

	got, err := providers.Get(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "Anthropic", got.Name)

	require.NoError(t, providers.Delete(ctx, "p1"))
	_, err = providers.Get(ctx, "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, providers.Delete(ctx, "p1"), store.ErrNotFound)
}

func testProviderModels(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	providers := repo.Providers()
	require.NoError(t, providers.Create(ctx, openai()))

	models, err := providers.Models(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, models.Models)
	assert.NotNil(t, models.Models)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, providers.SetModels(ctx, "p1", []string{"gpt-4"}, at))
	require.NoError(t, providers.SetModels(ctx, "p1", []string{"gpt-4", "o3"}, at))

	models, err = providers.Models(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4", "o3"}, models.Models)
	assert.Equal(t, "2026-01-02T03:04:05Z", models.LastUpdated)

	_, err = providers.Models(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, providers.SetModels(ctx, "missing", nil, at), store.ErrNotFound)

	// models go with their provider
	require.NoError(t, providers.Delete(ctx, "p1"))
	require.NoError(t, providers.Create(ctx, openai()))
	models, err = providers.Models(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, models.Models)
}

func sampleRule(id, scenario string) *api.Rule {
	return &api.Rule{
		UUID:         id,
		Scenario:     scenario,
		RequestModel: "tingly",
		Description:  "default route",
		Active:       true,
		Services: []api.Service{
			{Provider: "p1", Model: "gpt-4", Weight: 2, Active: true, TimeWindow: 300},
		},
	}
}

func testRules(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	rules := repo.Rules()

	require.NoError(t, rules.Create(ctx, sampleRule("r1", "openai")))
	require.NoError(t, rules.Create(ctx, sampleRule("r2", "claude_code")))
	assert.ErrorIs(t, rules.Create(ctx, sampleRule("r1", "openai")), store.ErrConflict)

	all, err := rules.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := rules.List(ctx, "claude_code")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "r2", filtered[0].UUID)

	updated := sampleRule("r1", "openai")
	updated.Services = append(updated.Services, api.Service{Provider: "p2", Model: "claude", Active: false})
	updated.Active = false
	require.NoError(t, rules.Update(ctx, updated))

	got, err := rules.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, *updated, *got)

	assert.ErrorIs(t, rules.Update(ctx, sampleRule("nope", "")), store.ErrNotFound)

	require.NoError(t, rules.Delete(ctx, "r1"))
	_, err = rules.Get(ctx, "r1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, rules.Delete(ctx, "r1"), store.ErrNotFound)
}

func testRuleRouting(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	rules := repo.Rules()

	plain := sampleRule("r1", "openai")
	require.NoError(t, rules.Create(ctx, plain))
	got, err := rules.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, got.LBTactic)
	assert.False(t, got.SmartEnabled)
	assert.Empty(t, got.SmartRouting)

	routed := sampleRule("r1", "openai")
	routed.LBTactic = api.Opaque(`{"type":"token_based","params":{"token_threshold":5000}}`)
	routed.SmartEnabled = true
	routed.SmartRouting = api.Opaque(`[{"description":"code","services":[]}]`)
	require.NoError(t, rules.Update(ctx, routed))

	got, err = rules.Get(ctx, "r1")
	require.NoError(t, err)
	assert.JSONEq(t, string(routed.LBTactic), string(got.LBTactic))
	assert.True(t, got.SmartEnabled)
	assert.JSONEq(t, string(routed.SmartRouting), string(got.SmartRouting))
}

func testGuardrails(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	guardrails := repo.Guardrails()

	rule := &api.GuardrailRule{
		ID:      "block-rm",
		Name:    "Block rm",
		Type:    "text_match",
		Enabled: true,
		Scope: api.GuardrailScope{
			Scenarios:    []string{"claude_code"},
			Directions:   []string{"response"},
			ContentTypes: []string{"command"},
		},
		Params: map[string]interface{}{"pattern": "rm -rf"},
	}
	require.NoError(t, guardrails.Create(ctx, rule))
	assert.ErrorIs(t, guardrails.Create(ctx, rule), store.ErrConflict)

	rule.Enabled = false
	require.NoError(t, guardrails.Update(ctx, rule))

	got, err := guardrails.Get(ctx, "block-rm")
	require.NoError(t, err)
	assert.Equal(t, *rule, *got)

	list, err := guardrails.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	missing := *rule
	missing.ID = "nope"
	assert.ErrorIs(t, guardrails.Update(ctx, &missing), store.ErrNotFound)
}

func testTx(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(tx store.Repository) error {
		if err := tx.Rules().Create(ctx, sampleRule("r1", "openai")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.Rules().Get(ctx, "r1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = repo.WithTx(ctx, func(tx store.Repository) error {
		return tx.Rules().Create(ctx, sampleRule("r1", "openai"))
	})
	require.NoError(t, err)

	_, err = repo.Rules().Get(ctx, "r1")
	assert.NoError(t, err)
}
