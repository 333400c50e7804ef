package ports

import (
	"context"

	"github.com/nulzo/prism-console/pkg/api"
)

// RuleStore is the authoritative remote store for routing rules.
type RuleStore interface {
	// ListRules returns every rule, filtered to scenario when non-empty.
	ListRules(ctx context.Context, scenario string) ([]api.Rule, error)
	// CreateRule persists a new rule. initialID is the client's temporary
	// identifier and may be honoured by the server.
	CreateRule(ctx context.Context, initialID string, rule api.Rule) (string, error)
	UpdateRule(ctx context.Context, id string, rule api.Rule) error
	DeleteRule(ctx context.Context, id string) error
}

// ProviderStore lists upstream provider credentials.
type ProviderStore interface {
	ListProviders(ctx context.Context) ([]api.Provider, error)
}

// ModelSource returns the model names known for a provider uuid.
type ModelSource interface {
	ProviderModels(ctx context.Context, providerID string) ([]string, error)
	// RefreshProviderModels triggers a live upstream probe first.
	RefreshProviderModels(ctx context.Context, providerID string) ([]string, error)
}

// GuardrailStore persists guardrail rules.
type GuardrailStore interface {
	ListGuardrailRules(ctx context.Context) ([]api.GuardrailRule, error)
	CreateGuardrailRule(ctx context.Context, rule api.GuardrailRule) error
	UpdateGuardrailRule(ctx context.Context, id string, rule api.GuardrailRule) error
}
