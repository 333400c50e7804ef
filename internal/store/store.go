package store

import (
	"context"
	"errors"
	"time"

	"github.com/nulzo/prism-console/pkg/api"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Repository is the main contract for the data layer.
type Repository interface {
	Providers() ProviderRepository
	Rules() RuleRepository
	Guardrails() GuardrailRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type ProviderRepository interface {
	// List returns all providers in creation order.
	List(ctx context.Context) ([]api.Provider, error)
	Get(ctx context.Context, uuid string) (*api.Provider, error)
	// Create inserts a provider; ErrConflict if the uuid is taken.
	Create(ctx context.Context, p *api.Provider) error
	// Delete removes the provider and its cached models. Rules that
	// reference it are left alone.
	Delete(ctx context.Context, uuid string) error
	// Models returns the cached model list. A provider that was never
	// probed yields an empty list.
	Models(ctx context.Context, uuid string) (*api.ProviderModels, error)
	// SetModels replaces the cached model list.
	SetModels(ctx context.Context, uuid string, models []string, updated time.Time) error
}

type RuleRepository interface {
	// List returns rules, filtered to scenario when not empty.
	List(ctx context.Context, scenario string) ([]api.Rule, error)
	Get(ctx context.Context, uuid string) (*api.Rule, error)
	Create(ctx context.Context, rule *api.Rule) error
	Update(ctx context.Context, rule *api.Rule) error
	Delete(ctx context.Context, uuid string) error
}

type GuardrailRepository interface {
	List(ctx context.Context) ([]api.GuardrailRule, error)
	Get(ctx context.Context, id string) (*api.GuardrailRule, error)
	Create(ctx context.Context, rule *api.GuardrailRule) error
	Update(ctx context.Context, rule *api.GuardrailRule) error
}
