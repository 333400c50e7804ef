package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nulzo/prism-console/internal/store"
	"github.com/nulzo/prism-console/pkg/api"
)

type state struct {
	providers  []api.Provider
	models     map[string]api.ProviderModels
	rules      []api.Rule
	guardrails []api.GuardrailRule
}

func (s state) clone() state {
	out := state{
		providers:  make([]api.Provider, len(s.providers)),
		models:     make(map[string]api.ProviderModels, len(s.models)),
		rules:      make([]api.Rule, len(s.rules)),
		guardrails: make([]api.GuardrailRule, len(s.guardrails)),
	}
	for i, p := range s.providers {
		out.providers[i] = copyProvider(p)
	}
	for k, v := range s.models {
		out.models[k] = api.ProviderModels{Models: append([]string{}, v.Models...), LastUpdated: v.LastUpdated}
	}
	for i, r := range s.rules {
		out.rules[i] = copyRule(r)
	}
	for i, g := range s.guardrails {
		out.guardrails[i] = copyGuardrail(g)
	}
	return out
}

// Repository keeps everything in process memory. It backs the dev server
// when no database is configured and is used by tests.
type Repository struct {
	mu *sync.Mutex
	st *state
	// inTx is set on the handle passed to WithTx callbacks, whose caller
	// already holds mu.
	inTx bool
}

var _ store.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{
		mu: &sync.Mutex{},
		st: &state{models: make(map[string]api.ProviderModels)},
	}
}

func (r *Repository) Providers() store.ProviderRepository { return &providerRepo{r} }
func (r *Repository) Rules() store.RuleRepository         { return &ruleRepo{r} }
func (r *Repository) Guardrails() store.GuardrailRepository {
	return &guardrailRepo{r}
}

// WithTx runs fn against the same data and restores the previous state if
// fn fails.
func (r *Repository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	backup := r.st.clone()
	tx := &Repository{mu: r.mu, st: r.st, inTx: true}
	if err := fn(tx); err != nil {
		*r.st = backup
		return err
	}
	return nil
}

func (r *Repository) Close() error { return nil }

func (r *Repository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

type providerRepo struct{ r *Repository }

func (p *providerRepo) List(ctx context.Context) ([]api.Provider, error) {
	defer p.r.lock()()
	out := make([]api.Provider, len(p.r.st.providers))
	for i, prov := range p.r.st.providers {
		out[i] = copyProvider(prov)
	}
	return out, nil
}

func (p *providerRepo) Get(ctx context.Context, uuid string) (*api.Provider, error) {
	defer p.r.lock()()
	for _, prov := range p.r.st.providers {
		if prov.UUID == uuid {
			out := copyProvider(prov)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (p *providerRepo) Create(ctx context.Context, prov *api.Provider) error {
	defer p.r.lock()()
	for _, existing := range p.r.st.providers {
		if existing.UUID == prov.UUID {
			return store.ErrConflict
		}
	}
	p.r.st.providers = append(p.r.st.providers, copyProvider(*prov))
	return nil
}

func (p *providerRepo) Delete(ctx context.Context, uuid string) error {
	defer p.r.lock()()
	for i, prov := range p.r.st.providers {
		if prov.UUID == uuid {
			p.r.st.providers = append(p.r.st.providers[:i], p.r.st.providers[i+1:]...)
			delete(p.r.st.models, uuid)
			return nil
		}
	}
	return store.ErrNotFound
}

func (p *providerRepo) Models(ctx context.Context, uuid string) (*api.ProviderModels, error) {
	defer p.r.lock()()
	if !p.r.hasProvider(uuid) {
		return nil, store.ErrNotFound
	}
	m, ok := p.r.st.models[uuid]
	if !ok {
		return &api.ProviderModels{Models: []string{}}, nil
	}
	return &api.ProviderModels{Models: append([]string{}, m.Models...), LastUpdated: m.LastUpdated}, nil
}

func (p *providerRepo) SetModels(ctx context.Context, uuid string, models []string, updated time.Time) error {
	defer p.r.lock()()
	if !p.r.hasProvider(uuid) {
		return store.ErrNotFound
	}
	p.r.st.models[uuid] = api.ProviderModels{
		Models:      append([]string{}, models...),
		LastUpdated: updated.UTC().Format(time.RFC3339),
	}
	return nil
}

func (r *Repository) hasProvider(uuid string) bool {
	for _, prov := range r.st.providers {
		if prov.UUID == uuid {
			return true
		}
	}
	return false
}

type ruleRepo struct{ r *Repository }

func (rr *ruleRepo) List(ctx context.Context, scenario string) ([]api.Rule, error) {
	defer rr.r.lock()()
	out := make([]api.Rule, 0, len(rr.r.st.rules))
	for _, rule := range rr.r.st.rules {
		if scenario != "" && rule.Scenario != scenario {
			continue
		}
		out = append(out, copyRule(rule))
	}
	return out, nil
}

func (rr *ruleRepo) Get(ctx context.Context, uuid string) (*api.Rule, error) {
	defer rr.r.lock()()
	for _, rule := range rr.r.st.rules {
		if rule.UUID == uuid {
			out := copyRule(rule)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (rr *ruleRepo) Create(ctx context.Context, rule *api.Rule) error {
	defer rr.r.lock()()
	for _, existing := range rr.r.st.rules {
		if existing.UUID == rule.UUID {
			return store.ErrConflict
		}
	}
	rr.r.st.rules = append(rr.r.st.rules, copyRule(*rule))
	return nil
}

func (rr *ruleRepo) Update(ctx context.Context, rule *api.Rule) error {
	defer rr.r.lock()()
	for i, existing := range rr.r.st.rules {
		if existing.UUID == rule.UUID {
			rr.r.st.rules[i] = copyRule(*rule)
			return nil
		}
	}
	return store.ErrNotFound
}

func (rr *ruleRepo) Delete(ctx context.Context, uuid string) error {
	defer rr.r.lock()()
	for i, existing := range rr.r.st.rules {
		if existing.UUID == uuid {
			rr.r.st.rules = append(rr.r.st.rules[:i], rr.r.st.rules[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

type guardrailRepo struct{ r *Repository }

func (g *guardrailRepo) List(ctx context.Context) ([]api.GuardrailRule, error) {
	defer g.r.lock()()
	out := make([]api.GuardrailRule, len(g.r.st.guardrails))
	for i, rule := range g.r.st.guardrails {
		out[i] = copyGuardrail(rule)
	}
	return out, nil
}

func (g *guardrailRepo) Get(ctx context.Context, id string) (*api.GuardrailRule, error) {
	defer g.r.lock()()
	for _, rule := range g.r.st.guardrails {
		if rule.ID == id {
			out := copyGuardrail(rule)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (g *guardrailRepo) Create(ctx context.Context, rule *api.GuardrailRule) error {
	defer g.r.lock()()
	for _, existing := range g.r.st.guardrails {
		if existing.ID == rule.ID {
			return store.ErrConflict
		}
	}
	g.r.st.guardrails = append(g.r.st.guardrails, copyGuardrail(*rule))
	return nil
}

func (g *guardrailRepo) Update(ctx context.Context, rule *api.GuardrailRule) error {
	defer g.r.lock()()
	for i, existing := range g.r.st.guardrails {
		if existing.ID == rule.ID {
			g.r.st.guardrails[i] = copyGuardrail(*rule)
			return nil
		}
	}
	return store.ErrNotFound
}

func copyProvider(p api.Provider) api.Provider {
	p.Models = append([]string(nil), p.Models...)
	return p
}

func copyRule(r api.Rule) api.Rule {
	r.Services = append([]api.Service{}, r.Services...)
	r.LBTactic = append(api.Opaque(nil), r.LBTactic...)
	r.SmartRouting = append(api.Opaque(nil), r.SmartRouting...)
	return r
}

func copyGuardrail(g api.GuardrailRule) api.GuardrailRule {
	g.Scope.Scenarios = append([]string(nil), g.Scope.Scenarios...)
	g.Scope.Models = append([]string(nil), g.Scope.Models...)
	g.Scope.Directions = append([]string(nil), g.Scope.Directions...)
	g.Scope.Tags = append([]string(nil), g.Scope.Tags...)
	g.Scope.ContentTypes = append([]string(nil), g.Scope.ContentTypes...)
	if g.Params != nil {
		params := make(map[string]interface{}, len(g.Params))
		for k, v := range g.Params {
			params[k] = v
		}
		g.Params = params
	}
	return g
}
