package services

import (
	"context"
	"sync"
	"time"

	"github.com/nulzo/prism-console/pkg/api"
	"github.com/stretchr/testify/mock"
)

type MockRuleStore struct {
	mock.Mock
}

func (m *MockRuleStore) ListRules(ctx context.Context, scenario string) ([]api.Rule, error) {
	args := m.Called(ctx, scenario)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.Rule), args.Error(1)
}

func (m *MockRuleStore) CreateRule(ctx context.Context, initialID string, rule api.Rule) (string, error) {
	args := m.Called(ctx, initialID, rule)
	return args.String(0), args.Error(1)
}

func (m *MockRuleStore) UpdateRule(ctx context.Context, id string, rule api.Rule) error {
	args := m.Called(ctx, id, rule)
	return args.Error(0)
}

func (m *MockRuleStore) DeleteRule(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockProviderStore struct {
	mock.Mock
}

func (m *MockProviderStore) ListProviders(ctx context.Context) ([]api.Provider, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.Provider), args.Error(1)
}

type MockModelSource struct {
	mock.Mock
}

func (m *MockModelSource) ProviderModels(ctx context.Context, providerID string) ([]string, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockModelSource) RefreshProviderModels(ctx context.Context, providerID string) ([]string, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockGuardrailStore struct {
	mock.Mock
}

func (m *MockGuardrailStore) ListGuardrailRules(ctx context.Context) ([]api.GuardrailRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.GuardrailRule), args.Error(1)
}

func (m *MockGuardrailStore) CreateGuardrailRule(ctx context.Context, rule api.GuardrailRule) error {
	return m.Called(ctx, rule).Error(0)
}

func (m *MockGuardrailStore) UpdateGuardrailRule(ctx context.Context, id string, rule api.GuardrailRule) error {
	return m.Called(ctx, id, rule).Error(0)
}

// recordingNotifier keeps every message shown to the operator.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

// manualScheduler queues work until the test fires it.
type manualScheduler struct {
	mu      sync.Mutex
	pending []scheduled
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, scheduled{delay: d, fn: f})
}

func (s *manualScheduler) Pending() []scheduled {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scheduled(nil), s.pending...)
}

// FireAll runs every queued task in order.
func (s *manualScheduler) FireAll() {
	s.mu.Lock()
	tasks := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, task := range tasks {
		task.fn()
	}
}
