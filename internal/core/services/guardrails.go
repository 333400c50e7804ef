package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/nulzo/prism-console/internal/core/domain"
	"github.com/nulzo/prism-console/internal/core/ports"
	"github.com/nulzo/prism-console/pkg/api"
	"go.uber.org/zap"
)

// GuardrailEditor edits one guardrail rule at a time on top of the list
// held by the server.
type GuardrailEditor struct {
	store    ports.GuardrailStore
	notifier ports.Notifier
	logger   *zap.Logger

	mu      sync.Mutex
	rules   []api.GuardrailRule
	draft   *api.GuardrailRule
	isNew   bool
	tracker DirtyTracker[api.GuardrailRule]
}

func NewGuardrailEditor(store ports.GuardrailStore, notifier ports.Notifier, logger *zap.Logger) *GuardrailEditor {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardrailEditor{store: store, notifier: notifier, logger: logger}
}

// Load replaces the rule list with the server's.
func (e *GuardrailEditor) Load(ctx context.Context) ([]api.GuardrailRule, error) {
	rules, err := e.store.ListGuardrailRules(ctx)
	if err != nil {
		e.logger.Warn("Failed to load guardrail rules", zap.Error(err))
		return nil, domain.WrapRemote("load guardrail rules", err)
	}

	e.mu.Lock()
	e.rules = make([]api.GuardrailRule, len(rules))
	for i, r := range rules {
		e.rules[i] = cloneGuardrail(r)
	}
	out := e.listLocked()
	e.mu.Unlock()
	return out, nil
}

func (e *GuardrailEditor) Rules() []api.GuardrailRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listLocked()
}

// Open starts editing an existing rule.
func (e *GuardrailEditor) Open(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("guardrail rule %s: %w", id, domain.ErrRecordNotFound)
	}
	e.openLocked(cloneGuardrail(e.rules[i]), false)
	return nil
}

// OpenNew starts editing a blank, enabled rule.
func (e *GuardrailEditor) OpenNew() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.openLocked(api.GuardrailRule{Enabled: true, Params: map[string]interface{}{}}, true)
}

// Duplicate opens a copy of an existing rule as a new rule. The copy gets
// an unused "<id>-copy" identifier.
func (e *GuardrailEditor) Duplicate(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("guardrail rule %s: %w", id, domain.ErrRecordNotFound)
	}
	dup := cloneGuardrail(e.rules[i])
	dup.ID = e.freeIDLocked(id + "-copy")
	dup.Name = dup.Name + " (copy)"
	e.openLocked(dup, true)
	return nil
}

// Draft returns the rule being edited.
func (e *GuardrailEditor) Draft() (api.GuardrailRule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return api.GuardrailRule{}, false
	}
	return cloneGuardrail(*e.draft), true
}

// IsNew reports whether saving the draft creates a rule.
func (e *GuardrailEditor) IsNew() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isNew
}

// Edit applies fn to a copy of the draft and keeps the result.
func (e *GuardrailEditor) Edit(fn func(rule *api.GuardrailRule)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return fmt.Errorf("no guardrail rule open")
	}
	next := cloneGuardrail(*e.draft)
	fn(&next)
	e.draft = &next
	return nil
}

func (e *GuardrailEditor) IsDirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return false
	}
	return e.tracker.IsDirty(*e.draft)
}

// Save persists the draft. On success the draft becomes clean and the list
// is reloaded; on failure the draft stays dirty.
func (e *GuardrailEditor) Save(ctx context.Context) error {
	draft, ok := e.Draft()
	if !ok {
		return fmt.Errorf("no guardrail rule open")
	}
	return e.save(ctx, draft)
}

func (e *GuardrailEditor) save(ctx context.Context, draft api.GuardrailRule) error {
	if err := domain.ValidateGuardrail(draft); err != nil {
		e.notifier.Error(err.Error())
		return err
	}

	e.mu.Lock()
	isNew := e.isNew
	e.mu.Unlock()

	var err error
	if isNew {
		err = e.store.CreateGuardrailRule(ctx, draft)
	} else {
		err = e.store.UpdateGuardrailRule(ctx, draft.ID, draft)
	}
	if err != nil {
		e.logger.Warn("Failed to save guardrail rule", zap.String("rule", draft.ID), zap.Error(err))
		e.notifier.Error(domain.UserMessage("Failed to save guardrail rule", err))
		return domain.WrapRemote("save guardrail rule", err)
	}

	e.mu.Lock()
	e.isNew = false
	e.tracker.MarkClean(draft)
	e.mu.Unlock()

	e.logger.Info("Guardrail rule saved", zap.String("rule", draft.ID), zap.Bool("created", isNew))
	e.notifier.Success("Guardrail rule saved")

	if _, err := e.Load(ctx); err != nil {
		e.notifier.Error(domain.UserMessage("Failed to reload guardrail rules", err))
	}
	return nil
}

// Close closes the editor, routing a dirty draft through prompt. It
// reports whether the editor actually closed.
func (e *GuardrailEditor) Close(ctx context.Context, prompt func() CloseChoice) (bool, error) {
	draft, ok := e.Draft()
	if !ok {
		return true, nil
	}

	e.mu.Lock()
	tracker := e.tracker
	e.mu.Unlock()

	closed, err := tracker.RequestClose(ctx, draft, prompt, e.save)
	if closed {
		e.mu.Lock()
		e.draft = nil
		e.isNew = false
		e.mu.Unlock()
	}
	return closed, err
}

func (e *GuardrailEditor) openLocked(rule api.GuardrailRule, isNew bool) {
	e.draft = &rule
	e.isNew = isNew
	e.tracker = DirtyTracker[api.GuardrailRule]{}
	e.tracker.OpenWith(rule)
}

func (e *GuardrailEditor) indexLocked(id string) int {
	for i, r := range e.rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (e *GuardrailEditor) freeIDLocked(base string) string {
	id := base
	for n := 2; e.indexLocked(id) >= 0; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

func (e *GuardrailEditor) listLocked() []api.GuardrailRule {
	out := make([]api.GuardrailRule, len(e.rules))
	for i, r := range e.rules {
		out[i] = cloneGuardrail(r)
	}
	return out
}

func cloneGuardrail(r api.GuardrailRule) api.GuardrailRule {
	out := r
	out.Scope = api.GuardrailScope{
		Scenarios:    append([]string(nil), r.Scope.Scenarios...),
		Models:       append([]string(nil), r.Scope.Models...),
		Directions:   append([]string(nil), r.Scope.Directions...),
		Tags:         append([]string(nil), r.Scope.Tags...),
		ContentTypes: append([]string(nil), r.Scope.ContentTypes...),
	}
	if r.Params != nil {
		out.Params = make(map[string]interface{}, len(r.Params))
		for k, v := range r.Params {
			out.Params[k] = v
		}
	}
	return out
}
