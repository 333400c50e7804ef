package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nulzo/prism-console/internal/core/domain"
	"github.com/nulzo/prism-console/internal/core/ports"
	"github.com/nulzo/prism-console/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultReconcileDelay = 3 * time.Second

// wallClock schedules work on real timers.
type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// nopNotifier drops every message.
type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

// RuleController owns the editable rule collection for one scenario. The
// server is authoritative: every load replaces the whole collection and
// every failed write schedules a reconciliation reload.
type RuleController struct {
	rules     ports.RuleStore
	providers ports.ProviderStore
	notifier  ports.Notifier
	scheduler ports.Scheduler
	logger    *zap.Logger
	delay     time.Duration

	mu          sync.RWMutex
	scenario    string
	records     []domain.RuleRecord
	providerSet []api.Provider
	resolver    *Resolver
	trackers    map[string]*DirtyTracker[domain.RuleRecord]
	expanded    map[string]bool
	manualInput map[string]bool
	closed      bool

	subMu       sync.Mutex
	subscribers map[int]func()
	nextSub     int
}

// RuleControllerOption configures a RuleController.
type RuleControllerOption func(*RuleController)

func WithNotifier(n ports.Notifier) RuleControllerOption {
	return func(c *RuleController) { c.notifier = n }
}

func WithScheduler(s ports.Scheduler) RuleControllerOption {
	return func(c *RuleController) { c.scheduler = s }
}

func WithLogger(l *zap.Logger) RuleControllerOption {
	return func(c *RuleController) { c.logger = l }
}

// WithReconcileDelay sets how long after a failed write the collection is
// reloaded.
func WithReconcileDelay(d time.Duration) RuleControllerOption {
	return func(c *RuleController) { c.delay = d }
}

func WithScenario(scenario string) RuleControllerOption {
	return func(c *RuleController) { c.scenario = scenario }
}

func NewRuleController(rules ports.RuleStore, providers ports.ProviderStore, opts ...RuleControllerOption) *RuleController {
	c := &RuleController{
		rules:       rules,
		providers:   providers,
		notifier:    nopNotifier{},
		scheduler:   wallClock{},
		logger:      zap.NewNop(),
		delay:       DefaultReconcileDelay,
		resolver:    NewResolver(nil),
		trackers:    make(map[string]*DirtyTracker[domain.RuleRecord]),
		expanded:    make(map[string]bool),
		manualInput: make(map[string]bool),
		subscribers: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Scenario returns the scenario the collection is filtered to.
func (c *RuleController) Scenario() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scenario
}

// SetScenario switches the scenario filter. The collection is cleared until
// the next Load.
func (c *RuleController) SetScenario(scenario string) {
	c.mu.Lock()
	if c.closed || c.scenario == scenario {
		c.mu.Unlock()
		return
	}
	c.scenario = scenario
	c.records = nil
	c.trackers = make(map[string]*DirtyTracker[domain.RuleRecord])
	c.manualInput = make(map[string]bool)
	c.mu.Unlock()
	c.publish()
}

// Load fetches rules and providers and replaces the local collection.
// Unsaved records are dropped. Responses arriving after Close are ignored.
func (c *RuleController) Load(ctx context.Context) ([]domain.RuleRecord, error) {
	scenario := c.Scenario()

	var (
		rules     []api.Rule
		providers []api.Provider
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rules, err = c.rules.ListRules(gctx, scenario)
		return err
	})
	g.Go(func() error {
		var err error
		providers, err = c.providers.ListProviders(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		c.logger.Warn("Failed to load rules", zap.String("scenario", scenario), zap.Error(err))
		return nil, domain.WrapRemote("load rules", err)
	}

	resolver := NewResolver(providers)
	records := make([]domain.RuleRecord, 0, len(rules))
	trackers := make(map[string]*DirtyTracker[domain.RuleRecord], len(rules))
	for _, rule := range rules {
		rec := domain.FromWire(rule, resolver.Normalize)
		tr := &DirtyTracker[domain.RuleRecord]{}
		tr.OpenWith(rec)
		trackers[rec.ID.String()] = tr
		records = append(records, rec)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("Dropping load response after close")
		return nil, nil
	}
	if c.scenario != scenario {
		// the filter changed while the request was in flight
		c.mu.Unlock()
		return nil, nil
	}
	c.records = records
	c.providerSet = providers
	c.resolver = resolver
	c.trackers = trackers
	c.manualInput = make(map[string]bool)
	out := cloneRecords(records)
	c.mu.Unlock()

	c.logger.Debug("Rules loaded", zap.String("scenario", scenario), zap.Int("rules_count", len(records)))
	c.publish()
	return out, nil
}

// Records returns a copy of the collection in display order.
func (c *RuleController) Records() []domain.RuleRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneRecords(c.records)
}

// Record returns one record by its current identifier.
func (c *RuleController) Record(id string) (domain.RuleRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.indexOf(id)
	if i < 0 {
		return domain.RuleRecord{}, false
	}
	return c.records[i].Clone(), true
}

// Providers returns the provider list from the last load.
func (c *RuleController) Providers() []api.Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]api.Provider(nil), c.providerSet...)
}

// Resolver returns the resolver built from the last provider load.
func (c *RuleController) Resolver() *Resolver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolver
}

// DisplayProvider renders a provider reference, falling back to the raw id
// when the provider no longer exists.
func (c *RuleController) DisplayProvider(providerID string) string {
	return c.Resolver().DisplayName(providerID)
}

// AddLocal appends a new unsaved record. No request is made.
func (c *RuleController) AddLocal() domain.RuleRecord {
	c.mu.Lock()
	rec := domain.NewRecord(c.scenario)
	c.records = append(c.records, rec)
	c.expanded[rec.ID.String()] = true
	c.mu.Unlock()

	c.publish()
	return rec.Clone()
}

// AddService appends an empty service entry to a record.
func (c *RuleController) AddService(recordID string) (domain.ServiceEntry, error) {
	entry := domain.NewServiceEntry()
	err := c.mutate(recordID, func(r domain.RuleRecord) (domain.RuleRecord, error) {
		return domain.WithService(r, entry), nil
	})
	if err != nil {
		return domain.ServiceEntry{}, err
	}
	return entry, nil
}

// RemoveService drops a service entry from a record.
func (c *RuleController) RemoveService(recordID, serviceID string) error {
	err := c.mutate(recordID, func(r domain.RuleRecord) (domain.RuleRecord, error) {
		return domain.WithoutService(r, serviceID)
	})
	if err == nil {
		c.mu.Lock()
		delete(c.manualInput, serviceID)
		c.mu.Unlock()
	}
	return err
}

// UpdateService sets one field of a service entry. Setting the provider
// clears the model in the same update.
func (c *RuleController) UpdateService(recordID, serviceID string, field domain.ServiceField, value interface{}) error {
	return c.mutate(recordID, func(r domain.RuleRecord) (domain.RuleRecord, error) {
		return domain.WithServiceField(r, serviceID, field, value)
	})
}

// UpdateRule sets one rule-level field.
func (c *RuleController) UpdateRule(recordID string, field domain.RuleField, value interface{}) error {
	return c.mutate(recordID, func(r domain.RuleRecord) (domain.RuleRecord, error) {
		return domain.WithRuleField(r, field, value)
	})
}

// Save validates the record and creates or updates it on the server. On
// success the collection is reloaded. On failure the error is reported and
// a reload is scheduled after the reconcile delay; the write is not retried.
func (c *RuleController) Save(ctx context.Context, recordID string) error {
	rec, ok := c.Record(recordID)
	if !ok {
		return fmt.Errorf("save rule %s: %w", recordID, domain.ErrRecordNotFound)
	}

	if err := domain.Validate(rec); err != nil {
		c.notifier.Error(err.Error())
		return err
	}

	wire := rec.ToWire()
	var (
		savedID = rec.ID.String()
		err     error
	)
	if rec.ID.IsSaved() {
		err = c.rules.UpdateRule(ctx, savedID, wire)
	} else {
		savedID, err = c.rules.CreateRule(ctx, rec.ID.String(), wire)
		if err == nil && savedID == "" {
			savedID = rec.ID.String()
		}
	}
	if err != nil {
		c.failedWrite("Failed to save rule", "save", recordID, err)
		return domain.WrapRemote("save rule", err)
	}

	c.logger.Info("Rule saved", zap.String("rule", savedID), zap.Bool("created", !rec.ID.IsSaved()))
	c.confirmSaved(recordID, savedID, rec)
	c.notifier.Success("Rule saved")

	if _, err := c.Load(ctx); err != nil {
		c.notifier.Error(domain.UserMessage("Failed to reload rules", err))
	}
	return nil
}

// Delete removes a record. Records that were never saved are removed
// locally; saved records are deleted on the server and the collection is
// reloaded.
func (c *RuleController) Delete(ctx context.Context, recordID string) error {
	rec, ok := c.Record(recordID)
	if !ok {
		return fmt.Errorf("delete rule %s: %w", recordID, domain.ErrRecordNotFound)
	}

	if !rec.ID.IsSaved() {
		c.mu.Lock()
		if i := c.indexOf(recordID); i >= 0 {
			c.records = append(c.records[:i:i], c.records[i+1:]...)
		}
		delete(c.expanded, recordID)
		c.mu.Unlock()
		c.publish()
		return nil
	}

	if err := c.rules.DeleteRule(ctx, recordID); err != nil {
		c.failedWrite("Failed to delete rule", "delete", recordID, err)
		return domain.WrapRemote("delete rule", err)
	}

	c.logger.Info("Rule deleted", zap.String("rule", recordID))
	c.notifier.Success("Rule deleted")
	if _, err := c.Load(ctx); err != nil {
		c.notifier.Error(domain.UserMessage("Failed to reload rules", err))
	}
	return nil
}

// IsDirty reports unsaved changes on a record. Unsaved records are always
// dirty.
func (c *RuleController) IsDirty(recordID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexOf(recordID)
	if i < 0 {
		return false
	}
	rec := c.records[i]
	if !rec.ID.IsSaved() {
		return true
	}
	tr, ok := c.trackers[recordID]
	if !ok {
		return true
	}
	return tr.IsDirty(rec)
}

// HasUnsavedChanges reports whether any record is dirty.
func (c *RuleController) HasUnsavedChanges() bool {
	for _, rec := range c.Records() {
		if c.IsDirty(rec.ID.String()) {
			return true
		}
	}
	return false
}

// SetExpanded toggles whether a record is shown expanded.
func (c *RuleController) SetExpanded(recordID string, expanded bool) {
	c.mu.Lock()
	if expanded {
		c.expanded[recordID] = true
	} else {
		delete(c.expanded, recordID)
	}
	c.mu.Unlock()
	c.publish()
}

func (c *RuleController) IsExpanded(recordID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expanded[recordID]
}

// ExpandFromQuery expands every record named in a comma separated list,
// as carried by an "expand" deep link parameter.
func (c *RuleController) ExpandFromQuery(query string) {
	c.mu.Lock()
	for _, id := range strings.Split(query, ",") {
		if id = strings.TrimSpace(id); id != "" {
			c.expanded[id] = true
		}
	}
	c.mu.Unlock()
	c.publish()
}

// SetManualInput toggles free-text model entry for one service entry. This
// is view state and never reaches the server.
func (c *RuleController) SetManualInput(serviceID string, manual bool) {
	c.mu.Lock()
	if manual {
		c.manualInput[serviceID] = true
	} else {
		delete(c.manualInput, serviceID)
	}
	c.mu.Unlock()
	c.publish()
}

func (c *RuleController) ManualInput(serviceID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manualInput[serviceID]
}

// Subscribe registers fn to run after every state change. The returned
// func removes it.
func (c *RuleController) Subscribe(fn func()) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subscribers, id)
	}
}

// Close detaches the controller from its view. In-flight requests are not
// cancelled but their responses no longer change state, and scheduled
// reloads become no-ops.
func (c *RuleController) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.subMu.Lock()
	c.subscribers = make(map[int]func())
	c.subMu.Unlock()
}

func (c *RuleController) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *RuleController) failedWrite(fallback, op, recordID string, err error) {
	c.logger.Warn("Rule write failed",
		zap.String("op", op),
		zap.String("rule", recordID),
		zap.Error(err),
	)
	c.notifier.Error(domain.UserMessage(fallback, err))
	c.scheduleReconcile()
}

// scheduleReconcile queues a full reload. It is never cancelled; a reload
// after a later successful write is harmless.
func (c *RuleController) scheduleReconcile() {
	if c.isClosed() {
		return
	}
	c.scheduler.AfterFunc(c.delay, func() {
		if c.isClosed() {
			return
		}
		c.logger.Info("Reconciling rules with server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := c.Load(ctx); err != nil {
			c.notifier.Error(domain.UserMessage("Failed to reload rules", err))
		}
	})
}

// confirmSaved marks the record clean and swaps a pending id for the one
// the server confirmed, so the record stays consistent even if the
// follow-up reload fails.
func (c *RuleController) confirmSaved(recordID, savedID string, sent domain.RuleRecord) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	sent.ID = domain.Saved(savedID)
	if i := c.indexOf(recordID); i >= 0 {
		c.records[i].ID = sent.ID
	}
	if recordID != savedID && c.expanded[recordID] {
		delete(c.expanded, recordID)
		c.expanded[savedID] = true
	}
	tr := &DirtyTracker[domain.RuleRecord]{}
	tr.OpenWith(sent)
	c.trackers[savedID] = tr
	c.mu.Unlock()
	c.publish()
}

func (c *RuleController) mutate(recordID string, fn func(domain.RuleRecord) (domain.RuleRecord, error)) error {
	c.mu.Lock()
	i := c.indexOf(recordID)
	if i < 0 {
		c.mu.Unlock()
		return fmt.Errorf("rule %s: %w", recordID, domain.ErrRecordNotFound)
	}
	next, err := fn(c.records[i])
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.records[i] = next
	c.mu.Unlock()

	c.publish()
	return nil
}

// indexOf must be called with mu held.
func (c *RuleController) indexOf(recordID string) int {
	for i, r := range c.records {
		if r.ID.String() == recordID {
			return i
		}
	}
	return -1
}

func (c *RuleController) publish() {
	c.subMu.Lock()
	subs := make([]func(), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func cloneRecords(in []domain.RuleRecord) []domain.RuleRecord {
	out := make([]domain.RuleRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
