package domain

import (
	"github.com/nulzo/prism-console/pkg/api"
)

// ServiceEntry is the edit form of one upstream service within a rule.
// LocalID is regenerated on every load and never persisted.
type ServiceEntry struct {
	LocalID    string `json:"-"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Weight     int    `json:"weight"`
	Active     bool   `json:"active"`
	TimeWindow int    `json:"time_window"`
}

// ServerFields are rule settings owned by the server. They are carried
// from load to save unchanged and have no editor.
type ServerFields struct {
	LBTactic     api.Opaque `json:"lb_tactic,omitempty"`
	SmartEnabled bool       `json:"smart_enabled"`
	SmartRouting api.Opaque `json:"smart_routing,omitempty"`
}

// RuleRecord is the edit form of one routing rule.
type RuleRecord struct {
	ID            RecordID       `json:"uuid"`
	Scenario      string         `json:"scenario"`
	RequestModel  string         `json:"request_model" validate:"required"`
	ResponseModel string         `json:"response_model"`
	Description   string         `json:"description"`
	Active        bool           `json:"active"`
	Services      []ServiceEntry `json:"services" validate:"dive"`
	Server        ServerFields   `json:"server"`
}

// NewServiceEntry returns an unselected entry with editor defaults.
func NewServiceEntry() ServiceEntry {
	return ServiceEntry{
		LocalID: newLocalID(),
		Active:  true,
	}
}

// NewRecord returns an unsaved rule holding one empty service entry.
func NewRecord(scenario string) RuleRecord {
	return RuleRecord{
		ID:       NewPendingID(),
		Scenario: scenario,
		Active:   true,
		Services: []ServiceEntry{NewServiceEntry()},
	}
}

// Clone returns a deep copy so callers can mutate without sharing the
// services slice.
func (r RuleRecord) Clone() RuleRecord {
	out := r
	out.Services = append([]ServiceEntry(nil), r.Services...)
	return out
}

// ServiceIndex returns the position of the entry with the given local id.
func (r RuleRecord) ServiceIndex(localID string) int {
	for i, s := range r.Services {
		if s.LocalID == localID {
			return i
		}
	}
	return -1
}

// ProviderRefFunc maps a stored provider reference onto a provider uuid.
type ProviderRefFunc func(ref string) string

// FromWire normalizes a server rule into its edit form. Every service gets
// a fresh LocalID. normalize may be nil.
func FromWire(rule api.Rule, normalize ProviderRefFunc) RuleRecord {
	rec := RuleRecord{
		ID:            Saved(rule.UUID),
		Scenario:      rule.Scenario,
		RequestModel:  rule.RequestModel,
		ResponseModel: rule.ResponseModel,
		Description:   rule.Description,
		Active:        rule.Active,
		Services:      make([]ServiceEntry, 0, len(rule.Services)),
		Server: ServerFields{
			LBTactic:     append(api.Opaque(nil), rule.LBTactic...),
			SmartEnabled: rule.SmartEnabled,
			SmartRouting: append(api.Opaque(nil), rule.SmartRouting...),
		},
	}
	for _, s := range rule.Services {
		provider := s.Provider
		if normalize != nil && provider != "" {
			provider = normalize(provider)
		}
		rec.Services = append(rec.Services, ServiceEntry{
			LocalID:    newLocalID(),
			Provider:   provider,
			Model:      s.Model,
			Weight:     s.Weight,
			Active:     s.Active,
			TimeWindow: s.TimeWindow,
		})
	}
	return rec
}

// ToWire serializes the edit form back into the server document.
func (r RuleRecord) ToWire() api.Rule {
	services := make([]api.Service, 0, len(r.Services))
	for _, s := range r.Services {
		services = append(services, api.Service{
			Provider:   s.Provider,
			Model:      s.Model,
			Weight:     s.Weight,
			Active:     s.Active,
			TimeWindow: s.TimeWindow,
		})
	}
	return api.Rule{
		UUID:          r.ID.String(),
		Scenario:      r.Scenario,
		RequestModel:  r.RequestModel,
		ResponseModel: r.ResponseModel,
		Description:   r.Description,
		Services:      services,
		Active:        r.Active,
		LBTactic:      r.Server.LBTactic,
		SmartEnabled:  r.Server.SmartEnabled,
		SmartRouting:  r.Server.SmartRouting,
	}
}
