package services

import "github.com/nulzo/prism-console/pkg/api"

// Resolver maps provider uuids to display names and back. It is derived from
// one provider list and never patched; build a new one after every reload.
type Resolver struct {
	byID   map[string]string
	byName map[string]string
}

// NewResolver indexes providers. When two providers share a name, the first
// one in list order wins the name lookup.
func NewResolver(providers []api.Provider) *Resolver {
	r := &Resolver{
		byID:   make(map[string]string, len(providers)),
		byName: make(map[string]string, len(providers)),
	}
	for _, p := range providers {
		if p.UUID == "" {
			continue
		}
		r.byID[p.UUID] = p.Name
		if _, taken := r.byName[p.Name]; !taken && p.Name != "" {
			r.byName[p.Name] = p.UUID
		}
	}
	return r
}

// IDToName returns the display name for a provider uuid.
func (r *Resolver) IDToName(id string) (string, bool) {
	if r == nil {
		return "", false
	}
	name, ok := r.byID[id]
	return name, ok
}

// NameToID returns the uuid for a display name.
func (r *Resolver) NameToID(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	id, ok := r.byName[name]
	return id, ok
}

// DisplayName returns the provider's name, or the raw id when the provider
// no longer exists.
func (r *Resolver) DisplayName(id string) string {
	if name, ok := r.IDToName(id); ok && name != "" {
		return name
	}
	return id
}

// Normalize turns a legacy name reference into a uuid. Known ids and
// unresolvable references are returned unchanged.
func (r *Resolver) Normalize(ref string) string {
	if _, ok := r.IDToName(ref); ok {
		return ref
	}
	if id, ok := r.NameToID(ref); ok {
		return id
	}
	return ref
}
