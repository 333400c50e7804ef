package services

import (
	"testing"

	"github.com/nulzo/prism-console/pkg/api"
	"github.com/stretchr/testify/assert"
)

func TestResolver_Lookups(t *testing.T) {
	r := NewResolver([]api.Provider{
		{UUID: "p1", Name: "OpenAI"},
		{UUID: "p2", Name: "Anthropic"},
		{UUID: "p3", Name: "OpenAI"},
	})

	name, ok := r.IDToName("p2")
	assert.True(t, ok)
	assert.Equal(t, "Anthropic", name)

	id, ok := r.NameToID("OpenAI")
	assert.True(t, ok)
	assert.Equal(t, "p1", id, "first provider wins a name collision")

	name, ok = r.IDToName("p3")
	assert.True(t, ok)
	assert.Equal(t, "OpenAI", name)
}

func TestResolver_DeletedProviderFallsBackToID(t *testing.T) {
	r := NewResolver([]api.Provider{{UUID: "p2", Name: "Anthropic"}})

	_, ok := r.IDToName("p1")
	assert.False(t, ok)
	assert.Equal(t, "p1", r.DisplayName("p1"))

	var nilResolver *Resolver
	assert.Equal(t, "p1", nilResolver.DisplayName("p1"))
}

func TestResolver_Normalize(t *testing.T) {
	r := NewResolver([]api.Provider{{UUID: "p1", Name: "OpenAI"}})

	assert.Equal(t, "p1", r.Normalize("p1"))
	assert.Equal(t, "p1", r.Normalize("OpenAI"))
	assert.Equal(t, "ghost", r.Normalize("ghost"))
}

func TestResolver_RebuildAfterRename(t *testing.T) {
	before := NewResolver([]api.Provider{{UUID: "p1", Name: "OpenAI"}})
	after := NewResolver([]api.Provider{{UUID: "p1", Name: "OpenAI EU"}})

	assert.Equal(t, "OpenAI", before.DisplayName("p1"))
	assert.Equal(t, "OpenAI EU", after.DisplayName("p1"))

	_, ok := after.NameToID("OpenAI")
	assert.False(t, ok)
}
