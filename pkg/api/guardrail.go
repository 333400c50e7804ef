package api

// GuardrailRule is a single guardrail policy entry. Params are rule-type
// specific and passed through untouched.
type GuardrailRule struct {
	ID      string                 `json:"id" validate:"required"`
	Name    string                 `json:"name" validate:"required"`
	Type    string                 `json:"type" validate:"required"`
	Enabled bool                   `json:"enabled"`
	Scope   GuardrailScope         `json:"scope"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// GuardrailScope limits when a rule is applied.
type GuardrailScope struct {
	Scenarios    []string `json:"scenarios,omitempty"`
	Models       []string `json:"models,omitempty"`
	Directions   []string `json:"directions,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	ContentTypes []string `json:"content_types,omitempty"`
}
