package api

// Provider is an upstream credential as reported by the admin API. UUID is the
// only stable key; Name is for display and may change or collide.
type Provider struct {
	UUID          string   `json:"uuid" db:"uuid"`
	Name          string   `json:"name" db:"name"`
	APIBase       string   `json:"api_base" db:"api_base"`
	APIStyle      string   `json:"api_style" db:"api_style"` // "openai" or "anthropic"
	Token         string   `json:"token,omitempty" db:"token"`
	NoKeyRequired bool     `json:"no_key_required" db:"no_key_required"`
	Enabled       bool     `json:"enabled" db:"enabled"`
	ProxyURL      string   `json:"proxy_url,omitempty" db:"proxy_url"`
	Models        []string `json:"models,omitempty" db:"-"` // configured catalogue, probed on refresh
}

// ProviderModels is the payload of the provider-models endpoints.
type ProviderModels struct {
	Models      []string `json:"models"`
	LastUpdated string   `json:"last_updated,omitempty"`
}

// Status describes the admin server.
type Status struct {
	Version          string `json:"version"`
	ServerRunning    bool   `json:"server_running"`
	ProvidersTotal   int    `json:"providers_total"`
	ProvidersEnabled int    `json:"providers_enabled"`
}
