package api

// Rule maps a virtual request model to one or more upstream services.
type Rule struct {
	UUID          string    `json:"uuid" yaml:"uuid"`
	Scenario      string    `json:"scenario" yaml:"scenario"` // openai, anthropic, claude_code
	RequestModel  string    `json:"request_model" yaml:"request_model"`
	ResponseModel string    `json:"response_model" yaml:"response_model"`
	Description   string    `json:"description" yaml:"description"`
	Services      []Service `json:"services" yaml:"services"`
	Active        bool      `json:"active" yaml:"active"`

	// Server-side routing settings. The console never edits them but must
	// send them back on update, since the server replaces the whole rule.
	LBTactic     Opaque `json:"lb_tactic,omitempty" yaml:"lb_tactic,omitempty"`
	SmartEnabled bool   `json:"smart_enabled" yaml:"smart_enabled"`
	SmartRouting Opaque `json:"smart_routing,omitempty" yaml:"smart_routing,omitempty"`
}

// Service is one weighted upstream target of a rule. Weight and TimeWindow
// are opaque to the console and interpreted by the server-side balancer.
type Service struct {
	Provider   string `json:"provider" yaml:"provider"` // provider uuid
	Model      string `json:"model" yaml:"model"`
	Weight     int    `json:"weight" yaml:"weight"`
	Active     bool   `json:"active" yaml:"active"`
	TimeWindow int    `json:"time_window" yaml:"time_window"` // seconds
}
