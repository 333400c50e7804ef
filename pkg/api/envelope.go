package api

// Response is the envelope every admin endpoint answers with. On failure
// Success is false and Error (or Message) carries the server's reason.
type Response[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// CreateRuleResult is returned by rule create and update.
type CreateRuleResult struct {
	UUID          string `json:"uuid"`
	RequestModel  string `json:"request_model"`
	ResponseModel string `json:"response_model"`
	Active        bool   `json:"active"`
}

// GuardrailRuleResult is returned by guardrail rule create and update.
type GuardrailRuleResult struct {
	RuleID string `json:"rule_id"`
}

// Reason returns the most specific failure text in the envelope.
func (r Response[T]) Reason() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

// Problem is an error a handler wants rendered as a failure envelope with
// a specific status.
type Problem struct {
	Status  int
	Message string
	// Log is recorded server side and never sent to the client
	Log error
}

func (p *Problem) Error() string {
	return p.Message
}

func NewProblem(status int, message string) *Problem {
	return &Problem{Status: status, Message: message}
}

// Failure builds the envelope for a failed call.
func Failure(message string) Response[any] {
	return Response[any]{Success: false, Error: message}
}

// OK builds the envelope for a successful call.
func OK[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}
