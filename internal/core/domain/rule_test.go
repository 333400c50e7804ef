package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nulzo/prism-console/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_EmptyRequestModel(t *testing.T) {
	rec := NewRecord("openai")

	err := Validate(rec)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "request_model")
}

func TestValidate_ProviderWithoutModel(t *testing.T) {
	rec := NewRecord("openai")
	rec.RequestModel = "gpt-x"
	rec.Services[0].Provider = "p1"

	err := Validate(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"p1"`)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "services[0].model")
}

func TestValidate_MissingID(t *testing.T) {
	rec := RuleRecord{RequestModel: "gpt-x"}

	err := Validate(rec)
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "uuid")
}

func TestValidate_OK(t *testing.T) {
	rec := NewRecord("openai")
	rec.RequestModel = "gpt-x"
	rec.Services[0].Provider = "p1"
	rec.Services[0].Model = "gpt-4"

	assert.NoError(t, Validate(rec))

	// an unselected entry is allowed
	rec = WithService(rec, NewServiceEntry())
	assert.NoError(t, Validate(rec))
}

func TestWithServiceField_ProviderResetsModel(t *testing.T) {
	rec := NewRecord("openai")
	id := rec.Services[0].LocalID
	rec.Services[0].Provider = "p1"
	rec.Services[0].Model = "gpt-4"

	out, err := WithServiceField(rec, id, FieldProvider, "p2")
	require.NoError(t, err)
	assert.Equal(t, "p2", out.Services[0].Provider)
	assert.Equal(t, "", out.Services[0].Model)

	// original untouched
	assert.Equal(t, "gpt-4", rec.Services[0].Model)

	out, err = WithServiceField(out, id, FieldProvider, "p2")
	require.NoError(t, err)
	assert.Equal(t, "", out.Services[0].Model)
}

func TestWithServiceField_Errors(t *testing.T) {
	rec := NewRecord("openai")
	id := rec.Services[0].LocalID

	_, err := WithServiceField(rec, "missing", FieldModel, "x")
	assert.ErrorIs(t, err, ErrServiceNotFound)

	_, err = WithServiceField(rec, id, FieldWeight, "heavy")
	assert.ErrorIs(t, err, ErrInvalidFieldValue)

	out, err := WithServiceField(rec, id, FieldWeight, float64(3))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Services[0].Weight)
}

func TestWithoutService(t *testing.T) {
	rec := WithService(NewRecord("openai"), NewServiceEntry())
	first := rec.Services[0].LocalID

	out, err := WithoutService(rec, first)
	require.NoError(t, err)
	assert.Len(t, out.Services, 1)
	assert.Len(t, rec.Services, 2)
	assert.Equal(t, -1, out.ServiceIndex(first))
}

func TestWireRoundTrip(t *testing.T) {
	rule := api.Rule{
		UUID:         "r1",
		Scenario:     "openai",
		RequestModel: "gpt-x",
		Active:       true,
		Services: []api.Service{
			{Provider: "OpenAI", Model: "gpt-4", Weight: 2, Active: true, TimeWindow: 300},
		},
	}

	legacy := func(ref string) string {
		if ref == "OpenAI" {
			return "p1"
		}
		return ref
	}

	rec := FromWire(rule, legacy)
	assert.True(t, rec.ID.IsSaved())
	assert.Equal(t, "p1", rec.Services[0].Provider)
	assert.NotEmpty(t, rec.Services[0].LocalID)

	again := FromWire(rule, legacy)
	assert.NotEqual(t, rec.Services[0].LocalID, again.Services[0].LocalID)

	wire := rec.ToWire()
	assert.Equal(t, "r1", wire.UUID)
	assert.Equal(t, api.Service{Provider: "p1", Model: "gpt-4", Weight: 2, Active: true, TimeWindow: 300}, wire.Services[0])
}

func TestWireRoundTrip_KeepsServerFields(t *testing.T) {
	raw := `{
		"uuid": "r1",
		"scenario": "openai",
		"request_model": "gpt-x",
		"services": [{"provider": "p1", "model": "gpt-4", "weight": 1, "active": true}],
		"active": true,
		"lb_tactic": {"type": "round_robin", "params": {"request_threshold": 100}},
		"smart_enabled": true,
		"smart_routing": [{"description": "long prompts", "ops": [{"position": "context_token_count", "operation": "gt", "value": "8000"}]}]
	}`

	var rule api.Rule
	require.NoError(t, json.Unmarshal([]byte(raw), &rule))

	rec := FromWire(rule, nil)
	rec.Description = "edited"

	out, err := json.Marshal(rec.ToWire())
	require.NoError(t, err)

	var back map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &back))
	assert.JSONEq(t, `{"type": "round_robin", "params": {"request_threshold": 100}}`, string(back["lb_tactic"]))
	assert.JSONEq(t, `true`, string(back["smart_enabled"]))
	assert.JSONEq(t, `[{"description": "long prompts", "ops": [{"position": "context_token_count", "operation": "gt", "value": "8000"}]}]`,
		string(back["smart_routing"]))
	assert.JSONEq(t, `"edited"`, string(back["description"]))
}

func TestWireRoundTrip_AbsentServerFields(t *testing.T) {
	rec := FromWire(api.Rule{UUID: "r1", RequestModel: "gpt-x"}, nil)

	out, err := json.Marshal(rec.ToWire())
	require.NoError(t, err)

	var back map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &back))
	assert.NotContains(t, back, "lb_tactic")
	assert.NotContains(t, back, "smart_routing")
	assert.JSONEq(t, `false`, string(back["smart_enabled"]))
}

func TestUserMessage(t *testing.T) {
	err := RemoteFailure("update rule", 409, "conflict")
	assert.Equal(t, "Failed to save rule: conflict", UserMessage("Failed to save rule", err))
	assert.Equal(t, "Failed to save rule", UserMessage("Failed to save rule", nil))
}

func TestValidateGuardrail(t *testing.T) {
	err := ValidateGuardrail(api.GuardrailRule{ID: "block-rm", Type: "text_match"})
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "name")
	assert.NotContains(t, ve.Fields, "id")

	assert.NoError(t, ValidateGuardrail(api.GuardrailRule{ID: "block-rm", Name: "Block rm", Type: "text_match"}))
}
