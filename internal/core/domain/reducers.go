package domain

import "fmt"

// ServiceField names an editable attribute of a ServiceEntry.
type ServiceField string

const (
	FieldProvider   ServiceField = "provider"
	FieldModel      ServiceField = "model"
	FieldWeight     ServiceField = "weight"
	FieldActive     ServiceField = "active"
	FieldTimeWindow ServiceField = "time_window"
)

// RuleField names an editable attribute of a RuleRecord.
type RuleField string

const (
	FieldRequestModel  RuleField = "request_model"
	FieldResponseModel RuleField = "response_model"
	FieldDescription   RuleField = "description"
	FieldRuleActive    RuleField = "active"
)

// WithService returns a copy of r with entry appended.
func WithService(r RuleRecord, entry ServiceEntry) RuleRecord {
	out := r.Clone()
	out.Services = append(out.Services, entry)
	return out
}

// WithoutService returns a copy of r without the entry localID.
func WithoutService(r RuleRecord, localID string) (RuleRecord, error) {
	idx := r.ServiceIndex(localID)
	if idx < 0 {
		return r, fmt.Errorf("%w: %s", ErrServiceNotFound, localID)
	}
	out := r.Clone()
	out.Services = append(out.Services[:idx], out.Services[idx+1:]...)
	return out, nil
}

// WithServiceField returns a copy of r with one field of one entry replaced.
// Setting the provider always clears the model, since a model only makes
// sense relative to the provider it was picked from.
func WithServiceField(r RuleRecord, localID string, field ServiceField, value interface{}) (RuleRecord, error) {
	idx := r.ServiceIndex(localID)
	if idx < 0 {
		return r, fmt.Errorf("%w: %s", ErrServiceNotFound, localID)
	}
	out := r.Clone()
	entry := &out.Services[idx]

	switch field {
	case FieldProvider:
		v, ok := value.(string)
		if !ok {
			return r, invalidValue(string(field), value)
		}
		entry.Provider = v
		entry.Model = ""
	case FieldModel:
		v, ok := value.(string)
		if !ok {
			return r, invalidValue(string(field), value)
		}
		entry.Model = v
	case FieldWeight:
		v, ok := asInt(value)
		if !ok {
			return r, invalidValue(string(field), value)
		}
		entry.Weight = v
	case FieldTimeWindow:
		v, ok := asInt(value)
		if !ok {
			return r, invalidValue(string(field), value)
		}
		entry.TimeWindow = v
	case FieldActive:
		v, ok := value.(bool)
		if !ok {
			return r, invalidValue(string(field), value)
		}
		entry.Active = v
	default:
		return r, fmt.Errorf("%w: unknown service field %q", ErrInvalidFieldValue, field)
	}
	return out, nil
}

// WithRuleField returns a copy of r with one rule-level field replaced.
func WithRuleField(r RuleRecord, field RuleField, value interface{}) (RuleRecord, error) {
	out := r.Clone()
	switch field {
	case FieldRequestModel, FieldResponseModel, FieldDescription:
		v, ok := value.(string)
		if !ok {
			return r, invalidValue(string(field), value)
		}
		switch field {
		case FieldRequestModel:
			out.RequestModel = v
		case FieldResponseModel:
			out.ResponseModel = v
		default:
			out.Description = v
		}
	case FieldRuleActive:
		v, ok := value.(bool)
		if !ok {
			return r, invalidValue(string(field), value)
		}
		out.Active = v
	default:
		return r, fmt.Errorf("%w: unknown rule field %q", ErrInvalidFieldValue, field)
	}
	return out, nil
}

func asInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func invalidValue(field string, value interface{}) error {
	return fmt.Errorf("%w: %s cannot be %T", ErrInvalidFieldValue, field, value)
}
