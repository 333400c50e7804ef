package api

import "encoding/json"

// Opaque holds a JSON value the console does not interpret. It is kept
// byte for byte so a rule can be written back exactly as it was read.
type Opaque json.RawMessage

func (o Opaque) MarshalJSON() ([]byte, error) {
	if len(o) == 0 {
		return []byte("null"), nil
	}
	return o, nil
}

func (o *Opaque) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = nil
		return nil
	}
	*o = append((*o)[0:0], data...)
	return nil
}

// MarshalYAML renders the decoded value so exports stay readable.
func (o Opaque) MarshalYAML() (interface{}, error) {
	if len(o) == 0 {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal(o, &v); err != nil {
		return nil, err
	}
	return v, nil
}
