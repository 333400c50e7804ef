package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// RecordID identifies a rule in the editor. A Saved id was confirmed by the
// server; a Pending id was minted locally and is sent as the initial id on
// first create.
type RecordID struct {
	value string
	saved bool
}

// Saved wraps a server-confirmed identifier.
func Saved(id string) RecordID {
	return RecordID{value: id, saved: true}
}

// Pending wraps a client-generated temporary identifier.
func Pending(tempID string) RecordID {
	return RecordID{value: tempID}
}

// NewPendingID mints a fresh temporary identifier.
func NewPendingID() RecordID {
	return Pending(uuid.NewString())
}

func (id RecordID) String() string { return id.value }

// IsSaved reports whether the server already knows this identifier.
func (id RecordID) IsSaved() bool { return id.saved }

// IsZero reports whether no identifier is present at all.
func (id RecordID) IsZero() bool { return id.value == "" }

func (id RecordID) MarshalJSON() ([]byte, error) {
	state := "pending"
	if id.saved {
		state = "saved"
	}
	return json.Marshal(map[string]string{"id": id.value, "state": state})
}

// newLocalID returns an ephemeral identifier for list diffing in a view.
func newLocalID() string {
	return uuid.NewString()
}
