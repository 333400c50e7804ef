package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(!checkNoColor())

	var buf bytes.Buffer
	n := NewNotifier(&buf)
	n.Success("Rule saved")
	n.Error("Failed to save rule: conflict")

	assert.Equal(t, "✔ Rule saved\n✘ Failed to save rule: conflict\n", buf.String())
}

func TestHighlightJSON(t *testing.T) {
	SetEnabled(false)
	assert.Equal(t, `{"a": 1}`, HighlightJSON(`{"a": 1}`))

	SetEnabled(true)
	defer SetEnabled(!checkNoColor())

	out := HighlightJSON(`{"active": true, "weight": 2}`)
	assert.Contains(t, out, Blue+`"active"`+ResetCode+":")
	assert.Contains(t, out, Yellow+"true"+ResetCode)
	assert.Contains(t, out, Purple+"2"+ResetCode)
}
