package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckServerVersion(t *testing.T) {
	ok, err := CheckServerVersion("1.2.0")
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = CheckServerVersion("v0.9.3")
	assert.True(t, ok)
	var tooOld *ErrServerTooOld
	require.True(t, errors.As(err, &tooOld))
	assert.Equal(t, "v0.9.3", tooOld.Server)

	ok, err = CheckServerVersion("dev")
	assert.False(t, ok)
	assert.NoError(t, err)
}
