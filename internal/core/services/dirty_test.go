package services

import (
	"context"
	"errors"
	"testing"

	"github.com/nulzo/prism-console/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func savedRecord() domain.RuleRecord {
	rec := domain.NewRecord("openai")
	rec.ID = domain.Saved("r1")
	rec.RequestModel = "gpt-x"
	rec.Services[0].Provider = "p1"
	rec.Services[0].Model = "gpt-4"
	return rec
}

func TestDirtyTracker_Structural(t *testing.T) {
	var tr DirtyTracker[domain.RuleRecord]
	rec := savedRecord()
	tr.OpenWith(rec)

	assert.False(t, tr.IsDirty(rec))

	// a value that round-trips to the same content is still clean
	clone := rec.Clone()
	clone.Services[0].LocalID = "regenerated"
	assert.False(t, tr.IsDirty(clone))

	edited, err := domain.WithRuleField(rec, domain.FieldDescription, "edited")
	require.NoError(t, err)
	assert.True(t, tr.IsDirty(edited))

	// reverting the edit makes it clean again
	reverted, err := domain.WithRuleField(edited, domain.FieldDescription, "")
	require.NoError(t, err)
	assert.False(t, tr.IsDirty(reverted))
}

func TestDirtyTracker_UnopenedIsClean(t *testing.T) {
	var tr DirtyTracker[map[string]string]
	assert.False(t, tr.IsDirty(map[string]string{"a": "b"}))
}

func TestDirtyTracker_MarkClean(t *testing.T) {
	var tr DirtyTracker[map[string]string]
	tr.OpenWith(map[string]string{"name": "a"})

	next := map[string]string{"name": "b"}
	assert.True(t, tr.IsDirty(next))
	tr.MarkClean(next)
	assert.False(t, tr.IsDirty(next))
}

func TestDirtyTracker_RequestClose(t *testing.T) {
	ctx := context.Background()
	base := map[string]string{"name": "a"}
	edited := map[string]string{"name": "b"}

	noPrompt := func() CloseChoice {
		t.Fatal("prompt should not be shown")
		return CloseCancel
	}
	noSave := func(context.Context, map[string]string) error {
		t.Fatal("save should not run")
		return nil
	}

	t.Run("clean closes without prompting", func(t *testing.T) {
		var tr DirtyTracker[map[string]string]
		tr.OpenWith(base)
		closed, err := tr.RequestClose(ctx, base, noPrompt, noSave)
		require.NoError(t, err)
		assert.True(t, closed)
	})

	t.Run("cancel keeps editor open", func(t *testing.T) {
		var tr DirtyTracker[map[string]string]
		tr.OpenWith(base)
		closed, err := tr.RequestClose(ctx, edited, func() CloseChoice { return CloseCancel }, noSave)
		require.NoError(t, err)
		assert.False(t, closed)
		assert.True(t, tr.IsDirty(edited))
	})

	t.Run("discard closes without saving", func(t *testing.T) {
		var tr DirtyTracker[map[string]string]
		tr.OpenWith(base)
		closed, err := tr.RequestClose(ctx, edited, func() CloseChoice { return CloseDiscard }, noSave)
		require.NoError(t, err)
		assert.True(t, closed)
	})

	t.Run("save success closes and cleans", func(t *testing.T) {
		var tr DirtyTracker[map[string]string]
		tr.OpenWith(base)
		saved := 0
		closed, err := tr.RequestClose(ctx, edited, func() CloseChoice { return CloseSave },
			func(context.Context, map[string]string) error { saved++; return nil })
		require.NoError(t, err)
		assert.True(t, closed)
		assert.Equal(t, 1, saved)
		assert.False(t, tr.IsDirty(edited))
	})

	t.Run("save failure stays open and dirty", func(t *testing.T) {
		var tr DirtyTracker[map[string]string]
		tr.OpenWith(base)
		closed, err := tr.RequestClose(ctx, edited, func() CloseChoice { return CloseSave },
			func(context.Context, map[string]string) error { return errors.New("conflict") })
		assert.EqualError(t, err, "conflict")
		assert.False(t, closed)
		assert.True(t, tr.IsDirty(edited))
	})
}
