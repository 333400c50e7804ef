package services

import (
	"context"
	"encoding/json"
	"reflect"
)

// CloseChoice is the operator's answer when closing an editor with
// unsaved changes.
type CloseChoice int

const (
	CloseCancel CloseChoice = iota
	CloseSave
	CloseDiscard
)

func (c CloseChoice) String() string {
	switch c {
	case CloseSave:
		return "save"
	case CloseDiscard:
		return "discard"
	default:
		return "cancel"
	}
}

// DirtyTracker compares an editor's current value against the snapshot
// taken when it was opened or last saved. Comparison is structural over the
// JSON form, so fields tagged `json:"-"` never make a value dirty.
type DirtyTracker[T any] struct {
	baseline interface{}
	opened   bool
}

func snapshot[T any](v T) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return err.Error()
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	return out
}

// OpenWith records v as the clean baseline.
func (t *DirtyTracker[T]) OpenWith(v T) {
	t.baseline = snapshot(v)
	t.opened = true
}

// MarkClean re-baselines after a successful save.
func (t *DirtyTracker[T]) MarkClean(v T) {
	t.OpenWith(v)
}

// IsDirty reports whether current differs from the baseline.
func (t *DirtyTracker[T]) IsDirty(current T) bool {
	if !t.opened {
		return false
	}
	return !reflect.DeepEqual(t.baseline, snapshot(current))
}

// RequestClose runs the close workflow. A clean editor closes at once.
// Otherwise prompt decides: cancel keeps the editor open, discard closes
// it, save closes it only when save succeeds. A failed save returns the
// error and leaves the baseline untouched.
func (t *DirtyTracker[T]) RequestClose(
	ctx context.Context,
	current T,
	prompt func() CloseChoice,
	save func(ctx context.Context, v T) error,
) (bool, error) {
	if !t.IsDirty(current) {
		return true, nil
	}

	switch prompt() {
	case CloseDiscard:
		return true, nil
	case CloseSave:
		if err := save(ctx, current); err != nil {
			return false, err
		}
		t.MarkClean(current)
		return true, nil
	default:
		return false, nil
	}
}
