package cmd

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

var AppVersion = "v0.4.0"

// MinServerVersion is the oldest admin API the console can drive.
var MinServerVersion = "v1.0.0"

// ErrServerTooOld is returned when the admin API predates MinServerVersion.
type ErrServerTooOld struct {
	Server  string
	Minimum string
}

func (e *ErrServerTooOld) Error() string {
	return fmt.Sprintf("admin server %s is older than the minimum supported %s", e.Server, e.Minimum)
}

// CheckServerVersion compares the version reported by GET /api/v1/status
// with MinServerVersion. ok is false when the version cannot be parsed, in
// which case the caller decides whether to continue.
func CheckServerVersion(serverVersion string) (ok bool, err error) {
	minimum, err := version.NewVersion(MinServerVersion)
	if err != nil {
		return false, fmt.Errorf("invalid minimum version %q: %w", MinServerVersion, err)
	}

	current, err := version.NewVersion(serverVersion)
	if err != nil {
		return false, nil
	}

	if current.LessThan(minimum) {
		return true, &ErrServerTooOld{Server: serverVersion, Minimum: MinServerVersion}
	}
	return true, nil
}
