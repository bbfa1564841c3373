package groups

import (
	"errors"
	"fmt"
)

// ErrUnsupportedSelector is returned when a group is selected by name.
// Name-based group selection is reserved but not implemented; it must fail
// loudly rather than be silently ignored.
var ErrUnsupportedSelector = errors.New("selecting a group by name is not supported; use group_id or group_code")

// ErrNoDefaultGroup is returned by DefaultGroup when no default group was
// configured at startup.
var ErrNoDefaultGroup = errors.New("no default group is configured")

// NotFoundError reports a missing backend record.
type NotFoundError struct {
	Kind string // "group", "member", "entry"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
