package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPermissionDenied means the server refused access (MPD password or
// ACL). Fatal to the engine until access is re-granted; never retried in
// a loop.
var ErrPermissionDenied = errors.New("catalog access denied")

// ErrUnavailable means the server could not be reached or enumeration
// failed transiently. Safe to retry on the next scheduled sync.
var ErrUnavailable = errors.New("catalog unavailable")

// classify wraps an MPD error into the engine's error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "incorrect password") {
		return fmt.Errorf("%s: %w: %v", op, ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
