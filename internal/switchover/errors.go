package switchover

import (
	"errors"
	"fmt"
)

// ConfigError reports a configuration problem that no retry will fix: a
// partial database pair, a missing collaborator or an unexpected pointer.
type ConfigError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error: %s: %s (got %q)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
