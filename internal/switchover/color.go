package switchover

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/pda-uploader/internal/kv"
)

// PointerKey is the key holding the active color.
const PointerKey = "ACTIVE_DB"

// Color names one database of the pair.
type Color string

const (
	Blue  Color = "blue"
	Green Color = "green"
)

// Other returns the opposite color.
func (c Color) Other() Color {
	if c == Blue {
		return Green
	}
	return Blue
}

// ParseColor accepts exactly "blue" or "green".
func ParseColor(s string) (Color, error) {
	switch Color(s) {
	case Blue, Green:
		return Color(s), nil
	default:
		return "", &ConfigError{Field: PointerKey, Value: s, Message: "active pointer must be blue or green"}
	}
}

// Databases maps colors to database identifiers.
type Databases struct {
	Blue  string
	Green string
}

// Enabled reports whether both identifiers are set.
func (d Databases) Enabled() bool {
	return d.Blue != "" && d.Green != ""
}

// For returns the identifier of c.
func (d Databases) For(c Color) string {
	if c == Blue {
		return d.Blue
	}
	return d.Green
}

func (d Databases) validate() error {
	switch {
	case d.Blue == "" && d.Green == "":
		return nil
	case d.Blue == "":
		return &ConfigError{Field: "blue_db_id", Message: "required when green_db_id is set"}
	case d.Green == "":
		return &ConfigError{Field: "green_db_id", Message: "required when blue_db_id is set"}
	case d.Blue == d.Green:
		return &ConfigError{Field: "green_db_id", Value: d.Green, Message: "must differ from blue_db_id"}
	}
	return nil
}

// ReadPointer returns the active color stored in namespace.
// A missing or malformed pointer is a *ConfigError.
func ReadPointer(ctx context.Context, store kv.Store, namespace string) (Color, error) {
	v, err := store.Get(ctx, namespace, PointerKey)
	if errors.Is(err, kv.ErrNotFound) {
		return "", &ConfigError{Field: PointerKey, Message: "active pointer is not set", Err: err}
	}
	if err != nil {
		return "", fmt.Errorf("read active pointer: %w", err)
	}
	return ParseColor(v)
}

// WritePointer stores c as the active color in namespace.
func WritePointer(ctx context.Context, store kv.Store, namespace string, c Color) error {
	if _, err := ParseColor(string(c)); err != nil {
		return err
	}
	if err := store.Put(ctx, namespace, PointerKey, string(c)); err != nil {
		return fmt.Errorf("write active pointer: %w", err)
	}
	return nil
}
