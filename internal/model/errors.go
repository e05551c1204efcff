package model

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks invalid options. Commands abort before reading any
// data when they see it.
var ErrConfiguration = errors.New("configuration error")

// ConfigErrorf wraps ErrConfiguration with a formatted message.
func ConfigErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
