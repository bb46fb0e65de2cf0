package config

import "errors"

// ErrInvalidValue indicates a configuration value has the wrong type or is
// out of range.
var ErrInvalidValue = errors.New("invalid configuration value")
