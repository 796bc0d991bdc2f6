package database

import "errors"

// ErrNotFound is returned when a requested plan does not exist
var ErrNotFound = errors.New("entity not found")
