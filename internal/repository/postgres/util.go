package postgres

import (
	"errors"
)

var ErrNotFound = errors.New("not found")
