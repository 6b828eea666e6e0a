package engine

import (
	"errors"
)

var ErrUnknownPlatform = errors.New("unknown platform")
