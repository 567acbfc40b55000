package sltm

import (
	"github.com/pkg/errors"
)

// Configuration errors. Those are returned during setup and mean the loading can't start at all.
var (
	ErrInvalidCapacity     = errors.New("segment capacity must be finite and positive")
	ErrInconsistentNetwork = errors.New("inconsistent network adjacency")
	ErrUnsupportedScheme   = errors.New("unsupported solution scheme / tracking mode combination")
	ErrInvalidOption       = errors.New("invalid loading option")
	ErrNoSuchNode          = errors.New("no such node")
	ErrNoSuchSegment       = errors.New("no such segment")
)

// Demand structure errors.
var (
	ErrDisconnectedRoute = errors.New("route segments are not contiguous")
	ErrCyclicBush        = errors.New("bush contains a cycle")
	ErrNegativeDemand    = errors.New("demand must be non-negative")
)

// IsConfigurationError reports whether err (or its cause) is one of the errors which should stop the outer assignment loop
func IsConfigurationError(err error) bool {
	switch errors.Cause(err) {
	case ErrInvalidCapacity, ErrInconsistentNetwork, ErrUnsupportedScheme, ErrInvalidOption, ErrNoSuchNode, ErrNoSuchSegment:
		return true
	default:
		return false
	}
}
