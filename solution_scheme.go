package sltm

import (
	"strings"

	"github.com/pkg/errors"
)

// SolutionScheme selects which combination of splitting rate tracking and sending flow update responsibility is active
type SolutionScheme uint16

const (
	// Point queue, sending flows are maintained by route/bush traversal. Only potentially blocking nodes are tracked
	SCHEME_POINT_QUEUE_BASIC = SolutionScheme(iota + 1)
	// Point queue, turn flows are tracked for every used node and sending flows are propagated locally node to node
	SCHEME_POINT_QUEUE_ADVANCED

	SCHEME_UNDEFINED = SolutionScheme(0)
)

func (iotaIdx SolutionScheme) String() string {
	return [...]string{"undefined", "point_queue_basic", "point_queue_advanced"}[iotaIdx]
}

// ParseSolutionScheme returns scheme for its textual representation. Both "basic" and "point_queue_basic" are accepted
func ParseSolutionScheme(str string) (SolutionScheme, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "basic", "point_queue_basic":
		return SCHEME_POINT_QUEUE_BASIC, nil
	case "advanced", "point_queue_advanced":
		return SCHEME_POINT_QUEUE_ADVANCED, nil
	default:
		return SCHEME_UNDEFINED, errors.Wrapf(ErrUnsupportedScheme, "unknown solution scheme '%s'", str)
	}
}

// DefaultTrackingMode returns tracking mode the scheme is designed for
func (iotaIdx SolutionScheme) DefaultTrackingMode() TrackingMode {
	if iotaIdx == SCHEME_POINT_QUEUE_ADVANCED {
		return TRACKING_EXHAUSTIVE
	}
	return TRACKING_SELECTIVE
}

// UpdatesSendingFlowsOnTraversal tells whether route/bush traversal is responsible for sending flows
func (iotaIdx SolutionScheme) UpdatesSendingFlowsOnTraversal() bool {
	return iotaIdx == SCHEME_POINT_QUEUE_BASIC
}

// UpdatesSendingFlowsLocally tells whether sending flows are propagated node to node by the network loading itself
func (iotaIdx SolutionScheme) UpdatesSendingFlowsLocally() bool {
	return iotaIdx == SCHEME_POINT_QUEUE_ADVANCED
}

// TrackingMode is strategy of populating splitting rate tracker
type TrackingMode uint16

const (
	// Only potentially blocking nodes
	TRACKING_SELECTIVE = TrackingMode(iota + 1)
	// Every node used by positive demand
	TRACKING_EXHAUSTIVE

	TRACKING_UNDEFINED = TrackingMode(0)
)

func (iotaIdx TrackingMode) String() string {
	return [...]string{"undefined", "selective", "exhaustive"}[iotaIdx]
}

// ParseTrackingMode returns tracking mode for its textual representation
func ParseTrackingMode(str string) (TrackingMode, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "selective":
		return TRACKING_SELECTIVE, nil
	case "exhaustive":
		return TRACKING_EXHAUSTIVE, nil
	default:
		return TRACKING_UNDEFINED, errors.Wrapf(ErrUnsupportedScheme, "unknown tracking mode '%s'", str)
	}
}

// ValidateSchemeTracking rejects combinations which would produce silently wrong flows.
// Advanced scheme propagates sending flows locally and needs splitting rates of every used node
func ValidateSchemeTracking(scheme SolutionScheme, mode TrackingMode) error {
	switch scheme {
	case SCHEME_POINT_QUEUE_BASIC:
		if mode != TRACKING_SELECTIVE && mode != TRACKING_EXHAUSTIVE {
			return errors.Wrapf(ErrUnsupportedScheme, "scheme '%s' with tracking mode '%s'", scheme, mode)
		}
		return nil
	case SCHEME_POINT_QUEUE_ADVANCED:
		if mode != TRACKING_EXHAUSTIVE {
			return errors.Wrapf(ErrUnsupportedScheme, "scheme '%s' with tracking mode '%s'", scheme, mode)
		}
		return nil
	default:
		return errors.Wrapf(ErrUnsupportedScheme, "scheme '%s'", scheme)
	}
}
