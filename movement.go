package sltm

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// TurnKey is combined hash of entry and exit segment identifiers. Exit could be NoSegment for terminating flow
type TurnKey uint64

// NewTurnKey combines identifiers of entry and exit segments
func NewTurnKey(entry, exit SegmentID) TurnKey {
	return TurnKey(uint64(uint32(entry))<<32 | uint64(uint32(exit)))
}

// Entry returns identifier of entry segment
func (key TurnKey) Entry() SegmentID {
	return SegmentID(int32(uint32(key >> 32)))
}

// Exit returns identifier of exit segment (or NoSegment)
func (key TurnKey) Exit() SegmentID {
	return SegmentID(int32(uint32(key)))
}

func (key TurnKey) String() string {
	if key.Exit() == NoSegment {
		return fmt.Sprintf("%d->sink", key.Entry())
	}
	return fmt.Sprintf("%d->%d", key.Entry(), key.Exit())
}

// MovementType is kind of turn between entry and exit segments
type MovementType uint16

const (
	MOVEMENT_THRU = MovementType(iota + 1)
	MOVEMENT_RIGHT
	MOVEMENT_LEFT
	MOVEMENT_U_TURN

	MOVEMENT_UNDEFINED = MovementType(0)
)

func (iotaIdx MovementType) String() string {
	return [...]string{"undefined", "thru", "right", "left", "uturn"}[iotaIdx]
}

// MovementBetween classifies turn entry -> exit by geometry of segments.
// Returns MOVEMENT_UNDEFINED when either segment has less than two points or the exit is NoSegment
func (net *Network) MovementBetween(entry, exit SegmentID) MovementType {
	if exit == NoSegment || !net.hasSegment(entry) || !net.hasSegment(exit) {
		return MOVEMENT_UNDEFINED
	}
	l1 := net.segments[entry].geom
	l2 := net.segments[exit].geom
	if len(l1) < 2 || len(l2) < 2 {
		return MOVEMENT_UNDEFINED
	}
	return movementBetweenLines(lineToEuclidean(l1), lineToEuclidean(l2))
}

// movementBetweenLines returns movement type for given lines pair (euclidean coordinates).
//
// Note: panics if number of points in any line is less than 2
//
func movementBetweenLines(l1 orb.LineString, l2 orb.LineString) MovementType {
	startL1, endL1 := l1[0], l1[len(l1)-1]
	startL2, endL2 := l2[0], l2[len(l2)-1]

	angle1 := math.Atan2(endL1.Y()-startL1.Y(), endL1.X()-startL1.X())
	angle2 := math.Atan2(endL2.Y()-startL2.Y(), endL2.X()-startL2.X())

	angleDiff := angle2 - angle1
	if angleDiff < -1*math.Pi {
		angleDiff += 2 * math.Pi
	}
	if angleDiff > math.Pi {
		angleDiff -= 2 * math.Pi
	}

	switch {
	case -0.25*math.Pi <= angleDiff && angleDiff <= 0.25*math.Pi:
		return MOVEMENT_THRU
	case angleDiff < -0.25*math.Pi && angleDiff >= -0.75*math.Pi:
		return MOVEMENT_RIGHT
	case angleDiff > 0.25*math.Pi && angleDiff <= 0.75*math.Pi:
		return MOVEMENT_LEFT
	default:
		return MOVEMENT_U_TURN
	}
}

const (
	earthR = 20037508.34
)

func epsg4326To3857(lon, lat float64) (float64, float64) {
	x := lon * earthR / 180
	y := math.Log(math.Tan((90+lat)*math.Pi/360)) / (math.Pi / 180)
	y = y * earthR / 180
	return x, y
}

func lineToEuclidean(line orb.LineString) orb.LineString {
	newLine := make(orb.LineString, len(line))
	for i, pt := range line {
		x, y := epsg4326To3857(pt.Lon(), pt.Lat())
		newLine[i] = orb.Point{x, y}
	}
	return newLine
}
