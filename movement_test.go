package sltm

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func TestTurnKey(t *testing.T) {
	key := NewTurnKey(3, 7)
	require.Equal(t, SegmentID(3), key.Entry())
	require.Equal(t, SegmentID(7), key.Exit())
	require.Equal(t, "3->7", key.String())

	sink := NewTurnKey(12, NoSegment)
	require.Equal(t, SegmentID(12), sink.Entry())
	require.Equal(t, NoSegment, sink.Exit())
	require.Equal(t, "12->sink", sink.String())
	require.NotEqual(t, key, NewTurnKey(7, 3))
}

func TestMovementBetween(t *testing.T) {
	net := NewNetwork()
	center := orb.Point{37.60, 55.75}
	west := orb.Point{37.59, 55.75}
	east := orb.Point{37.61, 55.75}
	north := orb.Point{37.60, 55.76}
	south := orb.Point{37.60, 55.74}
	nodes := map[string]NodeID{}
	for name, pt := range map[string]orb.Point{"center": center, "west": west, "east": east, "north": north, "south": south} {
		nodes[name] = net.AddNode(WithNodeGeometry(pt), WithNodeName(name))
	}
	add := func(from, to string, geom orb.LineString) SegmentID {
		id, err := net.AddSegment(nodes[from], nodes[to], 1000, WithSegmentGeometry(geom))
		require.NoError(t, err)
		return id
	}
	eastbound := add("west", "center", orb.LineString{west, center})
	toEast := add("center", "east", orb.LineString{center, east})
	toNorth := add("center", "north", orb.LineString{center, north})
	toSouth := add("center", "south", orb.LineString{center, south})
	toWest := add("center", "west", orb.LineString{center, west})
	plain, err := net.AddSegment(nodes["center"], nodes["east"], 1000)
	require.NoError(t, err)

	require.Equal(t, MOVEMENT_THRU, net.MovementBetween(eastbound, toEast))
	require.Equal(t, MOVEMENT_LEFT, net.MovementBetween(eastbound, toNorth))
	require.Equal(t, MOVEMENT_RIGHT, net.MovementBetween(eastbound, toSouth))
	require.Equal(t, MOVEMENT_U_TURN, net.MovementBetween(eastbound, toWest))
	require.Equal(t, MOVEMENT_UNDEFINED, net.MovementBetween(eastbound, plain))
	require.Equal(t, MOVEMENT_UNDEFINED, net.MovementBetween(eastbound, NoSegment))
}
