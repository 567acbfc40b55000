package sltm

// LinkType is road class of a segment. It drives default lanes, speed and capacity for imported segments
type LinkType uint16

const (
	LINK_MOTORWAY = LinkType(iota + 1)
	LINK_TRUNK
	LINK_PRIMARY
	LINK_SECONDARY
	LINK_TERTIARY
	LINK_RESIDENTIAL
	LINK_LIVING_STREET
	LINK_SERVICE
	LINK_UNCLASSIFIED
	LINK_CONNECTOR

	LINK_UNDEFINED = LinkType(0)
)

func (iotaIdx LinkType) String() string {
	return [...]string{"undefined", "motorway", "trunk", "primary", "secondary", "tertiary", "residential", "living_street", "service", "unclassified", "connector"}[iotaIdx]
}

// linkDefaults is set of values used when OSM tags do not provide them
type linkDefaults struct {
	lanes           int
	freeSpeed       float64 // km/h
	capacityPerLane float64 // pcu/h
}

var (
	defaultsByLinkType = map[LinkType]linkDefaults{
		LINK_MOTORWAY:      {lanes: 4, freeSpeed: 120, capacityPerLane: 2300},
		LINK_TRUNK:         {lanes: 3, freeSpeed: 100, capacityPerLane: 2200},
		LINK_PRIMARY:       {lanes: 3, freeSpeed: 80, capacityPerLane: 1800},
		LINK_SECONDARY:     {lanes: 2, freeSpeed: 60, capacityPerLane: 1600},
		LINK_TERTIARY:      {lanes: 2, freeSpeed: 40, capacityPerLane: 1200},
		LINK_RESIDENTIAL:   {lanes: 1, freeSpeed: 30, capacityPerLane: 1000},
		LINK_LIVING_STREET: {lanes: 1, freeSpeed: 20, capacityPerLane: 800},
		LINK_SERVICE:       {lanes: 1, freeSpeed: 30, capacityPerLane: 800},
		LINK_UNCLASSIFIED:  {lanes: 1, freeSpeed: 30, capacityPerLane: 800},
		LINK_CONNECTOR:     {lanes: 2, freeSpeed: 120, capacityPerLane: 9999},
	}
)

// DefaultCapacity returns capacity (pcu/h) for given number of lanes of the link type.
// Non-positive lanes fall back to the default number of lanes.
func (iotaIdx LinkType) DefaultCapacity(lanes int) float64 {
	defaults, ok := defaultsByLinkType[iotaIdx]
	if !ok {
		defaults = defaultsByLinkType[LINK_UNCLASSIFIED]
	}
	if lanes <= 0 {
		lanes = defaults.lanes
	}
	return float64(lanes) * defaults.capacityPerLane
}

// DefaultLanes returns default number of lanes for the link type
func (iotaIdx LinkType) DefaultLanes() int {
	if defaults, ok := defaultsByLinkType[iotaIdx]; ok {
		return defaults.lanes
	}
	return 1
}

// DefaultFreeSpeed returns default free speed (km/h) for the link type
func (iotaIdx LinkType) DefaultFreeSpeed() float64 {
	if defaults, ok := defaultsByLinkType[iotaIdx]; ok {
		return defaults.freeSpeed
	}
	return 30
}

// LinkConnectionType tells whether way is plain road or connection between two roads (e.g. `motorway_link`)
type LinkConnectionType uint16

const (
	// Plain way
	NOT_A_LINK = LinkConnectionType(iota)
	// Connection between two roads
	IS_LINK
)

func (iotaIdx LinkConnectionType) String() string {
	return [...]string{"no", "yes"}[iotaIdx]
}
