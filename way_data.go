package sltm

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/osm"
)

const mphToKmh = 1.609344

// wayData is OSM way prepared for import
type wayData struct {
	name               string
	highway            string
	junction           string
	area               string
	tagMap             osm.Tags
	nodes              []osm.NodeID
	maxSpeed           float64 // km/h, -1 if unknown
	lanes              int
	lanesForward       int
	lanesBackward      int
	ID                 osm.WayID
	linkType           LinkType
	linkConnectionType LinkConnectionType
	oneway             bool
	onewayDefault      bool
	isReversed         bool
}

var (
	mphRegExp    = regexp.MustCompile(`(\d+\.?\d*)\s*mph`)
	kmhRegExp    = regexp.MustCompile(`(\d+\.?\d*)\s*(km/h|kmh|kph)?$`)
	numberRegExp = regexp.MustCompile(`^\d+`)
)

func newWayData(way *osm.Way, log *slog.Logger) *wayData {
	prepared := &wayData{
		ID:            way.ID,
		nodes:         make([]osm.NodeID, 0, len(way.Nodes)),
		tagMap:        make(osm.Tags, len(way.Tags)),
		maxSpeed:      -1.0,
		lanes:         -1,
		lanesForward:  -1,
		lanesBackward: -1,
	}
	copy(prepared.tagMap, way.Tags)
	for _, node := range way.Nodes {
		prepared.nodes = append(prepared.nodes, node.ID)
	}
	prepared.processTags(log)
	return prepared
}

func (way *wayData) processTags(log *slog.Logger) {
	way.name = way.tagMap.Find("name")
	way.highway = way.tagMap.Find("highway")
	way.junction = way.tagMap.Find("junction")
	way.area = way.tagMap.Find("area")

	onewayText := way.tagMap.Find("oneway")
	switch onewayText {
	case "":
		if _, ok := junctionTypes[way.junction]; ok {
			way.oneway = true
		} else {
			way.onewayDefault = true
		}
	case "yes", "1", "true":
		way.oneway = true
	case "no", "0", "false":
		way.oneway = false
	case "-1":
		way.oneway = true
		way.isReversed = true
	default:
		// Reversible and alternating ways depend on time conditions, so treat them as two-way ones
		if _, ok := onewayReversible[onewayText]; !ok {
			log.Warn("Unhandled `oneway` tag value", "value", onewayText, "way", way.ID)
		}
	}

	way.lanes = parseLanes(way.tagMap.Find("lanes"), "lanes", way.ID, log)
	way.lanesForward = parseLanes(way.tagMap.Find("lanes:forward"), "lanes:forward", way.ID, log)
	way.lanesBackward = parseLanes(way.tagMap.Find("lanes:backward"), "lanes:backward", way.ID, log)

	maxSpeed := strings.TrimSpace(way.tagMap.Find("maxspeed"))
	if maxSpeed != "" {
		way.maxSpeed = parseMaxSpeed(maxSpeed)
		if way.maxSpeed < 0 {
			log.Debug("Can't parse `maxspeed` tag value", "value", maxSpeed, "way", way.ID)
		}
	}
}

// parseLanes returns number of lanes or -1. Values like "2;3" are cut to the leading number
func parseLanes(text, tag string, wayID osm.WayID, log *slog.Logger) int {
	if text == "" {
		return -1
	}
	lanesNum := numberRegExp.FindString(strings.TrimSpace(text))
	if lanesNum == "" {
		log.Warn("Provided tag value should be an integer", "tag", tag, "value", text, "way", wayID)
		return -1
	}
	lanes, err := strconv.Atoi(lanesNum)
	if err != nil || lanes <= 0 {
		return -1
	}
	return lanes
}

// parseMaxSpeed returns speed in km/h or -1. Plain numbers are km/h
func parseMaxSpeed(text string) float64 {
	if match := mphRegExp.FindStringSubmatch(text); match != nil {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return -1
		}
		return value * mphToKmh
	}
	if match := kmhRegExp.FindStringSubmatch(text); match != nil {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return -1
		}
		return value
	}
	return -1
}

func (way *wayData) isHighwayPOI() bool {
	_, ok := poiHighwayTags[way.highway]
	return ok
}

func (way *wayData) isHighwayNegligible() bool {
	_, ok := negligibleHighwayTags[way.highway]
	return ok
}

// allowsMotorVehicles checks access tags
func (way *wayData) allowsMotorVehicles() bool {
	for tag, values := range motorVehicleIncludeValues {
		if _, ok := values[way.tagMap.Find(tag)]; ok {
			return true
		}
	}
	for tag, values := range motorVehicleExcludeValues {
		if _, ok := values[way.tagMap.Find(tag)]; ok {
			return false
		}
	}
	return true
}

// prepare resolves link type and oneway default. Returns false if way should not be imported
func (way *wayData) prepare(log *slog.Logger) bool {
	if way.highway == "" || len(way.nodes) < 2 {
		return false
	}
	if way.isHighwayPOI() || way.isHighwayNegligible() {
		return false
	}
	// Ignore ways `area` tag provided
	if way.area != "" && way.area != "no" {
		return false
	}
	linkInfo, ok := linkTypeByHighway[getHighwayType(way.highway)]
	if !ok {
		log.Debug("Unhandled `highway` tag value", "value", way.highway, "way", way.ID)
		return false
	}
	if !way.allowsMotorVehicles() {
		return false
	}
	if way.onewayDefault {
		way.oneway = onewayDefaultByLink[linkInfo.linkType]
	}
	way.linkType = linkInfo.linkType
	way.linkConnectionType = linkInfo.linkConnectionType
	return true
}

// directionLanes returns lanes of forward and backward directions
func (way *wayData) directionLanes() (int, int) {
	if way.oneway {
		lanes := way.lanes
		if lanes <= 0 {
			lanes = way.linkType.DefaultLanes()
		}
		return lanes, 0
	}
	forward, backward := way.lanesForward, way.lanesBackward
	half := -1
	if way.lanes > 0 {
		half = way.lanes / 2
		if half < 1 {
			half = 1
		}
	}
	if forward <= 0 {
		forward = half
	}
	if backward <= 0 {
		backward = half
	}
	if forward <= 0 {
		forward = way.linkType.DefaultLanes()
	}
	if backward <= 0 {
		backward = way.linkType.DefaultLanes()
	}
	return forward, backward
}

// freeSpeed returns speed (km/h) from tags or default of link type
func (way *wayData) freeSpeed() float64 {
	if way.maxSpeed > 0 {
		return way.maxSpeed
	}
	return way.linkType.DefaultFreeSpeed()
}
