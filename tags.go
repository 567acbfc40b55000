package sltm

var (
	junctionTypes = map[string]struct{}{
		"circular":   {},
		"roundabout": {},
	}

	poiHighwayTags = map[string]struct{}{
		"bus_stop": {},
		"platform": {},
	}

	negligibleHighwayTags = map[string]struct{}{
		"path":         {},
		"construction": {},
		"proposed":     {},
		"raceway":      {},
		"bridleway":    {},
		"rest_area":    {},
		"su":           {},
		"road":         {},
		"abandoned":    {},
		"planned":      {},
		"trailhead":    {},
		"stairs":       {},
		"dismantled":   {},
		"disused":      {},
		"razed":        {},
		"access":       {},
		"corridor":     {},
		"stop":         {},
	}

	// See ref.: https://wiki.openstreetmap.org/wiki/Tag:oneway%3Dreversible
	onewayReversible = map[string]struct{}{
		"reversible":  {},
		"alternating": {},
	}

	// Access values which forbid motor vehicles on the way
	motorVehicleExcludeValues = map[string]map[string]struct{}{
		"motor_vehicle": {
			"no": {},
		},
		"motorcar": {
			"no": {},
		},
		"access": {
			"private": {},
			"no":      {},
		},
		"service": {
			"parking":          {},
			"parking_aisle":    {},
			"driveway":         {},
			"private":          {},
			"emergency_access": {},
		},
	}

	// Explicit permissions which override exclusions above
	motorVehicleIncludeValues = map[string]map[string]struct{}{
		"motor_vehicle": {
			"yes": {},
		},
		"motorcar": {
			"yes": {},
		},
	}
)
