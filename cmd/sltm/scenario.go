package main

import (
	"os"

	"github.com/LdDl/sltm"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario is loading setup: options of network loading and OD demand between OSM nodes
type Scenario struct {
	Scheme              string        `yaml:"scheme"`
	Tracking            string        `yaml:"tracking"`
	MaxIterations       int           `yaml:"max_iterations"`
	MaxLocalIterations  int           `yaml:"max_local_iterations"`
	AcceptanceTolerance float64       `yaml:"acceptance_tolerance"`
	SendingTolerance    float64       `yaml:"sending_flow_tolerance"`
	Workers             int           `yaml:"workers"`
	Demand              []DemandEntry `yaml:"demand"`
}

// DemandEntry is flow (pcu/h) between two OSM nodes
type DemandEntry struct {
	Origin      int64   `yaml:"origin"`
	Destination int64   `yaml:"destination"`
	Flow        float64 `yaml:"flow"`
}

func readScenario(fname string) (*Scenario, error) {
	bytes, err := os.ReadFile(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read scenario file '%s'", fname)
	}
	scenario := Scenario{}
	err = yaml.Unmarshal(bytes, &scenario)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse scenario file '%s'", fname)
	}
	return &scenario, nil
}

// loadingOptions converts scenario into options. Zero values keep defaults
func (scenario *Scenario) loadingOptions() ([]sltm.LoadingOption, error) {
	options := []sltm.LoadingOption{}
	if scenario.Scheme != "" {
		scheme, err := sltm.ParseSolutionScheme(scenario.Scheme)
		if err != nil {
			return nil, err
		}
		options = append(options, sltm.WithSolutionScheme(scheme))
	}
	if scenario.Tracking != "" {
		mode, err := sltm.ParseTrackingMode(scenario.Tracking)
		if err != nil {
			return nil, err
		}
		options = append(options, sltm.WithTrackingMode(mode))
	}
	if scenario.MaxIterations > 0 {
		options = append(options, sltm.WithMaxIterations(scenario.MaxIterations))
	}
	if scenario.MaxLocalIterations > 0 {
		options = append(options, sltm.WithMaxLocalIterations(scenario.MaxLocalIterations))
	}
	if scenario.AcceptanceTolerance > 0 {
		options = append(options, sltm.WithAcceptanceTolerance(scenario.AcceptanceTolerance))
	}
	if scenario.SendingTolerance > 0 {
		options = append(options, sltm.WithSendingFlowTolerance(scenario.SendingTolerance))
	}
	if scenario.Workers > 0 {
		options = append(options, sltm.WithWorkers(scenario.Workers))
	}
	return options, nil
}

// odDemand maps OSM nodes of demand onto network nodes
func (scenario *Scenario) odDemand(imported *sltm.ImportedNetwork) ([]sltm.ODDemand, error) {
	demands := make([]sltm.ODDemand, 0, len(scenario.Demand))
	for i, entry := range scenario.Demand {
		origin, ok := imported.NodeByOSM(osm.NodeID(entry.Origin))
		if !ok {
			return nil, errors.Wrapf(sltm.ErrNoSuchNode, "demand #%d: origin OSM node %d is not in network", i, entry.Origin)
		}
		destination, ok := imported.NodeByOSM(osm.NodeID(entry.Destination))
		if !ok {
			return nil, errors.Wrapf(sltm.ErrNoSuchNode, "demand #%d: destination OSM node %d is not in network", i, entry.Destination)
		}
		demands = append(demands, sltm.ODDemand{Origin: origin, Destination: destination, Demand: entry.Flow})
	}
	return demands, nil
}
