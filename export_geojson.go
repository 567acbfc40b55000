package sltm

import (
	"io"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// GeoJSON returns feature collection of segments having geometry. Flows and factors are stored as properties
func (loading *NetworkLoading) GeoJSON() *geojson.FeatureCollection {
	collection := geojson.NewFeatureCollection()
	state := loading.state
	for _, segment := range loading.network.segments {
		if len(segment.geom) < 2 {
			continue
		}
		feature := geojson.NewLineStringFeature(lineToCoordinates(segment.geom))
		feature.SetProperty("id", int(segment.ID))
		feature.SetProperty("source_node", int(segment.sourceNodeID))
		feature.SetProperty("target_node", int(segment.targetNodeID))
		feature.SetProperty("osm_way_id", int64(segment.osmWayID))
		feature.SetProperty("link_type", segment.linkType.String())
		feature.SetProperty("capacity", segment.capacity)
		feature.SetProperty("inflow", state.Inflow(segment.ID))
		feature.SetProperty("outflow", state.Outflow(segment.ID))
		feature.SetProperty("alpha", state.AcceptanceFactor(segment.ID))
		feature.SetProperty("blocked_downstream", loading.potentiallyBlocking.Test(uint(segment.targetNodeID)))
		collection.AddFeature(feature)
	}
	return collection
}

// WriteGeoJSON writes GeoJSON() output
func (loading *NetworkLoading) WriteGeoJSON(w io.Writer) error {
	bytes, err := loading.GeoJSON().MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "Can't marshal features")
	}
	_, err = w.Write(bytes)
	if err != nil {
		return errors.Wrap(err, "Can't write features")
	}
	return nil
}

// ExportToGeoJSON writes GeoJSON() output into file
func (loading *NetworkLoading) ExportToGeoJSON(fname string) error {
	return writeFile(fname, loading.WriteGeoJSON)
}

func lineToCoordinates(line orb.LineString) [][]float64 {
	coordinates := make([][]float64, len(line))
	for i, pt := range line {
		coordinates[i] = []float64{pt[0], pt[1]}
	}
	return coordinates
}
