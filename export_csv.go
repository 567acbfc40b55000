package sltm

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
)

// ExportToCSV writes loaded network into three files: fname_nodes.csv, fname_segments.csv and fname_turns.csv
func (loading *NetworkLoading) ExportToCSV(fname string) error {
	fnameParts := strings.Split(fname, ".csv")
	fnameNodes := fnameParts[0] + "_nodes.csv"
	fnameSegments := fnameParts[0] + "_segments.csv"
	fnameTurns := fnameParts[0] + "_turns.csv"

	err := writeFile(fnameNodes, loading.WriteNodesCSV)
	if err != nil {
		return errors.Wrap(err, "Can't export nodes")
	}
	err = writeFile(fnameSegments, loading.WriteSegmentsCSV)
	if err != nil {
		return errors.Wrap(err, "Can't export segments")
	}
	err = writeFile(fnameTurns, loading.WriteTurnsCSV)
	if err != nil {
		return errors.Wrap(err, "Can't export turns")
	}
	return nil
}

func writeFile(fname string, write func(io.Writer) error) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()
	return write(file)
}

func newCSVWriter(w io.Writer) *csv.Writer {
	writer := csv.NewWriter(w)
	writer.Comma = ';'
	return writer
}

// WriteNodesCSV writes nodes with their tracking and blocking status
func (loading *NetworkLoading) WriteNodesCSV(w io.Writer) error {
	writer := newCSVWriter(w)
	err := writer.Write([]string{"id", "osm_node_id", "control_type", "tracked", "potentially_blocking", "entries", "exits", "name", "longitude", "latitude"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	for _, node := range loading.network.nodes {
		err = writer.Write([]string{
			fmt.Sprintf("%d", node.ID),
			fmt.Sprintf("%d", node.osmNodeID),
			node.controlType.String(),
			fmt.Sprintf("%t", loading.tracker.IsTracked(node.ID)),
			fmt.Sprintf("%t", loading.potentiallyBlocking.Test(uint(node.ID))),
			fmt.Sprintf("%d", len(node.incomingSegments)),
			fmt.Sprintf("%d", len(node.outcomingSegments)),
			node.name,
			fmt.Sprintf("%f", node.geom[0]),
			fmt.Sprintf("%f", node.geom[1]),
		})
		if err != nil {
			return errors.Wrap(err, "Can't write node")
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSegmentsCSV writes segments with inflow, outflow and flow acceptance factors
func (loading *NetworkLoading) WriteSegmentsCSV(w io.Writer) error {
	writer := newCSVWriter(w)
	err := writer.Write([]string{"id", "source_node", "target_node", "osm_way_id", "link_type", "link_connection_type", "lanes", "free_speed", "capacity", "length_meters", "sending_flow", "inflow", "outflow", "alpha", "name", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	state := loading.state
	for _, segment := range loading.network.segments {
		err = writer.Write([]string{
			fmt.Sprintf("%d", segment.ID),
			fmt.Sprintf("%d", segment.sourceNodeID),
			fmt.Sprintf("%d", segment.targetNodeID),
			fmt.Sprintf("%d", segment.osmWayID),
			segment.linkType.String(),
			segment.linkConnectionType.String(),
			fmt.Sprintf("%d", segment.lanes),
			fmt.Sprintf("%f", segment.freeSpeed),
			fmt.Sprintf("%f", segment.capacity),
			fmt.Sprintf("%f", segment.lengthMeters),
			fmt.Sprintf("%f", state.SendingFlow(segment.ID)),
			fmt.Sprintf("%f", state.Inflow(segment.ID)),
			fmt.Sprintf("%f", state.Outflow(segment.ID)),
			fmt.Sprintf("%f", state.AcceptanceFactor(segment.ID)),
			segment.name,
			marshalLine(segment.geom),
		})
		if err != nil {
			return errors.Wrap(err, "Can't write segment")
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTurnsCSV writes turn flows recorded at tracked nodes. Terminating flows have empty exit
func (loading *NetworkLoading) WriteTurnsCSV(w io.Writer) error {
	writer := newCSVWriter(w)
	err := writer.Write([]string{"node_id", "entry_id", "exit_id", "movement_type", "sending_flow", "accepted_flow", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	net := loading.network
	loading.turnFlows.Range(func(key TurnKey, sending, accepted float64) bool {
		entry, exit := key.Entry(), key.Exit()
		exitStr := ""
		movement := MOVEMENT_UNDEFINED
		geom := ""
		if exit != NoSegment {
			exitStr = fmt.Sprintf("%d", exit)
			movement = net.MovementBetween(entry, exit)
			geom = marshalTurnGeom(net.segments[entry].geom, net.segments[exit].geom)
		}
		err = writer.Write([]string{
			fmt.Sprintf("%d", net.segments[entry].targetNodeID),
			fmt.Sprintf("%d", entry),
			exitStr,
			movement.String(),
			fmt.Sprintf("%f", sending),
			fmt.Sprintf("%f", accepted),
			geom,
		})
		return err == nil
	})
	if err != nil {
		return errors.Wrap(err, "Can't write turn")
	}
	writer.Flush()
	return writer.Error()
}

func marshalLine(line orb.LineString) string {
	if len(line) < 2 {
		return ""
	}
	return wkt.MarshalString(line)
}

// marshalTurnGeom returns line connecting last piece of entry with first piece of exit
func marshalTurnGeom(entry, exit orb.LineString) string {
	if len(entry) < 2 || len(exit) < 2 {
		return ""
	}
	return wkt.MarshalString(orb.LineString{entry[len(entry)-2], entry[len(entry)-1], exit[1]})
}
