package sltm

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
)

type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

// ImportedNetwork is network built from OSM data together with mapping of OSM nodes to network nodes
type ImportedNetwork struct {
	Network *Network
	nodes   map[osm.NodeID]NodeID
}

// NodeByOSM returns network node created for OSM node
func (imported *ImportedNetwork) NodeByOSM(osmID osm.NodeID) (NodeID, bool) {
	id, ok := imported.nodes[osmID]
	return id, ok
}

type osmNodeData struct {
	point       orb.Point
	name        string
	controlType ControlType
	useCount    int
}

func newScanner(ctx context.Context, filename string, reader io.Reader) (OSMScanner, error) {
	// Guess file extension and prepare correct scanner
	ext := filepath.Ext(filename)
	switch ext {
	case ".osm", ".xml":
		return osmxml.New(ctx, reader), nil
	case ".pbf":
		return osmpbf.New(ctx, reader, 4), nil
	default:
		return nil, errors.Errorf("File extension '%s' for file '%s' is not handled yet", ext, filename)
	}
}

// ImportNetworkFromOSM builds network of roads for motor vehicles from *.osm, *.xml or *.osm.pbf file.
// Ways are split at crossings (nodes shared by several ways, way ends and signals); two-way roads give
// segment per direction. Capacity is evaluated from lanes and link type
func ImportNetworkFromOSM(ctx context.Context, filename string, log *slog.Logger) (*ImportedNetwork, error) {
	if log == nil {
		log = slog.Default()
	}
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open file '%s'", filename)
	}
	defer file.Close()

	st := time.Now()
	ways, nodesSeen, err := scanWays(ctx, filename, file, log)
	if err != nil {
		return nil, errors.Wrap(err, "Can't process ways")
	}
	log.Info("Ways have been processed", "ways", len(ways), "elapsed", time.Since(st))

	// Seek file to start
	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		return nil, errors.Wrap(err, "Can't repeat seeking after ways scanning")
	}

	st = time.Now()
	nodes, err := scanNodes(ctx, filename, file, nodesSeen)
	if err != nil {
		return nil, errors.Wrap(err, "Can't process nodes")
	}
	log.Info("Nodes have been processed", "nodes", len(nodes), "elapsed", time.Since(st))

	st = time.Now()
	imported, err := buildNetwork(ways, nodes, log)
	if err != nil {
		return nil, err
	}
	log.Info("Network has been built", "nodes", imported.Network.NodesNum(), "segments", imported.Network.SegmentsNum(), "elapsed", time.Since(st))
	return imported, nil
}

func scanWays(ctx context.Context, filename string, reader io.Reader, log *slog.Logger) ([]*wayData, map[osm.NodeID]struct{}, error) {
	scanner, err := newScanner(ctx, filename, reader)
	if err != nil {
		return nil, nil, err
	}
	defer scanner.Close()

	ways := []*wayData{}
	nodesSeen := make(map[osm.NodeID]struct{})
	for scanner.Scan() {
		obj := scanner.Object()
		if obj.ObjectID().Type() != osm.TypeWay {
			continue
		}
		way := newWayData(obj.(*osm.Way), log)
		if !way.prepare(log) {
			continue
		}
		// Mark way's nodes as seen to drop the rest of nodes further
		for _, nodeID := range way.nodes {
			nodesSeen[nodeID] = struct{}{}
		}
		ways = append(ways, way)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return ways, nodesSeen, nil
}

func scanNodes(ctx context.Context, filename string, reader io.Reader, nodesSeen map[osm.NodeID]struct{}) (map[osm.NodeID]*osmNodeData, error) {
	scanner, err := newScanner(ctx, filename, reader)
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	nodes := make(map[osm.NodeID]*osmNodeData, len(nodesSeen))
	for scanner.Scan() {
		obj := scanner.Object()
		if obj.ObjectID().Type() != osm.TypeNode {
			continue
		}
		node := obj.(*osm.Node)
		if _, ok := nodesSeen[node.ID]; !ok {
			continue
		}
		controlType := NOT_SIGNAL
		if node.Tags.Find("highway") == "traffic_signals" {
			controlType = IS_SIGNAL
		}
		nodes[node.ID] = &osmNodeData{
			point:       orb.Point{node.Lon, node.Lat},
			name:        node.Tags.Find("name"),
			controlType: controlType,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nodes, nil
}

// buildNetwork splits ways at crossings and creates segments
func buildNetwork(ways []*wayData, nodes map[osm.NodeID]*osmNodeData, log *slog.Logger) (*ImportedNetwork, error) {
	imported := &ImportedNetwork{
		Network: NewNetwork(),
		nodes:   make(map[osm.NodeID]NodeID),
	}
	prepared := make([]*wayData, 0, len(ways))
	for _, way := range ways {
		complete := true
		for _, nodeID := range way.nodes {
			if _, ok := nodes[nodeID]; !ok {
				complete = false
				break
			}
		}
		if !complete {
			// Usually it happens for ways clipped by extract boundary
			log.Warn("Way references missing node, skip it", "way", way.ID)
			continue
		}
		for _, nodeID := range way.nodes {
			nodes[nodeID].useCount++
		}
		prepared = append(prepared, way)
	}

	for _, way := range prepared {
		forwardLanes, backwardLanes := way.directionLanes()
		start := 0
		for i := 1; i < len(way.nodes); i++ {
			node := nodes[way.nodes[i]]
			isCrossing := i == len(way.nodes)-1 || node.useCount >= 2 || node.controlType == IS_SIGNAL
			if !isCrossing {
				continue
			}
			piece := way.nodes[start : i+1]
			start = i
			if piece[0] == piece[len(piece)-1] {
				log.Debug("Self-looped piece of way has been skipped", "way", way.ID)
				continue
			}
			geom := make(orb.LineString, 0, len(piece))
			for _, nodeID := range piece {
				geom = append(geom, nodes[nodeID].point)
			}
			source := imported.nodeFor(piece[0], nodes[piece[0]])
			target := imported.nodeFor(piece[len(piece)-1], nodes[piece[len(piece)-1]])
			if way.isReversed {
				source, target = target, source
				geom = reversedLine(geom)
			}
			if err := imported.addSegment(way, source, target, geom, forwardLanes); err != nil {
				return nil, err
			}
			if !way.oneway {
				if err := imported.addSegment(way, target, source, reversedLine(geom), backwardLanes); err != nil {
					return nil, err
				}
			}
		}
	}
	return imported, nil
}

func (imported *ImportedNetwork) nodeFor(osmID osm.NodeID, data *osmNodeData) NodeID {
	if id, ok := imported.nodes[osmID]; ok {
		return id
	}
	id := imported.Network.AddNode(
		WithOSMNodeID(osmID),
		WithNodeGeometry(data.point),
		WithNodeName(data.name),
		WithControlType(data.controlType),
	)
	imported.nodes[osmID] = id
	return id
}

func (imported *ImportedNetwork) addSegment(way *wayData, source, target NodeID, geom orb.LineString, lanes int) error {
	_, err := imported.Network.AddSegment(source, target, way.linkType.DefaultCapacity(lanes),
		WithSegmentGeometry(geom),
		WithLanes(lanes),
		WithFreeSpeed(way.freeSpeed()),
		WithLinkType(way.linkType),
		WithLinkConnectionType(way.linkConnectionType),
		WithOSMWayID(way.ID),
		WithSegmentName(way.name),
	)
	if err != nil {
		return errors.Wrapf(err, "Can't add segment for way %d", way.ID)
	}
	return nil
}

func reversedLine(line orb.LineString) orb.LineString {
	reversed := make(orb.LineString, len(line))
	for i := range line {
		reversed[len(line)-1-i] = line[i]
	}
	return reversed
}
