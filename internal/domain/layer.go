package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAssignmentMismatch marks a cluster layer request whose assignments were
// not computed over exactly the given tickets.
var ErrAssignmentMismatch = errors.New("cluster assignments do not match tickets")

// LayerKind tags the renderable layer variants.
type LayerKind string

const (
	LayerPoints  LayerKind = "points"
	LayerHeatmap LayerKind = "heatmap"
	LayerCluster LayerKind = "cluster"
)

// Fixed rendering constants handed to the renderer.
const (
	PointRadiusMeters   = 50
	HeatmapRadiusPixels = 50
	LayerOpacity        = 0.8
)

// ParseLayerKind accepts a layer name case-insensitively.
func ParseLayerKind(s string) (LayerKind, error) {
	switch k := LayerKind(strings.ToLower(strings.TrimSpace(s))); k {
	case LayerPoints, LayerHeatmap, LayerCluster:
		return k, nil
	case "":
		return LayerPoints, nil
	default:
		return "", fmt.Errorf("%w: unknown map mode %q", ErrInvalidParams, s)
	}
}

// LayerPoint is one renderable sample. Position is [lon, lat].
type LayerPoint struct {
	ID       string     `json:"id"`
	Position [2]float64 `json:"position"`
	Color    *RGB       `json:"color,omitempty"`
	Weight   float64    `json:"weight,omitempty"`
	Cluster  *int       `json:"cluster,omitempty"`
}

// Layer is a data-only descriptor for the map renderer.
type Layer struct {
	Kind         LayerKind    `json:"kind"`
	Points       []LayerPoint `json:"points"`
	RadiusMeters float64      `json:"radius_meters,omitempty"`
	RadiusPixels int          `json:"radius_pixels,omitempty"`
	Opacity      float64      `json:"opacity"`
	Pickable     bool         `json:"pickable"`
}

// LayerBuilder projects tickets into layer descriptors.
type LayerBuilder struct {
	colors *ColorAssigner
}

// NewLayerBuilder creates a builder coloring points with colors.
func NewLayerBuilder(colors *ColorAssigner) *LayerBuilder {
	return &LayerBuilder{colors: colors}
}

// Build produces the layer for kind. The cluster kind requires clustering to
// have been computed over exactly tickets, in the same order.
func (b *LayerBuilder) Build(kind LayerKind, tickets []Ticket, clustering *Clustering) (Layer, error) {
	switch kind {
	case LayerPoints:
		layer := Layer{Kind: kind, RadiusMeters: PointRadiusMeters, Opacity: LayerOpacity, Pickable: true}
		layer.Points = make([]LayerPoint, len(tickets))
		for i := range tickets {
			color := b.colors.Assign(tickets[i].State)
			layer.Points[i] = LayerPoint{ID: tickets[i].ID, Position: position(tickets[i]), Color: &color}
		}
		return layer, nil

	case LayerHeatmap:
		layer := Layer{Kind: kind, RadiusPixels: HeatmapRadiusPixels, Opacity: LayerOpacity}
		layer.Points = make([]LayerPoint, len(tickets))
		for i := range tickets {
			layer.Points[i] = LayerPoint{ID: tickets[i].ID, Position: position(tickets[i]), Weight: 1}
		}
		return layer, nil

	case LayerCluster:
		if err := checkAssignments(tickets, clustering); err != nil {
			return Layer{}, err
		}
		layer := Layer{Kind: kind, RadiusMeters: PointRadiusMeters, Opacity: LayerOpacity, Pickable: true}
		layer.Points = make([]LayerPoint, len(tickets))
		for i := range tickets {
			a := clustering.Assignments[i]
			layer.Points[i] = LayerPoint{ID: tickets[i].ID, Position: position(tickets[i]), Color: &a.Color, Cluster: &a.Label}
		}
		return layer, nil

	default:
		return Layer{}, fmt.Errorf("%w: unknown map mode %q", ErrInvalidParams, kind)
	}
}

func checkAssignments(tickets []Ticket, clustering *Clustering) error {
	if clustering == nil {
		return fmt.Errorf("%w: no assignments supplied", ErrAssignmentMismatch)
	}
	if len(clustering.Assignments) != len(tickets) {
		return fmt.Errorf("%w: %d assignments for %d tickets", ErrAssignmentMismatch,
			len(clustering.Assignments), len(tickets))
	}
	for i := range tickets {
		if clustering.Assignments[i].TicketID != tickets[i].ID {
			return fmt.Errorf("%w: assignment %d is for ticket %q, not %q", ErrAssignmentMismatch,
				i, clustering.Assignments[i].TicketID, tickets[i].ID)
		}
	}
	return nil
}

func position(t Ticket) [2]float64 {
	return [2]float64{t.Coordinate.Lon, t.Coordinate.Lat}
}

// MapStyle names a basemap style.
type MapStyle string

const (
	StyleDark      MapStyle = "dark"
	StyleLight     MapStyle = "light"
	StyleRoad      MapStyle = "road"
	StyleSatellite MapStyle = "satellite"
)

var styleURLs = map[MapStyle]string{
	StyleDark:      "mapbox://styles/mapbox/dark-v10",
	StyleLight:     "mapbox://styles/mapbox/light-v10",
	StyleRoad:      "mapbox://styles/mapbox/streets-v11",
	StyleSatellite: "mapbox://styles/mapbox/satellite-v9",
}

// ParseMapStyle accepts a style name case-insensitively. Empty input yields
// fallback.
func ParseMapStyle(s string, fallback MapStyle) (MapStyle, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return fallback, nil
	}
	if _, ok := styleURLs[MapStyle(s)]; !ok {
		return "", fmt.Errorf("%w: unknown map style %q", ErrInvalidParams, s)
	}
	return MapStyle(s), nil
}

// URL returns the basemap style URL handed to the renderer.
func (s MapStyle) URL() string {
	return styleURLs[s]
}
