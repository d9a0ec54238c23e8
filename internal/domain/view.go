package domain

import "time"

// ViewParams is everything the control surface supplies for one render.
type ViewParams struct {
	Filter  FilterParams  `json:"filter"`
	Mode    LayerKind     `json:"mode"`
	Cluster ClusterParams `json:"cluster,omitzero"`
	Style   MapStyle      `json:"style"`
}

// ViewSummary reports the sizes behind a rendered view.
type ViewSummary struct {
	Loaded   int           `json:"loaded"`
	Rejected int           `json:"rejected"`
	Degraded DegradeReport `json:"degraded"`
	Filtered int           `json:"filtered"`
	Clusters int           `json:"clusters,omitempty"`
	Noise    int           `json:"noise,omitempty"`
}

// View is the complete output of one pipeline run: the layer, the per-day
// status counts, and the map center. Center is nil when nothing matched.
type View struct {
	Params      ViewParams  `json:"params"`
	Layer       Layer       `json:"layer"`
	Counts      CountTable  `json:"counts"`
	Center      *Coordinate `json:"center"`
	HasData     bool        `json:"has_data"`
	StyleURL    string      `json:"style_url"`
	Summary     ViewSummary `json:"summary"`
	GeneratedAt time.Time   `json:"generated_at"`
}
