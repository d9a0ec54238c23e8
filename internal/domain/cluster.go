package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/zeebo/blake3"
)

// EarthRadiusKm is the mean Earth radius used to turn epsilon into an angle.
const EarthRadiusKm = 6371.0088

// NoiseLabel is the cluster label of points reachable from no core point.
const NoiseLabel = -1

// ErrInvalidClusterParams marks an epsilon or minimum-points value the
// algorithm cannot run with.
var ErrInvalidClusterParams = errors.New("invalid cluster parameters")

// ClusterParams configures density-based clustering.
type ClusterParams struct {
	EpsilonKm float64 `json:"epsilon_km"`
	MinPoints int     `json:"min_points"`
}

// Validate requires a positive radius and at least one point per neighborhood.
func (p ClusterParams) Validate() error {
	if !(p.EpsilonKm > 0) || !isFinite(p.EpsilonKm) {
		return fmt.Errorf("%w: epsilon_km must be positive, got %v", ErrInvalidClusterParams, p.EpsilonKm)
	}
	if p.MinPoints < 1 {
		return fmt.Errorf("%w: min_points must be at least 1, got %d", ErrInvalidClusterParams, p.MinPoints)
	}
	return nil
}

// ClusterAssignment is the cluster membership of one ticket.
type ClusterAssignment struct {
	TicketID string `json:"id"`
	Label    int    `json:"label"`
	Color    RGB    `json:"color"`
}

// Clustering is the result of one clustering run. Assignments are index-aligned
// with the input tickets.
type Clustering struct {
	Assignments []ClusterAssignment `json:"assignments"`
	Clusters    int                 `json:"clusters"`
	Noise       int                 `json:"noise"`
}

// SpatialClusterer groups tickets with DBSCAN over great-circle distance.
type SpatialClusterer struct {
	noiseColor RGB
}

// NewSpatialClusterer creates a clusterer using the locale's noise color.
func NewSpatialClusterer(locale *Locale) *SpatialClusterer {
	return &SpatialClusterer{noiseColor: locale.NoiseColor}
}

// Cluster labels every ticket with a cluster id or NoiseLabel.
//
// A point is core when its epsilon neighborhood, itself included, holds at
// least MinPoints points. Clusters grow from core points in input order and
// ids are handed out in discovery order. A border point within reach of two
// clusters joins whichever cluster's expansion reaches it first; for a fixed
// input order and fixed parameters the partition is therefore deterministic.
func (c *SpatialClusterer) Cluster(tickets []Ticket, params ClusterParams) (Clustering, error) {
	if err := params.Validate(); err != nil {
		return Clustering{}, err
	}
	if len(tickets) == 0 {
		return Clustering{Assignments: []ClusterAssignment{}}, nil
	}

	points := make([]s2.LatLng, len(tickets))
	for i := range tickets {
		points[i] = s2.LatLngFromDegrees(tickets[i].Coordinate.Lat, tickets[i].Coordinate.Lon)
	}
	eps := s1.Angle(params.EpsilonKm / EarthRadiusKm)

	labels, clusters := dbscan(newLatIndex(points), eps, params.MinPoints)

	colors := make(map[int]RGB, clusters+1)
	result := Clustering{
		Assignments: make([]ClusterAssignment, len(tickets)),
		Clusters:    clusters,
	}
	for i, label := range labels {
		color, ok := colors[label]
		if !ok {
			color = c.colorFor(label)
			colors[label] = color
		}
		if label == NoiseLabel {
			result.Noise++
		}
		result.Assignments[i] = ClusterAssignment{TicketID: tickets[i].ID, Label: label, Color: color}
	}
	return result, nil
}

// colorFor derives a color from a hash of the label, so the same cluster id
// renders the same color on every run.
func (c *SpatialClusterer) colorFor(label int) RGB {
	if label == NoiseLabel {
		return c.noiseColor
	}
	sum := blake3.Sum256([]byte("cluster:" + strconv.Itoa(label)))
	return RGB{sum[0], sum[1], sum[2]}
}

func dbscan(idx *latIndex, eps s1.Angle, minPoints int) ([]int, int) {
	n := len(idx.points)
	neighborhoods := make([][]int, n)
	core := make([]bool, n)
	for i := range n {
		neighborhoods[i] = idx.within(i, eps)
		core[i] = len(neighborhoods[i]) >= minPoints
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = NoiseLabel
	}

	next := 0
	for i := range n {
		if labels[i] != NoiseLabel || !core[i] {
			continue
		}
		labels[i] = next
		stack := []int{i}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, q := range neighborhoods[p] {
				if labels[q] != NoiseLabel {
					continue
				}
				labels[q] = next
				if core[q] {
					stack = append(stack, q)
				}
			}
		}
		next++
	}
	return labels, next
}

// latIndex answers epsilon-neighborhood queries. Points are sorted by latitude
// so a query only measures candidates whose latitude lies within eps, since
// the great-circle distance is never smaller than the latitude difference.
type latIndex struct {
	points []s2.LatLng
	order  []int // point indices sorted by latitude
	lats   []float64
}

func newLatIndex(points []s2.LatLng) *latIndex {
	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return points[order[a]].Lat < points[order[b]].Lat
	})
	lats := make([]float64, len(order))
	for i, p := range order {
		lats[i] = points[p].Lat.Radians()
	}
	return &latIndex{points: points, order: order, lats: lats}
}

// within returns the indices of all points within eps of point i, i included,
// in ascending index order.
func (x *latIndex) within(i int, eps s1.Angle) []int {
	center := x.points[i]
	lat := center.Lat.Radians()
	lo := sort.SearchFloat64s(x.lats, lat-eps.Radians())

	var out []int
	for k := lo; k < len(x.lats) && x.lats[k] <= lat+eps.Radians(); k++ {
		j := x.order[k]
		if center.Distance(x.points[j]) <= eps {
			out = append(out, j)
		}
	}
	sort.Ints(out)
	return out
}
