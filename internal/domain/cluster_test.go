package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kmPerDegreeLat is the length of one degree of latitude on the mean sphere.
const kmPerDegreeLat = EarthRadiusKm * 3.141592653589793 / 180

// northOf returns a coordinate km kilometers due north of c.
func northOf(c Coordinate, km float64) Coordinate {
	return Coordinate{Lon: c.Lon, Lat: c.Lat + km/kmPerDegreeLat}
}

func ticketAt(id string, c Coordinate) Ticket {
	return Ticket{ID: id, Coordinate: c}
}

var origin = Coordinate{Lon: 100.50, Lat: 13.75}

func newTestClusterer() *SpatialClusterer {
	return NewSpatialClusterer(DefaultLocale())
}

func TestCluster_NearbyPairSharesLabel(t *testing.T) {
	tickets := []Ticket{
		ticketAt("a", origin),
		ticketAt("b", northOf(origin, 0.05)),
	}

	result, err := newTestClusterer().Cluster(tickets, ClusterParams{EpsilonKm: 0.3, MinPoints: 2})
	require.NoError(t, err)
	require.Len(t, result.Assignments, 2)

	assert.GreaterOrEqual(t, result.Assignments[0].Label, 0)
	assert.Equal(t, result.Assignments[0].Label, result.Assignments[1].Label)
	assert.Equal(t, 1, result.Clusters)
	assert.Equal(t, 0, result.Noise)
}

func TestCluster_IsolatedTicketIsNoise(t *testing.T) {
	tickets := []Ticket{
		ticketAt("a", origin),
		ticketAt("b", northOf(origin, 0.1)),
		ticketAt("c", northOf(origin, 0.2)),
		ticketAt("far", northOf(origin, 5)),
	}

	result, err := newTestClusterer().Cluster(tickets, ClusterParams{EpsilonKm: 0.3, MinPoints: 2})
	require.NoError(t, err)

	assert.Equal(t, NoiseLabel, result.Assignments[3].Label)
	assert.Equal(t, RGB{128, 128, 128}, result.Assignments[3].Color)
	assert.Equal(t, 1, result.Noise)
	assert.Equal(t, 0, result.Assignments[0].Label)
}

func TestCluster_EpsilonBoundary(t *testing.T) {
	tickets := []Ticket{
		ticketAt("a", origin),
		ticketAt("b", northOf(origin, 0.29)),
		ticketAt("c", northOf(origin, 0.29+0.31)),
	}

	result, err := newTestClusterer().Cluster(tickets, ClusterParams{EpsilonKm: 0.3, MinPoints: 2})
	require.NoError(t, err)

	assert.Equal(t, result.Assignments[0].Label, result.Assignments[1].Label)
	assert.Equal(t, NoiseLabel, result.Assignments[2].Label)
}

func TestCluster_ChainsThroughCorePoints(t *testing.T) {
	// Consecutive points are 0.2 km apart; the ends are 0.8 km apart, beyond
	// epsilon, but every point is core so they chain into one cluster.
	var tickets []Ticket
	for i := range 5 {
		tickets = append(tickets, ticketAt(fmt.Sprint(i), northOf(origin, 0.2*float64(i))))
	}

	result, err := newTestClusterer().Cluster(tickets, ClusterParams{EpsilonKm: 0.3, MinPoints: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Clusters)
	for _, a := range result.Assignments {
		assert.Equal(t, 0, a.Label)
	}
}

func TestCluster_BorderPointJoinsFirstCluster(t *testing.T) {
	// Two dense groups with a point between them that reaches exactly one
	// core point on each side. It is not core itself, so it is a border point
	// of both clusters.
	var tickets []Ticket
	for i, km := range []float64{0, 0.005, 0.010, 0.015} {
		tickets = append(tickets, ticketAt(fmt.Sprintf("l%d", i+1), northOf(origin, km)))
	}
	tickets = append(tickets, ticketAt("m", northOf(origin, 0.26)))
	for i, km := range []float64{0.505, 0.510, 0.515, 0.520} {
		tickets = append(tickets, ticketAt(fmt.Sprintf("r%d", i+1), northOf(origin, km)))
	}
	params := ClusterParams{EpsilonKm: 0.2475, MinPoints: 4}

	result, err := newTestClusterer().Cluster(tickets, params)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Clusters)
	assert.Equal(t, result.Assignments[0].Label, result.Assignments[4].Label, "border point binds to the first-discovered cluster")
	assert.NotEqual(t, result.Assignments[8].Label, result.Assignments[4].Label)

	// Reversing the input makes the right group the first discovered.
	reversed := make([]Ticket, len(tickets))
	for i := range tickets {
		reversed[len(tickets)-1-i] = tickets[i]
	}
	result, err = newTestClusterer().Cluster(reversed, params)
	require.NoError(t, err)
	assert.Equal(t, "r4", result.Assignments[0].TicketID)
	assert.Equal(t, result.Assignments[0].Label, result.Assignments[4].Label)
	assert.NotEqual(t, result.Assignments[8].Label, result.Assignments[4].Label)
}

func TestCluster_MinPointsOneMakesEveryPointCore(t *testing.T) {
	tickets := []Ticket{ticketAt("a", origin), ticketAt("b", northOf(origin, 10))}

	result, err := newTestClusterer().Cluster(tickets, ClusterParams{EpsilonKm: 0.1, MinPoints: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Clusters)
	assert.Equal(t, 0, result.Assignments[0].Label)
	assert.Equal(t, 1, result.Assignments[1].Label)
}

func TestCluster_EveryTicketLabeledAndDeterministic(t *testing.T) {
	var tickets []Ticket
	for i := range 200 {
		// A loose grid of points with a few dense pockets.
		lat := origin.Lat + float64(i%20)*0.0021 + float64(i%3)*0.0001
		lon := origin.Lon + float64(i/20)*0.0027
		tickets = append(tickets, ticketAt(fmt.Sprint(i), Coordinate{Lon: lon, Lat: lat}))
	}
	params := ClusterParams{EpsilonKm: 0.25, MinPoints: 3}
	c := newTestClusterer()

	first, err := c.Cluster(tickets, params)
	require.NoError(t, err)
	require.Len(t, first.Assignments, len(tickets))
	for i, a := range first.Assignments {
		assert.Equal(t, tickets[i].ID, a.TicketID)
		assert.GreaterOrEqual(t, a.Label, NoiseLabel)
		assert.Less(t, a.Label, first.Clusters)
	}

	second, err := c.Cluster(tickets, params)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCluster_ColorsStablePerLabel(t *testing.T) {
	c := newTestClusterer()
	assert.Equal(t, c.colorFor(3), c.colorFor(3))
	assert.NotEqual(t, c.colorFor(0), c.colorFor(1))
	assert.Equal(t, RGB{128, 128, 128}, c.colorFor(NoiseLabel))
}

func TestCluster_Empty(t *testing.T) {
	result, err := newTestClusterer().Cluster(nil, ClusterParams{EpsilonKm: 0.3, MinPoints: 2})
	require.NoError(t, err)
	assert.Empty(t, result.Assignments)
	assert.NotNil(t, result.Assignments)
	assert.Zero(t, result.Clusters)
}

func TestCluster_InvalidParams(t *testing.T) {
	tickets := []Ticket{ticketAt("a", origin)}
	for _, p := range []ClusterParams{
		{EpsilonKm: 0, MinPoints: 2},
		{EpsilonKm: -1, MinPoints: 2},
		{EpsilonKm: 0.3, MinPoints: 0},
	} {
		_, err := newTestClusterer().Cluster(tickets, p)
		assert.ErrorIs(t, err, ErrInvalidClusterParams, "params %+v", p)
	}

	// Parameters are checked even when there is nothing to cluster.
	_, err := newTestClusterer().Cluster(nil, ClusterParams{EpsilonKm: 0, MinPoints: 2})
	assert.ErrorIs(t, err, ErrInvalidClusterParams)
}
