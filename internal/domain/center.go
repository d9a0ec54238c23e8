package domain

// Center returns the mean position of tickets for map centering. ok is false
// when there are no tickets, in which case the caller must pick its own view.
func Center(tickets []Ticket) (Coordinate, bool) {
	if len(tickets) == 0 {
		return Coordinate{}, false
	}
	var lon, lat float64
	for i := range tickets {
		lon += tickets[i].Coordinate.Lon
		lat += tickets[i].Coordinate.Lat
	}
	n := float64(len(tickets))
	return Coordinate{Lon: lon / n, Lat: lat / n}, true
}
