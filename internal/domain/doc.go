// Package domain models geotagged civic-complaint tickets and the pure
// transformations that turn them into map layers and per-day status counts.
//
// # Source Conventions
//
// Coordinate format:
//
//	"<lon>,<lat>" in decimal degrees, e.g. "100.50,13.75".
//	Longitude comes first. A row whose coordinate does not split into two
//	finite numbers cannot be placed on a map and is rejected.
//
// Set-like fields (categories, organizations):
//
//	Exported as literal collections: "{'ถนน', 'ทางเท้า'}", "set()", and for
//	organizations also lists and tuples. Anything unreadable becomes the
//	empty set and is counted in [DegradeReport], never raised.
//
// Status labels:
//
//	Source rows carry Thai labels (เสร็จสิ้น, กำลังดำเนินการ, รอรับเรื่อง) mapped
//	to done, in_progress and pending by [Locale.CanonicalState]. Empty status
//	becomes unknown. Other labels pass through and color as unknown.
//
// # Pipeline
//
//	[Parser] → [FilterEngine] → [ColorAssigner] / [SpatialClusterer]
//	        → [LayerBuilder] and [Aggregate]
//
// Every stage is a function of its input and explicit parameters; nothing is
// retained between runs.
//
// # Clustering
//
// [SpatialClusterer] runs DBSCAN with the haversine metric. Epsilon is given in
// kilometers and divided by [EarthRadiusKm] to get the angular radius. Cluster
// colors are derived from a hash of the cluster id, so they are stable across
// runs; noise points use the locale's noise color.
package domain
