package aq

import (
	"context"
	"encoding/json"
)

// Client is the read-only surface of the upstream air-quality API that the
// enrichment pipeline depends on.
type Client interface {
	// DiscoverLocations lists sensor locations near the request center that
	// report the requested pollutant, up to limit results. Errors are
	// *DiscoveryError. The second return value is the upstream "meta"
	// object, passed through opaquely.
	DiscoverLocations(ctx context.Context, req SearchRequest, limit int) ([]LocationCandidate, json.RawMessage, error)

	// LatestReading fetches the most recent measurement for one location.
	LatestReading(ctx context.Context, locationID int) (LatestMeasurement, error)
}
