package aq

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

const (
	// discoveryLimit is the page size of the single discovery call.
	discoveryLimit = 100

	// enrichmentCap bounds outbound per-location calls per run. This is a
	// cost and latency ceiling, not a sampling strategy.
	enrichmentCap = 50

	defaultParallelism = 8
)

// Pipeline runs the two-phase fetch: one broad discovery call (fail-fast),
// then a bounded per-location enrichment fan-out (fail-soft).
type Pipeline struct {
	client      Client
	parallelism int
}

// NewPipeline creates a Pipeline over the given upstream client.
func NewPipeline(client Client) *Pipeline {
	return &Pipeline{
		client:      client,
		parallelism: defaultParallelism,
	}
}

// Run executes the full pipeline for one request. A discovery failure is
// propagated immediately; an empty discovery returns an empty ResultSet with
// the upstream metadata preserved and no enrichment calls issued.
func (p *Pipeline) Run(ctx context.Context, req SearchRequest) (ResultSet, error) {
	if err := req.Validate(); err != nil {
		return ResultSet{}, err
	}

	candidates, meta, err := p.client.DiscoverLocations(ctx, req, discoveryLimit)
	if err != nil {
		return ResultSet{}, err
	}

	if len(candidates) == 0 {
		return ResultSet{Meta: meta}, nil
	}

	readings, skipped := p.FetchLatestReadings(ctx, candidates, req.Pollutant.Unit)
	return ResultSet{
		Readings: readings,
		Meta:     meta,
		Skipped:  skipped,
	}, nil
}

// FetchLatestReadings fetches the latest measurement for each candidate, up
// to the enrichment cap, preserving discovery order. Each call is independent
// and any per-candidate failure drops only that candidate; the second return
// value counts the drops. Readings without a resolvable coordinate are also
// dropped, since the map renderer cannot place them.
func (p *Pipeline) FetchLatestReadings(ctx context.Context, candidates []LocationCandidate, unit string) ([]Reading, int) {
	if len(candidates) > enrichmentCap {
		candidates = candidates[:enrichmentCap]
	}

	// Index-addressed results keep discovery order across the fan-out.
	results := make([]*Reading, len(candidates))

	var g errgroup.Group
	g.SetLimit(p.parallelism)

	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			m, err := p.client.LatestReading(ctx, cand.ID)
			if err != nil {
				log.Printf("DEBUG: skipping location %d (%s): %v", cand.ID, cand.Name, err)
				return nil
			}

			// Prefer the measurement's own coordinate, fall back to the
			// candidate's. Both may be absent; the post-filter handles that.
			coord := m.Coordinate
			if coord == nil {
				coord = cand.Coordinate
			}

			observed := m.ObservedAtLocal
			if observed == "" {
				observed = m.ObservedAtUTC
			}

			results[i] = &Reading{
				LocationID:   cand.ID,
				LocationName: cand.Name,
				Value:        m.Value,
				Unit:         unit,
				ObservedAt:   observed,
				Coordinate:   coord,
			}
			return nil
		})
	}

	// Workers never return errors; failures are per-item skips.
	_ = g.Wait()

	readings := make([]Reading, 0, len(candidates))
	skipped := 0
	for _, r := range results {
		if r == nil || r.Coordinate == nil || !r.Coordinate.Valid() {
			skipped++
			continue
		}
		readings = append(readings, *r)
	}
	return readings, skipped
}
