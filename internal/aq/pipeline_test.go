package aq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

// fakeClient is an in-memory aq.Client for pipeline tests.
type fakeClient struct {
	candidates []LocationCandidate
	meta       json.RawMessage
	discErr    error

	// measurements by location id; missing id means the latest call fails.
	measurements map[int]LatestMeasurement

	discoveryCalls  atomic.Int32
	enrichmentCalls atomic.Int32
}

func (f *fakeClient) DiscoverLocations(ctx context.Context, req SearchRequest, limit int) ([]LocationCandidate, json.RawMessage, error) {
	f.discoveryCalls.Add(1)
	if f.discErr != nil {
		return nil, nil, f.discErr
	}
	return f.candidates, f.meta, nil
}

func (f *fakeClient) LatestReading(ctx context.Context, locationID int) (LatestMeasurement, error) {
	f.enrichmentCalls.Add(1)
	m, ok := f.measurements[locationID]
	if !ok {
		return LatestMeasurement{}, errors.New("request timed out")
	}
	return m, nil
}

func ptr(v float64) *float64 { return &v }

func nycRequest() SearchRequest {
	return SearchRequest{
		Center:    Coordinate{Latitude: 40.7128, Longitude: -74.0060},
		RadiusKM:  10,
		Pollutant: PM25,
	}
}

func measurementAt(value, lat, lon float64) LatestMeasurement {
	return LatestMeasurement{
		Value:           ptr(value),
		ObservedAtLocal: "2024-05-01T12:00:00-04:00",
		Coordinate:      &Coordinate{Latitude: lat, Longitude: lon},
	}
}

// TestRunSkipsFailedEnrichment covers the common partial-failure case: three
// candidates, the middle one times out, the survivors keep discovery order.
func TestRunSkipsFailedEnrichment(t *testing.T) {
	client := &fakeClient{
		candidates: []LocationCandidate{
			{ID: 101, Name: "Midtown"},
			{ID: 102, Name: "Harlem"},
			{ID: 103, Name: "Brooklyn"},
		},
		meta: json.RawMessage(`{"found":3}`),
		measurements: map[int]LatestMeasurement{
			101: measurementAt(9.1, 40.75, -73.98),
			103: measurementAt(14.2, 40.68, -73.94),
		},
	}

	rs, err := NewPipeline(client).Run(context.Background(), nycRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rs.Readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(rs.Readings))
	}
	if rs.Readings[0].LocationID != 101 || rs.Readings[1].LocationID != 103 {
		t.Fatalf("expected readings for [101 103] in order, got [%d %d]",
			rs.Readings[0].LocationID, rs.Readings[1].LocationID)
	}
	if rs.Skipped != 1 {
		t.Fatalf("expected 1 skipped candidate, got %d", rs.Skipped)
	}
	if string(rs.Meta) != `{"found":3}` {
		t.Fatalf("expected meta pass-through, got %s", rs.Meta)
	}
}

// TestRunEmptyDiscovery verifies an empty discovery short-circuits: no
// enrichment calls, empty result, meta preserved.
func TestRunEmptyDiscovery(t *testing.T) {
	client := &fakeClient{meta: json.RawMessage(`{"found":0}`)}

	rs, err := NewPipeline(client).Run(context.Background(), nycRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rs.Readings) != 0 {
		t.Fatalf("expected empty result set, got %d readings", len(rs.Readings))
	}
	if got := client.enrichmentCalls.Load(); got != 0 {
		t.Fatalf("expected 0 enrichment calls, got %d", got)
	}
	if string(rs.Meta) != `{"found":0}` {
		t.Fatalf("expected meta pass-through, got %s", rs.Meta)
	}
}

// TestRunDiscoveryFailure verifies discovery errors fail fast, before any
// enrichment call is attempted.
func TestRunDiscoveryFailure(t *testing.T) {
	client := &fakeClient{
		discErr: &DiscoveryError{Status: 422, Err: errors.New("invalid parameters")},
	}

	_, err := NewPipeline(client).Run(context.Background(), nycRequest())

	var de *DiscoveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DiscoveryError, got %v", err)
	}
	if de.Status != 422 {
		t.Fatalf("expected status 422, got %d", de.Status)
	}
	if got := client.enrichmentCalls.Load(); got != 0 {
		t.Fatalf("expected 0 enrichment calls after discovery failure, got %d", got)
	}
}

// TestEnrichmentCapped verifies at most 50 enrichment calls are issued and
// discovery order is preserved across the capped fan-out.
func TestEnrichmentCapped(t *testing.T) {
	client := &fakeClient{measurements: map[int]LatestMeasurement{}}
	for i := 0; i < 60; i++ {
		id := 1000 + i
		client.candidates = append(client.candidates, LocationCandidate{
			ID:   id,
			Name: fmt.Sprintf("Station %d", id),
		})
		client.measurements[id] = measurementAt(float64(i), 40.7, -74.0)
	}

	rs, err := NewPipeline(client).Run(context.Background(), nycRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := client.enrichmentCalls.Load(); got != 50 {
		t.Fatalf("expected exactly 50 enrichment calls, got %d", got)
	}
	if len(rs.Readings) != 50 {
		t.Fatalf("expected 50 readings, got %d", len(rs.Readings))
	}
	for i, r := range rs.Readings {
		if r.LocationID != 1000+i {
			t.Fatalf("reading %d out of order: got location %d", i, r.LocationID)
		}
	}
}

// TestCoordinateFallback verifies the coordinate resolution chain: the
// measurement's own coordinate wins, the candidate's fills in when the
// measurement has none, and readings with neither are dropped.
func TestCoordinateFallback(t *testing.T) {
	candCoord := &Coordinate{Latitude: 40.70, Longitude: -74.01}
	client := &fakeClient{
		candidates: []LocationCandidate{
			{ID: 1, Name: "own coordinate", Coordinate: candCoord},
			{ID: 2, Name: "candidate fallback", Coordinate: candCoord},
			{ID: 3, Name: "no coordinate at all"},
		},
		measurements: map[int]LatestMeasurement{
			1: measurementAt(5, 40.75, -73.99),
			2: {Value: ptr(6)},
			3: {Value: ptr(7)},
		},
	}

	rs, err := NewPipeline(client).Run(context.Background(), nycRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rs.Readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(rs.Readings))
	}
	if rs.Readings[0].Coordinate.Latitude != 40.75 {
		t.Errorf("expected measurement coordinate to win, got %v", rs.Readings[0].Coordinate)
	}
	if rs.Readings[1].Coordinate.Latitude != 40.70 {
		t.Errorf("expected candidate coordinate fallback, got %v", rs.Readings[1].Coordinate)
	}
	if rs.Skipped != 1 {
		t.Fatalf("expected the coordinate-less reading to be skipped, got %d", rs.Skipped)
	}
}

// TestReadingWithoutValueRetained verifies a missing value does not drop a
// reading; only missing coordinates do.
func TestReadingWithoutValueRetained(t *testing.T) {
	client := &fakeClient{
		candidates: []LocationCandidate{{ID: 1, Name: "valueless"}},
		measurements: map[int]LatestMeasurement{
			1: {Coordinate: &Coordinate{Latitude: 40.7, Longitude: -74.0}},
		},
	}

	rs, err := NewPipeline(client).Run(context.Background(), nycRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs.Readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(rs.Readings))
	}
	if rs.Readings[0].Value != nil {
		t.Fatalf("expected nil value, got %v", *rs.Readings[0].Value)
	}
}

// TestRunValidatesRequest verifies invalid requests fail before any network
// activity.
func TestRunValidatesRequest(t *testing.T) {
	client := &fakeClient{}
	p := NewPipeline(client)

	cases := []SearchRequest{
		{Center: Coordinate{Latitude: 91}, RadiusKM: 10, Pollutant: PM25},
		{Center: Coordinate{Latitude: 40.7, Longitude: -74.0}, RadiusKM: 0, Pollutant: PM25},
		{Center: Coordinate{Latitude: 40.7, Longitude: -74.0}, RadiusKM: 10},
	}
	for i, req := range cases {
		if _, err := p.Run(context.Background(), req); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
	if got := client.discoveryCalls.Load(); got != 0 {
		t.Fatalf("expected no discovery calls for invalid requests, got %d", got)
	}
}
