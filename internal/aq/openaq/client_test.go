package openaq

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gothamair/airpulse/internal/aq"
)

func testRequest() aq.SearchRequest {
	return aq.SearchRequest{
		Center:    aq.Coordinate{Latitude: 40.7128, Longitude: -74.0060},
		RadiusKM:  10,
		Pollutant: aq.PM25,
	}
}

func TestDiscoverLocations(t *testing.T) {
	var gotQuery map[string]string
	var gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/locations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotKey = r.Header.Get("X-API-Key")
		gotQuery = map[string]string{
			"coordinates":   r.URL.Query().Get("coordinates"),
			"radius":        r.URL.Query().Get("radius"),
			"parameters_id": r.URL.Query().Get("parameters_id"),
			"limit":         r.URL.Query().Get("limit"),
			"page":          r.URL.Query().Get("page"),
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"meta": {"found": 2},
			"results": [
				{"id": 101, "name": "Midtown", "coordinates": {"latitude": 40.75, "longitude": -73.98}},
				{"id": 102, "name": "", "coordinates": null}
			]
		}`))
	}))
	defer srv.Close()

	c := newClient(srv.Client(), "test-key", srv.URL)
	candidates, meta, err := c.DiscoverLocations(context.Background(), testRequest(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("expected X-API-Key header, got %q", gotKey)
	}
	if gotQuery["radius"] != "10000" {
		t.Errorf("expected radius 10000 meters, got %q", gotQuery["radius"])
	}
	if gotQuery["parameters_id"] != "2" {
		t.Errorf("expected parameters_id 2, got %q", gotQuery["parameters_id"])
	}
	if gotQuery["limit"] != "100" || gotQuery["page"] != "1" {
		t.Errorf("expected limit=100 page=1, got limit=%q page=%q", gotQuery["limit"], gotQuery["page"])
	}

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Coordinate == nil || candidates[0].Coordinate.Latitude != 40.75 {
		t.Errorf("expected parsed coordinate, got %v", candidates[0].Coordinate)
	}
	if candidates[1].Name != "Location 102" {
		t.Errorf("expected fallback name for unnamed location, got %q", candidates[1].Name)
	}
	if candidates[1].Coordinate != nil {
		t.Errorf("expected nil coordinate for null coordinates, got %v", candidates[1].Coordinate)
	}
	if string(meta) != `{"found": 2}` {
		t.Errorf("expected meta pass-through, got %s", meta)
	}
}

func TestDiscoverLocationsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := newClient(srv.Client(), "test-key", srv.URL)
	_, _, err := c.DiscoverLocations(context.Background(), testRequest(), 100)

	var de *aq.DiscoveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DiscoveryError, got %v", err)
	}
	if de.Status != 422 {
		t.Fatalf("expected status 422, got %d", de.Status)
	}
}

func TestDiscoverLocationsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := newClient(srv.Client(), "test-key", srv.URL)
	_, _, err := c.DiscoverLocations(context.Background(), testRequest(), 100)

	var de *aq.DiscoveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DiscoveryError, got %v", err)
	}
	if !errors.Is(err, aq.ErrMalformedResponse) {
		t.Fatalf("expected error to wrap ErrMalformedResponse, got %v", err)
	}
}

func TestLatestReading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/locations/101/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "1" || r.URL.Query().Get("page") != "1" {
			t.Errorf("expected limit=1 page=1, got %s", r.URL.RawQuery)
		}

		w.Write([]byte(`{
			"results": [{
				"value": 12.4,
				"datetime": {"local": "2024-05-01T12:00:00-04:00", "utc": "2024-05-01T16:00:00Z"},
				"coordinates": {"latitude": 40.75, "longitude": -73.98}
			}]
		}`))
	}))
	defer srv.Close()

	c := newClient(srv.Client(), "test-key", srv.URL)
	m, err := c.LatestReading(context.Background(), 101)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Value == nil || *m.Value != 12.4 {
		t.Errorf("expected value 12.4, got %v", m.Value)
	}
	if m.ObservedAtLocal != "2024-05-01T12:00:00-04:00" {
		t.Errorf("unexpected local time %q", m.ObservedAtLocal)
	}
	if m.Coordinate == nil || m.Coordinate.Longitude != -73.98 {
		t.Errorf("expected parsed coordinate, got %v", m.Coordinate)
	}
}

func TestLatestReadingEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	c := newClient(srv.Client(), "test-key", srv.URL)
	_, err := c.LatestReading(context.Background(), 101)
	if !errors.Is(err, ErrNoMeasurements) {
		t.Fatalf("expected ErrNoMeasurements, got %v", err)
	}
}

func TestParameterLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parameters/2/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"results": [
				{"locationsId": 101, "value": 8.2, "datetime": {"utc": "2024-05-01T16:00:00Z"}},
				{"locationsId": 102, "value": 15.0, "datetime": {"utc": "2024-05-01T16:05:00Z"}}
			]
		}`))
	}))
	defer srv.Close()

	c := newClient(srv.Client(), "test-key", srv.URL)
	rows, err := c.ParameterLatest(context.Background(), 2, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].LocationsID != 101 || rows[0].ObservedAtUTC != "2024-05-01T16:00:00Z" {
		t.Errorf("unexpected first row %+v", rows[0])
	}
}

func TestMissingCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made without a credential")
	}))
	defer srv.Close()

	c := newClient(srv.Client(), "", srv.URL)

	if _, _, err := c.DiscoverLocations(context.Background(), testRequest(), 100); !errors.Is(err, aq.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential from discovery, got %v", err)
	}
	if _, err := c.LatestReading(context.Background(), 101); !errors.Is(err, aq.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential from latest, got %v", err)
	}
	if _, err := c.ParameterLatest(context.Background(), 2, 20); !errors.Is(err, aq.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential from parameter latest, got %v", err)
	}
}
