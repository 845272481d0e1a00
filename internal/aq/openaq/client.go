// Package openaq implements the upstream air-quality client against the
// OpenAQ v3 API.
package openaq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gothamair/airpulse/internal/aq"
)

const defaultBaseURL = "https://api.openaq.org/v3"

// ErrNoMeasurements is returned when a latest-reading response carries an
// empty results array.
var ErrNoMeasurements = errors.New("no measurements in response")

// Client talks to the OpenAQ v3 API. It implements aq.Client.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	backoff BackoffConfig

	// One breaker per endpoint family, so a flapping latest endpoint does
	// not take discovery down with it.
	discoveryCB *gobreaker.CircuitBreaker
	latestCB    *gobreaker.CircuitBreaker
}

// NewClient creates a Client using the given HTTP client and API key.
func NewClient(client *http.Client, apiKey string) *Client {
	return newClient(client, apiKey, defaultBaseURL)
}

func newClient(client *http.Client, apiKey, baseURL string) *Client {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
		backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: 300 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
		discoveryCB: gobreaker.NewCircuitBreaker(settings("openaq-locations")),
		latestCB:    gobreaker.NewCircuitBreaker(settings("openaq-latest")),
	}
}

// rawCoordinate matches the upstream coordinates object, where either field
// may be null.
type rawCoordinate struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (r *rawCoordinate) toCoordinate() *aq.Coordinate {
	if r == nil || r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &aq.Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

// DiscoverLocations lists sensor locations near the request center reporting
// the requested pollutant. All failures come back as *aq.DiscoveryError so
// the pipeline can fail fast.
func (c *Client) DiscoverLocations(ctx context.Context, req aq.SearchRequest, limit int) ([]aq.LocationCandidate, json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, nil, aq.ErrMissingCredential
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("coordinates", req.Center.String())
		values.Set("radius", strconv.Itoa(req.RadiusMeters()))
		values.Set("parameters_id", strconv.Itoa(req.Pollutant.ParameterID))
		values.Set("limit", strconv.Itoa(limit))
		values.Set("page", "1")
		return c.newRequest(fmt.Sprintf("%s/locations?%s", c.baseURL, values.Encode()))
	}

	resp, err := doWithResilience(ctx, c.client, c.discoveryCB, c.backoff, buildRequest)
	if err != nil {
		return nil, nil, &aq.DiscoveryError{Status: statusOf(err), Err: err}
	}
	defer resp.Body.Close()

	var payload struct {
		Meta    json.RawMessage `json:"meta"`
		Results []struct {
			ID          int            `json:"id"`
			Name        string         `json:"name"`
			Coordinates *rawCoordinate `json:"coordinates"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil, &aq.DiscoveryError{Err: fmt.Errorf("%w: %v", aq.ErrMalformedResponse, err)}
	}

	candidates := make([]aq.LocationCandidate, 0, len(payload.Results))
	for _, r := range payload.Results {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("Location %d", r.ID)
		}
		candidates = append(candidates, aq.LocationCandidate{
			ID:         r.ID,
			Name:       name,
			Coordinate: r.Coordinates.toCoordinate(),
		})
	}
	return candidates, payload.Meta, nil
}

// LatestReading fetches the most recent measurement for one location
// (limit=1, page=1).
func (c *Client) LatestReading(ctx context.Context, locationID int) (aq.LatestMeasurement, error) {
	if c.apiKey == "" {
		return aq.LatestMeasurement{}, aq.ErrMissingCredential
	}

	buildRequest := func() (*http.Request, error) {
		return c.newRequest(fmt.Sprintf("%s/locations/%d/latest?limit=1&page=1", c.baseURL, locationID))
	}

	resp, err := doWithResilience(ctx, c.client, c.latestCB, c.backoff, buildRequest)
	if err != nil {
		return aq.LatestMeasurement{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Value    *float64 `json:"value"`
			Datetime struct {
				Local string `json:"local"`
				UTC   string `json:"utc"`
			} `json:"datetime"`
			Coordinates *rawCoordinate `json:"coordinates"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return aq.LatestMeasurement{}, fmt.Errorf("%w: %v", aq.ErrMalformedResponse, err)
	}
	if len(payload.Results) == 0 {
		return aq.LatestMeasurement{}, ErrNoMeasurements
	}

	m := payload.Results[0]
	return aq.LatestMeasurement{
		Value:           m.Value,
		ObservedAtLocal: m.Datetime.Local,
		ObservedAtUTC:   m.Datetime.UTC,
		Coordinate:      m.Coordinates.toCoordinate(),
	}, nil
}

// ParameterLatest fetches the most recent measurements across all locations
// for a pollutant parameter, for the tabular report endpoint.
func (c *Client) ParameterLatest(ctx context.Context, parameterID, limit int) ([]aq.ParameterRow, error) {
	if c.apiKey == "" {
		return nil, aq.ErrMissingCredential
	}

	buildRequest := func() (*http.Request, error) {
		return c.newRequest(fmt.Sprintf("%s/parameters/%d/latest?limit=%d", c.baseURL, parameterID, limit))
	}

	resp, err := doWithResilience(ctx, c.client, c.latestCB, c.backoff, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			LocationsID int      `json:"locationsId"`
			Value       *float64 `json:"value"`
			Datetime    struct {
				UTC string `json:"utc"`
			} `json:"datetime"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", aq.ErrMalformedResponse, err)
	}

	rows := make([]aq.ParameterRow, 0, len(payload.Results))
	for _, r := range payload.Results {
		rows = append(rows, aq.ParameterRow{
			LocationsID:   r.LocationsID,
			Value:         r.Value,
			ObservedAtUTC: r.Datetime.UTC,
		})
	}
	return rows, nil
}

func (c *Client) newRequest(u string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	return req, nil
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}
