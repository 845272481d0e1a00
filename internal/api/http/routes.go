package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kelvins/geocoder"

	"github.com/gothamair/airpulse/internal/aq"
	"github.com/gothamair/airpulse/internal/insights"
	"github.com/gothamair/airpulse/internal/store"
)

var validate = validator.New()

// requestTimeout bounds one on-demand pipeline run triggered by a request.
const requestTimeout = 30 * time.Second

// ParameterLatester is the slice of the upstream client the report endpoint
// needs.
type ParameterLatester interface {
	ParameterLatest(ctx context.Context, parameterID, limit int) ([]aq.ParameterRow, error)
}

// Deps bundles the collaborators the HTTP handlers depend on.
type Deps struct {
	Pipeline *aq.Pipeline
	Client   ParameterLatester
	Store    *store.MemoryStore

	// Advisor may be nil when no LLM backend is configured.
	Advisor insights.Advisor

	// MapsAPIKey enables the Google Maps embed when non-empty.
	MapsAPIKey string

	// GeocoderEnabled reports whether city lookups can be resolved.
	GeocoderEnabled bool
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/air/latest", func(c *fiber.Ctx) error {
		req, err := parseSearchQuery(c, deps)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rs, err := runPipeline(c, deps, req)
		if err != nil {
			return err
		}

		summary := aq.Summarize(rs)
		return c.JSON(fiber.Map{
			"request":  req,
			"readings": rs.Readings,
			"summary":  summary,
			"advice":   aq.AdviceFor(req.Pollutant, summary.Average),
			"meta":     rs.Meta,
			"skipped":  rs.Skipped,
		})
	})

	v1.Get("/air/snapshot", func(c *fiber.Ctx) error {
		area := c.Query("area")
		if area == "" {
			return fiber.NewError(fiber.StatusBadRequest, "area query parameter is required")
		}

		snap, err := deps.Store.GetLatest(area)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no snapshot for requested area")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load snapshot")
		}
		return c.JSON(snap)
	})

	v1.Get("/air/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snaps, err := deps.Store.GetRange(req.Area, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no snapshots for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load history")
		}

		return c.JSON(fiber.Map{
			"area":      req.Area,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snaps,
		})
	})

	v1.Get("/air/insights", func(c *fiber.Ctx) error {
		if deps.Advisor == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "no analysis model configured")
		}

		req, err := parseSearchQuery(c, deps)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rs, err := runPipeline(c, deps, req)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
		defer cancel()

		insight, err := deps.Advisor.Analyze(ctx, req.Pollutant, rs)
		if err != nil {
			if errors.Is(err, insights.ErrNoData) {
				return fiber.NewError(fiber.StatusNotFound, "not enough readings for analysis")
			}
			if errors.Is(err, insights.ErrMalformedInsight) {
				return fiber.NewError(fiber.StatusBadGateway, "analysis model returned an unusable reply")
			}
			return fiber.NewError(fiber.StatusBadGateway, "analysis model unavailable")
		}

		return c.JSON(fiber.Map{
			"model":   deps.Advisor.Name(),
			"insight": insight,
		})
	})

	v1.Get("/parameters/:id/latest", func(c *fiber.Ctx) error {
		var req reportQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
		defer cancel()

		rows, err := deps.Client.ParameterLatest(ctx, req.ParameterID, req.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "failed to fetch parameter data")
		}

		return c.JSON(fiber.Map{
			"parameterId": req.ParameterID,
			"rows":        rows,
		})
	})

	registerDashboard(app, deps)
}

// runPipeline executes the enrichment pipeline with a request-scoped timeout
// and maps its failure modes onto HTTP statuses.
func runPipeline(c *fiber.Ctx, deps Deps, req aq.SearchRequest) (aq.ResultSet, error) {
	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	rs, err := deps.Pipeline.Run(ctx, req)
	if err != nil {
		var de *aq.DiscoveryError
		if errors.As(err, &de) {
			msg := "upstream discovery failed"
			if de.Status != 0 {
				msg += " with status " + strconv.Itoa(de.Status)
			}
			return aq.ResultSet{}, fiber.NewError(fiber.StatusBadGateway, msg)
		}
		if errors.Is(err, aq.ErrMissingCredential) {
			return aq.ResultSet{}, fiber.NewError(fiber.StatusInternalServerError, "service credential is not configured")
		}
		return aq.ResultSet{}, fiber.NewError(fiber.StatusInternalServerError, "failed to fetch air-quality data")
	}
	return rs, nil
}

// searchQuery holds the validated coordinates and radius of a search.
type searchQuery struct {
	Lat      float64 `validate:"gte=-90,lte=90"`
	Lon      float64 `validate:"gte=-180,lte=180"`
	RadiusKM int     `validate:"required,gte=1,lte=50"`
}

// parseSearchQuery reads lat/lon (or a city name, when the geocoder is
// configured), radius_km and pollutant from the query string.
func parseSearchQuery(c *fiber.Ctx, deps Deps) (aq.SearchRequest, error) {
	var q searchQuery
	var err error

	if city := c.Query("city"); city != "" {
		if !deps.GeocoderEnabled {
			return aq.SearchRequest{}, errors.New("city lookup is not configured; pass lat and lon instead")
		}
		loc, gerr := geocoder.Geocoding(geocoder.Address{City: city})
		if gerr != nil {
			return aq.SearchRequest{}, errors.New("could not resolve city to coordinates")
		}
		q.Lat = loc.Latitude
		q.Lon = loc.Longitude
	} else {
		q.Lat, err = strconv.ParseFloat(c.Query("lat", "40.7128"), 64)
		if err != nil {
			return aq.SearchRequest{}, errors.New("invalid lat")
		}
		q.Lon, err = strconv.ParseFloat(c.Query("lon", "-74.0060"), 64)
		if err != nil {
			return aq.SearchRequest{}, errors.New("invalid lon")
		}
	}

	q.RadiusKM, err = strconv.Atoi(c.Query("radius_km", "10"))
	if err != nil {
		return aq.SearchRequest{}, errors.New("invalid radius_km")
	}

	if err := validate.Struct(q); err != nil {
		return aq.SearchRequest{}, err
	}

	pollutant, err := aq.ParsePollutant(c.Query("pollutant", "pm25"))
	if err != nil {
		return aq.SearchRequest{}, err
	}

	return aq.SearchRequest{
		Center:    aq.Coordinate{Latitude: q.Lat, Longitude: q.Lon},
		RadiusKM:  q.RadiusKM,
		Pollutant: pollutant,
	}, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Area string    `validate:"required"`
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.Area = c.Query("area")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return validate.Struct(h)
}

// reportQuery holds parameters for the parameter-wide latest report.
type reportQuery struct {
	ParameterID int `validate:"required,gte=1"`
	Limit       int `validate:"required,gte=1,lte=100"`
}

func (r *reportQuery) bind(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return errors.New("invalid parameter id")
	}
	r.ParameterID = id

	r.Limit, err = strconv.Atoi(c.Query("limit", "20"))
	if err != nil {
		return errors.New("invalid limit")
	}
	return validate.Struct(r)
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
