package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gothamair/airpulse/internal/aq"
)

// AppConfig holds everything read from the environment. It is loaded once at
// process start and passed to collaborators explicitly; nothing re-reads the
// environment afterwards.
type AppConfig struct {
	// OpenAQAPIKey authenticates every upstream call. Required.
	OpenAQAPIKey string

	// GoogleMapsAPIKey enables the map embed and city geocoding. Optional.
	GoogleMapsAPIKey string

	// LLM advisor settings. An empty backend disables insights.
	AIBackend    string // "", "ollama" or "ollama-cloud"
	OllamaURL    string
	OllamaModel  string
	OllamaAPIKey string

	// FetchInterval controls how often the scheduler refreshes watch areas.
	FetchInterval time.Duration

	// WatchAreas the scheduler keeps fresh.
	WatchAreas []aq.WatchArea

	// In-memory snapshot store retention.
	StoreMaxHistory int           // max snapshots per area (0 = unlimited)
	StoreMaxAge     time.Duration // max snapshot age (0 = unlimited)

	// HTTPTimeout applies to every outbound request.
	HTTPTimeout time.Duration

	// ReportDir, when set, receives markdown/HTML report files on every
	// scheduler refresh.
	ReportDir string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenAQAPIKey = os.Getenv("OPENAQ_API_KEY")
	if cfg.OpenAQAPIKey == "" {
		return nil, aq.ErrMissingCredential
	}

	cfg.GoogleMapsAPIKey = os.Getenv("GOOGLE_MAPS_API_KEY")

	cfg.AIBackend = os.Getenv("AI_BACKEND")
	switch cfg.AIBackend {
	case "", "ollama", "ollama-cloud":
	default:
		return nil, fmt.Errorf("invalid AI_BACKEND %q (want ollama or ollama-cloud)", cfg.AIBackend)
	}
	cfg.OllamaURL = os.Getenv("OLLAMA_URL")
	cfg.OllamaModel = getenvDefault("OLLAMA_MODEL", "gemma3:latest")
	cfg.OllamaAPIKey = os.Getenv("OLLAMA_API_KEY")

	// Refresh interval: default 15 minutes.
	intervalStr := getenvDefault("FETCH_INTERVAL", "15m")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}
	cfg.FetchInterval = interval

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals

	maxAgeStr := getenvDefault("STORE_MAX_AGE", "24h")
	maxAge, err := time.ParseDuration(maxAgeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}
	cfg.StoreMaxAge = maxAge

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.ReportDir = os.Getenv("REPORT_DIR")
	cfg.Port = getenvDefault("PORT", "8080")

	areas, err := loadWatchAreas()
	if err != nil {
		return nil, err
	}
	cfg.WatchAreas = areas

	return cfg, nil
}

// loadWatchAreas parses WATCH_AREAS, a comma-separated list of
// "name:lat:lon:radius_km:pollutant" entries. The default is the lower
// Manhattan area the dashboard was built around.
func loadWatchAreas() ([]aq.WatchArea, error) {
	raw := getenvDefault("WATCH_AREAS", "nyc:40.7128:-74.0060:10:pm25")

	var areas []aq.WatchArea
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) != 5 {
			return nil, fmt.Errorf("invalid WATCH_AREAS entry %q (want name:lat:lon:radius_km:pollutant)", entry)
		}

		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in WATCH_AREAS entry %q", entry)
		}
		lon, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in WATCH_AREAS entry %q", entry)
		}
		radius, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid radius in WATCH_AREAS entry %q", entry)
		}
		pollutant, err := aq.ParsePollutant(parts[4])
		if err != nil {
			return nil, fmt.Errorf("invalid pollutant in WATCH_AREAS entry %q: %w", entry, err)
		}

		area := aq.WatchArea{
			Name: parts[0],
			Request: aq.SearchRequest{
				Center:    aq.Coordinate{Latitude: lat, Longitude: lon},
				RadiusKM:  radius,
				Pollutant: pollutant,
			},
		}
		if err := area.Request.Validate(); err != nil {
			return nil, fmt.Errorf("invalid WATCH_AREAS entry %q: %w", entry, err)
		}
		areas = append(areas, area)
	}

	return areas, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
