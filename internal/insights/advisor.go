// Package insights turns a result set into a structured health analysis by
// querying an LLM backend.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gothamair/airpulse/internal/aq"
)

// ErrNoData is returned when the result set has nothing to analyze.
var ErrNoData = errors.New("not enough data for analysis")

// ErrMalformedInsight is returned when the model reply is not the expected
// JSON document.
var ErrMalformedInsight = errors.New("model did not return the expected json")

// Insight is the structured analysis the models are asked to produce.
type Insight struct {
	RiskLevel     string `json:"risk_level"`
	Summary       string `json:"summary"`
	ActionableTip string `json:"actionable_tip"`
}

// Advisor abstracts an LLM backend that can analyze air-quality readings.
type Advisor interface {
	Name() string
	Analyze(ctx context.Context, pollutant aq.Pollutant, rs aq.ResultSet) (Insight, error)
}

// promptRows is how many readings we show the model. More rows add tokens
// without changing the risk picture much.
const promptRows = 5

// buildPrompt renders the instruction the models receive. The schema demand
// is strict so the reply can be parsed mechanically.
func buildPrompt(pollutant aq.Pollutant, rs aq.ResultSet) (string, error) {
	if len(rs.Readings) == 0 {
		return "", ErrNoData
	}

	type row struct {
		Location string   `json:"location"`
		Value    *float64 `json:"value"`
		Unit     string   `json:"unit"`
	}

	rows := make([]row, 0, promptRows)
	for _, r := range rs.Readings {
		if len(rows) == promptRows {
			break
		}
		rows = append(rows, row{Location: r.LocationName, Value: r.Value, Unit: r.Unit})
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"Act as an environmental health specialist. Analyze this current %s data: %s. "+
			"You MUST return a valid JSON object with EXACTLY these three keys: "+
			"'risk_level' (String: Low, Moderate, High, or Severe), "+
			"'summary' (String: 2 sentences on immediate health risks for commuters), "+
			"'actionable_tip' (String: 1 strict, direct recommendation).",
		pollutant.Label, data,
	), nil
}

// parseInsight decodes and validates the model reply.
func parseInsight(raw string) (Insight, error) {
	var in Insight
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return Insight{}, fmt.Errorf("%w: %v", ErrMalformedInsight, err)
	}
	if in.RiskLevel == "" || in.Summary == "" || in.ActionableTip == "" {
		return Insight{}, fmt.Errorf("%w: missing keys", ErrMalformedInsight)
	}
	return in, nil
}
