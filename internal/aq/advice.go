package aq

// Summary aggregates the values of a ResultSet for the dashboard metric
// cards. Readings without a value are excluded from the aggregates.
type Summary struct {
	Average float64 `json:"average"`
	Peak    float64 `json:"peak"`
	Minimum float64 `json:"minimum"`
	Count   int     `json:"count"`
}

// Summarize computes average, peak and minimum over the readings that carry
// a value. A zero Count means no reading had a value.
func Summarize(rs ResultSet) Summary {
	var s Summary
	for _, r := range rs.Readings {
		if r.Value == nil {
			continue
		}
		v := *r.Value
		if s.Count == 0 {
			s.Peak = v
			s.Minimum = v
		} else {
			if v > s.Peak {
				s.Peak = v
			}
			if v < s.Minimum {
				s.Minimum = v
			}
		}
		s.Average += v
		s.Count++
	}
	if s.Count > 0 {
		s.Average /= float64(s.Count)
	}
	return s
}

// AdviceLevel is the traffic-light classification of an area average.
type AdviceLevel string

const (
	AdviceGreen  AdviceLevel = "green"
	AdviceYellow AdviceLevel = "yellow"
	AdviceRed    AdviceLevel = "red"
)

// Advice is the commuter guidance derived from a pollutant's area average.
type Advice struct {
	Level AdviceLevel `json:"level"`
	Text  string      `json:"text"`
}

// AdviceFor classifies an average value against the pollutant's advisory
// thresholds and returns commuter guidance.
func AdviceFor(p Pollutant, avg float64) Advice {
	switch {
	case avg < p.cautionAt:
		return Advice{
			Level: AdviceGreen,
			Text:  "Air is clean. Safe for biking, walking, or running to work.",
		}
	case avg < p.hazardAt:
		return Advice{
			Level: AdviceYellow,
			Text:  "Moderate levels. Sensitive groups should limit exertion near heavy traffic.",
		}
	default:
		return Advice{
			Level: AdviceRed,
			Text:  "High pollution. Avoid outdoor exertion; prefer the subway, bus, or taxi.",
		}
	}
}
