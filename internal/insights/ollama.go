package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gothamair/airpulse/internal/aq"
)

// DefaultOllamaURL is where a locally running Ollama daemon listens.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaAdvisor queries a local Ollama daemon via its generate endpoint,
// forcing JSON output with the format parameter.
type OllamaAdvisor struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
}

// NewOllamaAdvisor creates an advisor for a local Ollama daemon. The API key
// is optional; when set it is sent as a bearer token.
func NewOllamaAdvisor(client *http.Client, baseURL, model, apiKey string) *OllamaAdvisor {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &OllamaAdvisor{
		client:  client,
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
	}
}

func (a *OllamaAdvisor) Name() string {
	return fmt.Sprintf("ollama (%s)", a.model)
}

func (a *OllamaAdvisor) Analyze(ctx context.Context, pollutant aq.Pollutant, rs aq.ResultSet) (Insight, error) {
	prompt, err := buildPrompt(pollutant, rs)
	if err != nil {
		return Insight{}, err
	}

	body, err := json.Marshal(map[string]any{
		"model":  a.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
	if err != nil {
		return Insight{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Insight{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return Insight{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Insight{}, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var payload struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Insight{}, fmt.Errorf("%w: %v", ErrMalformedInsight, err)
	}

	return parseInsight(payload.Response)
}
