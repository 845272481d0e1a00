package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gothamair/airpulse/internal/aq"
)

// DefaultCloudURL is the Ollama Cloud chat endpoint.
const DefaultCloudURL = "https://ollama.com"

// CloudAdvisor queries Ollama's cloud-hosted models over the chat endpoint.
// Unlike the local daemon it requires an API key.
type CloudAdvisor struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
}

// NewCloudAdvisor creates an advisor for Ollama Cloud.
func NewCloudAdvisor(client *http.Client, baseURL, model, apiKey string) *CloudAdvisor {
	if baseURL == "" {
		baseURL = DefaultCloudURL
	}
	return &CloudAdvisor{
		client:  client,
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
	}
}

func (a *CloudAdvisor) Name() string {
	return fmt.Sprintf("ollama cloud (%s)", a.model)
}

func (a *CloudAdvisor) Analyze(ctx context.Context, pollutant aq.Pollutant, rs aq.ResultSet) (Insight, error) {
	if a.apiKey == "" {
		return Insight{}, fmt.Errorf("ollama cloud api key is not configured")
	}

	prompt, err := buildPrompt(pollutant, rs)
	if err != nil {
		return Insight{}, err
	}

	body, err := json.Marshal(map[string]any{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
	})
	if err != nil {
		return Insight{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Insight{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return Insight{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Insight{}, fmt.Errorf("ollama cloud returned status %d", resp.StatusCode)
	}

	var payload struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Insight{}, fmt.Errorf("%w: %v", ErrMalformedInsight, err)
	}

	return parseInsight(payload.Message.Content)
}
