package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultLocalEndpoint is where the local inference gateway listens.
	DefaultLocalEndpoint = "http://127.0.0.1:1234"

	// DefaultLocalModel is the model served by the default gateway setup.
	DefaultLocalModel = "mistralai/mistral-small-3.2"
)

// LocalProvider implements Adapter for an OpenAI-compatible local
// inference gateway (LM Studio or similar). No credentials, high latency
// tolerance, near-zero cost of trial.
type LocalProvider struct {
	name       string
	model      string
	baseURL    string
	httpClient *http.Client

	// probe, when set, gates calls on the gateway's gRPC health service
	// so a stopped gateway fails fast instead of burning the timeout.
	probe *HealthProbe
}

// NewLocalProvider creates a local gateway provider. An empty endpoint or
// model falls back to the defaults.
func NewLocalProvider(name, endpoint, model string, timeout time.Duration, probe *HealthProbe) *LocalProvider {
	if endpoint == "" {
		endpoint = DefaultLocalEndpoint
	}
	if model == "" {
		model = DefaultLocalModel
	}
	return &LocalProvider{
		name:       name,
		model:      model,
		baseURL:    strings.TrimRight(endpoint, "/") + "/v1",
		httpClient: newHTTPClient(timeout),
		probe:      probe,
	}
}

// Name returns the provider identifier.
func (p *LocalProvider) Name() string {
	return p.name
}

// Analyze sends the analysis prompt to the local gateway.
func (p *LocalProvider) Analyze(ctx context.Context, req Request) (string, error) {
	if p.probe != nil {
		if err := p.probe.Check(ctx); err != nil {
			return "", err
		}
	}

	body := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(req.Text)},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", &CallError{Provider: p.name, Kind: KindTransport, Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", &CallError{Provider: p.name, Kind: KindTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport(p.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CallError{Provider: p.name, Kind: KindTransport, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(p.name, resp.StatusCode, resp.Header.Get("Retry-After"), truncateBody(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &CallError{Provider: p.name, Kind: KindTransport, Err: fmt.Errorf("parse response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &CallError{Provider: p.name, Kind: KindTransport, Err: fmt.Errorf("gateway error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &CallError{Provider: p.name, Kind: KindTransport, Err: fmt.Errorf("empty choices in response")}
	}

	return parsed.Choices[0].Message.Content, nil
}
