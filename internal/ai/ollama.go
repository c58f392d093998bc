package ai

import (
	"context"
	"net/http"
	"strings"
)

const defaultOllamaModel = "llama3.2"

// ollamaBackend 로컬 Ollama /api/generate
type ollamaBackend struct {
	endpoint string
	model    string
	client   *http.Client
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func newOllamaBackend(client *http.Client, endpoint, model string) *ollamaBackend {
	if model == "" {
		model = defaultOllamaModel
	}
	return &ollamaBackend{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   client,
	}
}

func (o *ollamaBackend) name() string {
	return "ollama"
}

func (o *ollamaBackend) models() []string {
	return []string{o.model}
}

func (o *ollamaBackend) call(ctx context.Context, model string, req CompletionRequest, budget int, withTemperature bool) (Response, error) {
	body := ollamaRequest{
		Model:   model,
		System:  req.System,
		Prompt:  req.User,
		Stream:  false,
		Options: ollamaOptions{NumPredict: budget},
	}
	if withTemperature {
		t := float64(req.Temperature)
		body.Options.Temperature = &t
	}

	var resp ollamaResponse
	if err := postJSON(ctx, o.client, o.endpoint+"/api/generate", nil, body, &resp); err != nil {
		return Empty(), err
	}
	return Text(resp.Response), nil
}
