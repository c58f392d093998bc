package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

const defaultHFEndpoint = "https://api-inference.huggingface.co"

// DefaultHFModels HuggingFace LLaMA 모델
var DefaultHFModels = []string{"meta-llama-3.1-70b-instruct", "meta-llama-3.1-8b-instruct", "llama4-70b-instruct"}

var sqlStart = regexp.MustCompile(`(?i)\b(select|with)\b`)

// huggingFaceBackend text-generation 추론 API
type huggingFaceBackend struct {
	endpoint string
	token    string
	modelIDs []string
	client   *http.Client
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int      `json:"max_new_tokens"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ReturnFullText bool     `json:"return_full_text"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func newHuggingFaceBackend(client *http.Client, endpoint, token string, modelIDs []string) *huggingFaceBackend {
	if endpoint == "" {
		endpoint = defaultHFEndpoint
	}
	if len(modelIDs) == 0 {
		modelIDs = DefaultHFModels
	}
	return &huggingFaceBackend{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		modelIDs: modelIDs,
		client:   client,
	}
}

func (h *huggingFaceBackend) name() string {
	return "hf"
}

func (h *huggingFaceBackend) models() []string {
	return h.modelIDs
}

func (h *huggingFaceBackend) call(ctx context.Context, model string, req CompletionRequest, budget int, withTemperature bool) (Response, error) {
	body := hfRequest{
		Inputs:     req.System + "\n\n" + req.User + "\n\nSQL:",
		Parameters: hfParameters{MaxNewTokens: budget},
	}
	if withTemperature {
		t := float64(req.Temperature)
		body.Parameters.Temperature = &t
	}

	var raw json.RawMessage
	headers := map[string]string{"Authorization": "Bearer " + h.token}
	if err := postJSON(ctx, h.client, h.endpoint+"/models/"+model, headers, body, &raw); err != nil {
		return Empty(), err
	}
	return normalizeHF(raw), nil
}

// normalizeHF 배열/단일 객체 응답 모두 처리하고 SQL 시작 전 텍스트를 버린다
func normalizeHF(raw json.RawMessage) Response {
	var text string

	var list []hfGeneration
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > 0 {
			text = list[0].GeneratedText
		}
	} else {
		var single hfGeneration
		if err := json.Unmarshal(raw, &single); err == nil {
			text = single.GeneratedText
		}
	}

	if loc := sqlStart.FindStringIndex(text); loc != nil {
		text = text[loc[0]:]
	}
	return Text(text)
}
