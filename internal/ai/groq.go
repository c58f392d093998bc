package ai

import (
	"context"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultGroqEndpoint = "https://api.groq.com/openai/v1"

// DefaultGroqModels Groq LLaMA 모델
var DefaultGroqModels = []string{"llama-3.1-70b", "llama-3.1-8b"}

// groqBackend Groq OpenAI 호환 chat completions
type groqBackend struct {
	client   *openai.Client
	modelIDs []string
}

func newGroqBackend(httpClient *http.Client, endpoint, apiKey string, modelIDs []string) *groqBackend {
	if endpoint == "" {
		endpoint = defaultGroqEndpoint
	}
	if len(modelIDs) == 0 {
		modelIDs = DefaultGroqModels
	}

	conf := openai.DefaultConfig(apiKey)
	conf.BaseURL = strings.TrimRight(endpoint, "/")
	conf.HTTPClient = httpClient

	return &groqBackend{
		client:   openai.NewClientWithConfig(conf),
		modelIDs: modelIDs,
	}
}

func (g *groqBackend) name() string {
	return "groq"
}

func (g *groqBackend) models() []string {
	return g.modelIDs
}

func (g *groqBackend) call(ctx context.Context, model string, req CompletionRequest, budget int, withTemperature bool) (Response, error) {
	chat := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: budget,
	}
	if req.System != "" {
		chat.Messages = append(chat.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	chat.Messages = append(chat.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})
	if withTemperature {
		chat.Temperature = pinTemperature(req.Temperature)
	}

	resp, err := g.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return Empty(), err
	}
	return normalizeChat(resp), nil
}
