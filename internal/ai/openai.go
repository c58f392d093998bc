package ai

import (
	"context"
	"errors"
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"sql-intelligence/pkg/models"
)

const (
	openAIMaxTokens      = 900
	preferredOpenAIModel = "gpt-5"
)

var (
	// DefaultOpenAIFallbacks FALLBACK_OPENAI_MODELS 기본값
	DefaultOpenAIFallbacks = []string{"gpt-4o-mini", "gpt-4o", "gpt-3.5-turbo"}
	// DefaultOptimizationModels 최적화 래더
	DefaultOptimizationModels = []string{"gpt-5", "gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"}
	// DefaultChainModel 스키마 체인용 instruct 모델
	DefaultChainModel = "gpt-3.5-turbo-instruct"
)

type openAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateCompletion(ctx context.Context, req openai.CompletionRequest) (openai.CompletionResponse, error)
}

// OpenAIAdapter 기본 제공자 (OpenAI)
type OpenAIAdapter struct {
	client     openAIClient
	models     []string
	chainModel string
	ladder     ladder
}

// NewOpenAIAdapter OpenAI 어댑터 생성
func NewOpenAIAdapter(cfg models.AIConfig, opts Options) (*OpenAIAdapter, error) {
	if cfg.OpenAIKey == "" {
		return nil, ErrNoCredential
	}

	conf := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		conf.BaseURL = cfg.OpenAIBaseURL
	}

	chainModel := cfg.ChainModel
	if chainModel == "" {
		chainModel = DefaultChainModel
	}

	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(conf),
		models:     OpenAILadder(cfg.OpenAIFallbacks),
		chainModel: chainModel,
		ladder:     newLadder(models.OpenAI, classifyOpenAI, opts),
	}, nil
}

// OpenAILadder gpt-5 를 먼저 시도하고 폴백 목록을 잇는다
func OpenAILadder(fallbacks []string) []string {
	if len(fallbacks) == 0 {
		fallbacks = DefaultOpenAIFallbacks
	}
	ladder := []string{preferredOpenAIModel}
	for _, m := range fallbacks {
		if m != preferredOpenAIModel {
			ladder = append(ladder, m)
		}
	}
	return ladder
}

func (a *OpenAIAdapter) Name() models.ProviderName {
	return models.OpenAI
}

func (a *OpenAIAdapter) Models() []string {
	return a.models
}

func (a *OpenAIAdapter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	budget := req.tokensOr(openAIMaxTokens)

	return a.ladder.run(ctx, req.modelsOr(a.models), func(ctx context.Context, model string, withTemperature bool) (Response, error) {
		chat := openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.System},
				{Role: openai.ChatMessageRoleUser, Content: req.User},
			},
		}
		// 파라미터를 거부한 모델은 temperature 없이 max_completion_tokens 로 재요청
		if withTemperature {
			chat.Temperature = pinTemperature(req.Temperature)
			chat.MaxTokens = budget
		} else {
			chat.MaxCompletionTokens = budget
		}

		resp, err := a.client.CreateChatCompletion(ctx, chat)
		if err != nil {
			return Empty(), err
		}
		return normalizeChat(resp), nil
	})
}

// CompleteInstruct instruct 모델에 단일 프롬프트 전송 (스키마 체인)
func (a *OpenAIAdapter) CompleteInstruct(ctx context.Context, prompt string) (string, error) {
	return a.ladder.run(ctx, []string{a.chainModel}, func(ctx context.Context, model string, withTemperature bool) (Response, error) {
		req := openai.CompletionRequest{
			Model:     model,
			Prompt:    prompt,
			MaxTokens: openAIMaxTokens,
		}
		if withTemperature {
			req.Temperature = pinTemperature(0)
		}

		resp, err := a.client.CreateCompletion(ctx, req)
		if err != nil {
			return Empty(), err
		}
		return normalizeCompletion(resp), nil
	})
}

// pinTemperature 0 은 omitempty 로 빠지므로 가장 작은 양수로 고정
func pinTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func normalizeChat(resp openai.ChatCompletionResponse) Response {
	for _, choice := range resp.Choices {
		if r := Text(choice.Message.Content); r.ok {
			return r
		}
	}
	return Empty()
}

func normalizeCompletion(resp openai.CompletionResponse) Response {
	for _, choice := range resp.Choices {
		if r := Text(choice.Text); r.ok {
			return r
		}
	}
	return Empty()
}

func classifyOpenAI(err error) ErrorClass {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return ClassQuota
		}
		if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
			return ClassQuota
		}
		if apiErr.Param != nil {
			switch *apiErr.Param {
			case "temperature", "max_tokens":
				return ClassUnsupportedParameter
			}
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return ClassQuota
	}
	return classifyMessage(err)
}
