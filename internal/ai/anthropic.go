package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"sql-intelligence/pkg/models"
)

const anthropicMaxTokens = 900

// DefaultAnthropicModels Anthropic 모델 래더
var DefaultAnthropicModels = []string{"claude-sonnet-4-5", "claude-opus-4-1"}

// AnthropicAdapter Anthropic Messages API 어댑터
type AnthropicAdapter struct {
	client anthropic.Client
	models []string
	ladder ladder
}

// NewAnthropicAdapter Anthropic 어댑터 생성
func NewAnthropicAdapter(cfg models.AIConfig, opts Options) (*AnthropicAdapter, error) {
	if cfg.AnthropicKey == "" {
		return nil, errMissingKey("ANTHROPIC_API_KEY")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.AnthropicKey),
		// 재시도는 모델 래더가 담당
		option.WithMaxRetries(0),
	}
	if cfg.AnthropicBaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.AnthropicBaseURL))
	}

	modelList := cfg.AnthropicModels
	if len(modelList) == 0 {
		modelList = DefaultAnthropicModels
	}

	return &AnthropicAdapter{
		client: anthropic.NewClient(reqOpts...),
		models: modelList,
		ladder: newLadder(models.Anthropic, classifyAnthropic, opts),
	}, nil
}

func (a *AnthropicAdapter) Name() models.ProviderName {
	return models.Anthropic
}

func (a *AnthropicAdapter) Models() []string {
	return a.models
}

func (a *AnthropicAdapter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	budget := int64(req.tokensOr(anthropicMaxTokens))

	return a.ladder.run(ctx, req.modelsOr(a.models), func(ctx context.Context, model string, withTemperature bool) (Response, error) {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: budget,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
			},
		}
		if req.System != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.System}}
		}
		if withTemperature {
			params.Temperature = anthropic.Float(float64(req.Temperature))
		}

		msg, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return Empty(), err
		}
		return normalizeAnthropic(msg), nil
	})
}

func normalizeAnthropic(msg *anthropic.Message) Response {
	if msg == nil {
		return Empty()
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return Text(sb.String())
}

func classifyAnthropic(err error) ErrorClass {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return ClassQuota
	}
	return classifyMessage(err)
}
