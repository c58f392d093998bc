package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"sql-intelligence/pkg/models"
)

const geminiMaxTokens = 900

// DefaultGeminiModels Gemini 모델 래더
var DefaultGeminiModels = []string{"gemini-2.5-pro"}

// geminiCall 모델 하나에 대한 GenerateContent 호출. temperature nil 이면 생략
type geminiCall func(ctx context.Context, model string, temperature *float32, maxTokens int32, system, user string) (*genai.GenerateContentResponse, error)

// GeminiAdapter Google Gemini 어댑터
type GeminiAdapter struct {
	client   *genai.Client
	generate geminiCall
	models   []string
	ladder   ladder
}

// NewGeminiAdapter Gemini 어댑터 생성
func NewGeminiAdapter(ctx context.Context, cfg models.AIConfig, opts Options) (*GeminiAdapter, error) {
	if cfg.GeminiKey == "" {
		return nil, errMissingKey("GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiKey))
	if err != nil {
		return nil, fmt.Errorf("Gemini 클라이언트 생성 실패: %w", err)
	}

	a := newGeminiAdapter(nil, cfg.GeminiModels, opts)
	a.client = client
	a.generate = a.callClient
	return a, nil
}

func newGeminiAdapter(call geminiCall, modelList []string, opts Options) *GeminiAdapter {
	if len(modelList) == 0 {
		modelList = DefaultGeminiModels
	}
	return &GeminiAdapter{
		generate: call,
		models:   modelList,
		ladder:   newLadder(models.Gemini, classifyGemini, opts),
	}
}

func (a *GeminiAdapter) Name() models.ProviderName {
	return models.Gemini
}

func (a *GeminiAdapter) Models() []string {
	return a.models
}

func (a *GeminiAdapter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	budget := int32(req.tokensOr(geminiMaxTokens))

	return a.ladder.run(ctx, req.modelsOr(a.models), func(ctx context.Context, model string, withTemperature bool) (Response, error) {
		var temp *float32
		if withTemperature {
			t := req.Temperature
			temp = &t
		}
		resp, err := a.generate(ctx, model, temp, budget, req.System, req.User)
		if err != nil {
			return Empty(), err
		}
		return normalizeGemini(resp), nil
	})
}

// Close 클라이언트 종료
func (a *GeminiAdapter) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

func (a *GeminiAdapter) callClient(ctx context.Context, model string, temperature *float32, maxTokens int32, system, user string) (*genai.GenerateContentResponse, error) {
	m := a.client.GenerativeModel(model)
	m.SetMaxOutputTokens(maxTokens)
	if temperature != nil {
		m.SetTemperature(*temperature)
	}
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return m.GenerateContent(ctx, genai.Text(user))
}

func normalizeGemini(resp *genai.GenerateContentResponse) Response {
	if resp == nil {
		return Empty()
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		if r := Text(sb.String()); r.ok {
			return r
		}
	}
	return Empty()
}

func classifyGemini(err error) ErrorClass {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return ClassQuota
	}
	return classifyMessage(err)
}
