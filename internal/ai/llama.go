package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sql-intelligence/pkg/models"
)

const llamaMaxTokens = 700

// llamaBackend LLaMA 계열 모델을 서빙하는 백엔드
type llamaBackend interface {
	name() string
	models() []string
	call(ctx context.Context, model string, req CompletionRequest, budget int, withTemperature bool) (Response, error)
}

// LlamaAdapter HuggingFace -> Groq -> Ollama 순으로 LLaMA 모델을 시도
type LlamaAdapter struct {
	backends []llamaBackend
	ladder   ladder
}

// NewLlamaAdapter 설정된 백엔드로 LLaMA 어댑터 생성
func NewLlamaAdapter(cfg models.AIConfig, opts Options) (*LlamaAdapter, error) {
	client := &http.Client{}

	var backends []llamaBackend
	if cfg.HFToken != "" {
		backends = append(backends, newHuggingFaceBackend(client, cfg.HFBaseURL, cfg.HFToken, cfg.HFModels))
	}
	if cfg.GroqKey != "" {
		backends = append(backends, newGroqBackend(client, cfg.GroqBaseURL, cfg.GroqKey, cfg.GroqModels))
	}
	if cfg.OllamaURL != "" {
		backends = append(backends, newOllamaBackend(client, cfg.OllamaURL, cfg.OllamaModel))
	}
	if len(backends) == 0 {
		return nil, errMissingKey("HF_API_TOKEN / GROQ_API_KEY / OLLAMA_ENDPOINT")
	}

	return &LlamaAdapter{
		backends: backends,
		ladder:   newLadder(models.LLaMA, classifyHTTP, opts),
	}, nil
}

func (a *LlamaAdapter) Name() models.ProviderName {
	return models.LLaMA
}

// Models "백엔드:모델" 형식의 래더
func (a *LlamaAdapter) Models() []string {
	var out []string
	for _, b := range a.backends {
		for _, m := range b.models() {
			out = append(out, b.name()+":"+m)
		}
	}
	return out
}

func (a *LlamaAdapter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	budget := req.tokensOr(llamaMaxTokens)

	return a.ladder.run(ctx, req.modelsOr(a.Models()), func(ctx context.Context, key string, withTemperature bool) (Response, error) {
		backend, model, err := a.resolve(key)
		if err != nil {
			return Empty(), err
		}
		return backend.call(ctx, model, req, budget, withTemperature)
	})
}

func (a *LlamaAdapter) resolve(key string) (llamaBackend, string, error) {
	name, model, found := strings.Cut(key, ":")
	if !found {
		return a.backends[0], key, nil
	}
	for _, b := range a.backends {
		if b.name() == name {
			return b, model, nil
		}
	}
	return nil, "", fmt.Errorf("알 수 없는 LLaMA 백엔드: %s", name)
}

// httpStatusError 2xx 가 아닌 HTTP 응답
type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("API 오류 (상태 코드: %d): %s", e.StatusCode, e.Body)
}

func classifyHTTP(err error) ErrorClass {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return ClassQuota
	}
	// Groq 는 go-openai 오류를 돌려준다
	return classifyOpenAI(err)
}

// postJSON JSON 요청을 보내고 응답 본문을 out 에 디코딩
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, in, out interface{}) error {
	jsonBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("JSON 마샬링 실패: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("요청 생성 실패: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("요청 실패: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("응답 읽기 실패: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("JSON 파싱 실패: %w", err)
	}
	return nil
}
