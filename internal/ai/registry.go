package ai

import (
	"context"
	"io"
	"sync"

	"sql-intelligence/pkg/models"
)

type registryEntry struct {
	name      models.ProviderName
	adapter   Adapter
	available bool
	reason    string
	lastErr   string
}

// ProviderRegistry 시작 시 한 번 구성되는 제공자 목록
type ProviderRegistry struct {
	mu      sync.RWMutex
	entries map[models.ProviderName]*registryEntry
}

// NewRegistry 빈 레지스트리 생성
func NewRegistry() *ProviderRegistry {
	return &ProviderRegistry{entries: make(map[models.ProviderName]*registryEntry)}
}

// BuildRegistry 설정의 자격 증명으로 어댑터를 만든다. 키가 없으면 해당 제공자는 비활성
func BuildRegistry(ctx context.Context, cfg models.AIConfig, opts Options) *ProviderRegistry {
	r := NewRegistry()
	log := opts.logger()

	if a, err := NewOpenAIAdapter(cfg, opts); err != nil {
		r.Disable(models.OpenAI, err.Error())
	} else {
		r.Register(a)
	}

	if a, err := NewAnthropicAdapter(cfg, opts); err != nil {
		r.Disable(models.Anthropic, err.Error())
	} else {
		r.Register(a)
	}

	if a, err := NewGeminiAdapter(ctx, cfg, opts); err != nil {
		r.Disable(models.Gemini, err.Error())
	} else {
		r.Register(a)
	}

	if a, err := NewLlamaAdapter(cfg, opts); err != nil {
		r.Disable(models.LLaMA, err.Error())
	} else {
		r.Register(a)
	}

	for _, s := range r.Status() {
		log.Info("제공자 상태", "provider", string(s.Name), "available", s.Available, "reason", s.Reason)
	}
	return r
}

// Register 사용 가능한 어댑터 등록
func (r *ProviderRegistry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[a.Name()] = &registryEntry{name: a.Name(), adapter: a, available: true}
}

// Disable 사용 불가 제공자 기록
func (r *ProviderRegistry) Disable(name models.ProviderName, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &registryEntry{name: name, reason: reason}
}

// Lookup 사용 가능한 어댑터 조회
func (r *ProviderRegistry) Lookup(name models.ProviderName) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok || !e.available {
		return nil, false
	}
	return e.adapter, true
}

// Primary 기본 제공자 (OpenAI)
func (r *ProviderRegistry) Primary() (Adapter, bool) {
	return r.Lookup(models.OpenAI)
}

// Adapters 우선순위 순서의 사용 가능한 어댑터
func (r *ProviderRegistry) Adapters() []Adapter {
	var out []Adapter
	for _, name := range models.ProviderOrder {
		if a, ok := r.Lookup(name); ok {
			out = append(out, a)
		}
	}
	return out
}

// RecordResult 제공자 마지막 오류 갱신. 성공이면 지운다
func (r *ProviderRegistry) RecordResult(name models.ProviderName, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	if err == nil {
		e.lastErr = ""
		return
	}
	e.lastErr = err.Error()
}

// Status 우선순위 순서의 제공자 상태
func (r *ProviderRegistry) Status() []models.ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ProviderStatus, 0, len(models.ProviderOrder))
	for _, name := range models.ProviderOrder {
		e, ok := r.entries[name]
		if !ok {
			out = append(out, models.ProviderStatus{Name: name, Reason: "not configured"})
			continue
		}
		s := models.ProviderStatus{
			Name:      name,
			Available: e.available,
			Reason:    e.reason,
			LastError: e.lastErr,
		}
		if e.adapter != nil {
			s.Models = e.adapter.Models()
		}
		out = append(out, s)
	}
	return out
}

// Close 종료가 필요한 어댑터 정리
func (r *ProviderRegistry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var firstErr error
	for _, e := range r.entries {
		if c, ok := e.adapter.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
