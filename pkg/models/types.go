package models

import "time"

// DBType 지원하는 데이터베이스 종류
type DBType string

const (
	MySQL      DBType = "mysql"
	PostgreSQL DBType = "postgresql"
	Oracle     DBType = "oracle"
	SQLServer  DBType = "sqlserver"
	Snowflake  DBType = "snowflake"
)

// ProviderName LLM 제공자 이름
type ProviderName string

const (
	OpenAI    ProviderName = "OpenAI"
	Anthropic ProviderName = "Anthropic"
	Gemini    ProviderName = "Gemini"
	LLaMA     ProviderName = "LLaMA"
)

// ProviderOrder 생성 시 제공자 시도 순서
var ProviderOrder = []ProviderName{OpenAI, Anthropic, Gemini, LLaMA}

// DBConfig 데이터베이스 연결 설정
type DBConfig struct {
	Type      DBType `json:"type" yaml:"type"`
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	User      string `json:"user" yaml:"user"`
	Password  string `json:"password" yaml:"password"`
	Database  string `json:"database" yaml:"database"`
	Schema    string `json:"schema,omitempty" yaml:"schema"`
	Account   string `json:"account,omitempty" yaml:"account"`     // Snowflake
	Warehouse string `json:"warehouse,omitempty" yaml:"warehouse"` // Snowflake
	Role      string `json:"role,omitempty" yaml:"role"`           // Snowflake
}

// Table 테이블 정보
type Table struct {
	Name        string   `json:"name"`
	Columns     []Column `json:"columns"`
	PrimaryKey  []string `json:"primary_key,omitempty"`
	ForeignKeys []FK     `json:"foreign_keys,omitempty"`
}

// Column 컬럼 정보
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default,omitempty"`
	Comment  string `json:"comment,omitempty"`
	IsPK     bool   `json:"is_pk"`
}

// FK 외래키 정보
type FK struct {
	Name      string `json:"name"`
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// Schema 전체 스키마 정보
type Schema struct {
	Database string  `json:"database"`
	Tables   []Table `json:"tables"`
	DBType   DBType  `json:"db_type"`
}

// GenerationRequest 자연어 질의로부터 SQL 생성 요청
type GenerationRequest struct {
	Question    string `json:"question"`
	SchemaHint  string `json:"schema_hint"`
	DatabaseURI string `json:"database_uri,omitempty"`
}

// ProviderAttemptResult 모델 1회 시도 결과
type ProviderAttemptResult struct {
	Provider ProviderName `json:"provider"`
	Model    string       `json:"model"`
	Text     string       `json:"text,omitempty"`
	Class    string       `json:"class"`
	Err      string       `json:"error,omitempty"`
}

// OptimizationOutcome 최적화 결과
type OptimizationOutcome struct {
	Original  string `json:"original"`
	Optimized string `json:"optimized"`
	Changed   bool   `json:"changed"`
}

// QueryResult 쿼리 실행 결과
type QueryResult struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	Truncated bool            `json:"truncated"`
	Elapsed   time.Duration   `json:"elapsed"`
}

// ProviderStatus 제공자 가용 상태
type ProviderStatus struct {
	Name      ProviderName `json:"name"`
	Available bool         `json:"available"`
	Reason    string       `json:"reason,omitempty"`
	LastError string       `json:"last_error,omitempty"`
	Models    []string     `json:"models,omitempty"`
}

// AIConfig LLM 제공자 설정
type AIConfig struct {
	OpenAIKey          string   `json:"-" yaml:"openai_api_key"`
	OpenAIBaseURL      string   `json:"openai_base_url,omitempty" yaml:"openai_base_url"`
	OpenAIFallbacks    []string `json:"openai_fallbacks" yaml:"openai_fallbacks"`       // gpt-5 다음에 시도할 모델
	OptimizationModels []string `json:"optimization_models" yaml:"optimization_models"` // 최적화 래더
	ChainModel         string   `json:"chain_model" yaml:"chain_model"`                 // 스키마 체인용 instruct 모델

	AnthropicKey     string   `json:"-" yaml:"anthropic_api_key"`
	AnthropicBaseURL string   `json:"anthropic_base_url,omitempty" yaml:"anthropic_base_url"`
	AnthropicModels  []string `json:"anthropic_models" yaml:"anthropic_models"`

	GeminiKey    string   `json:"-" yaml:"gemini_api_key"`
	GeminiModels []string `json:"gemini_models" yaml:"gemini_models"`

	HFToken     string   `json:"-" yaml:"hf_api_token"`
	HFBaseURL   string   `json:"hf_base_url,omitempty" yaml:"hf_base_url"`
	HFModels    []string `json:"hf_models" yaml:"hf_models"`
	GroqKey     string   `json:"-" yaml:"groq_api_key"`
	GroqBaseURL string   `json:"groq_base_url,omitempty" yaml:"groq_base_url"`
	GroqModels  []string `json:"groq_models" yaml:"groq_models"`
	OllamaURL   string   `json:"ollama_endpoint,omitempty" yaml:"ollama_endpoint"`
	OllamaModel string   `json:"ollama_model,omitempty" yaml:"ollama_model"`

	Timeout time.Duration `json:"timeout" yaml:"timeout"` // 제공자 호출당 타임아웃
}
