// Package config 환경 변수, .env, 선택적 YAML 파일에서 설정을 읽는다
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sql-intelligence/pkg/models"
)

// LookupFunc 환경 변수 조회 함수
type LookupFunc func(string) (string, bool)

// Config 애플리케이션 설정
type Config struct {
	Service string `yaml:"service"`

	HTTP       HTTPConfig       `yaml:"http"`
	AI         models.AIConfig  `yaml:"ai"`
	Generation GenerationConfig `yaml:"generation"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
}

// HTTPConfig HTTP 서버 설정
type HTTPConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// GenerationConfig 생성/최적화 설정
type GenerationConfig struct {
	Dialect  string        `yaml:"dialect"`
	Deadline time.Duration `yaml:"deadline"`
}

// DatabaseConfig 실행 대상 데이터베이스
type DatabaseConfig struct {
	URL            string          `yaml:"url"`
	Connection     models.DBConfig `yaml:"connection"`
	MaxRows        int             `yaml:"max_rows"`
	SchemaCacheTTL time.Duration   `yaml:"schema_cache_ttl"`
	SchemaChain    bool            `yaml:"schema_chain"`
	// SchemaChainURIs DATABASE_URL 외에 HTTP 요청이 지정할 수 있는 URI
	SchemaChainURIs []string `yaml:"schema_chain_uris"`
}

// AllowedSchemaURIs 스키마 체인 대상으로 허용된 URI 목록
func (d DatabaseConfig) AllowedSchemaURIs() []string {
	var uris []string
	if d.URL != "" {
		uris = append(uris, d.URL)
	}
	return append(uris, d.SchemaChainURIs...)
}

// Configured URL 또는 연결 정보가 있는지
func (d DatabaseConfig) Configured() bool {
	return d.URL != "" || d.Connection.Type != ""
}

// LogConfig 로깅 설정
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// Defaults 기본 설정
func Defaults(serviceName string) Config {
	return Config{
		Service: serviceName,
		HTTP: HTTPConfig{
			Address:        ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   180 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		AI: models.AIConfig{
			Timeout: 40 * time.Second,
		},
		Generation: GenerationConfig{
			Dialect:  "Snowflake",
			Deadline: 120 * time.Second,
		},
		Database: DatabaseConfig{
			MaxRows:        5000,
			SchemaCacheTTL: 5 * time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadFromEnv .env 를 읽은 뒤 프로세스 환경으로 설정 구성
func LoadFromEnv(serviceName string) (Config, error) {
	// .env 가 없어도 된다
	_ = godotenv.Load()
	return Load(serviceName, os.LookupEnv)
}

// Load 기본값 → CONFIG_FILE(YAML) → 환경 변수 순서로 적용
func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := Defaults(serviceName)
	if path, ok := lookup("CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		if err := applyFile(strings.TrimSpace(path), &cfg); err != nil {
			return Config{}, err
		}
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyList(lookup, "CORS_ALLOWED_ORIGINS", &cfg.HTTP.AllowedOrigins) },
		func() error { return applyString(lookup, "LOG_LEVEL", &cfg.Log.Level) },
		func() error { return applyString(lookup, "LOG_FORMAT", &cfg.Log.Format) },

		func() error { return applyString(lookup, "OPENAI_API_KEY", &cfg.AI.OpenAIKey) },
		func() error { return applyString(lookup, "OPENAI_BASE_URL", &cfg.AI.OpenAIBaseURL) },
		func() error { return applyList(lookup, "FALLBACK_OPENAI_MODELS", &cfg.AI.OpenAIFallbacks) },
		func() error { return applyList(lookup, "OPTIMIZATION_MODELS", &cfg.AI.OptimizationModels) },
		func() error { return applyString(lookup, "SCHEMA_CHAIN_MODEL", &cfg.AI.ChainModel) },
		func() error { return applyString(lookup, "ANTHROPIC_API_KEY", &cfg.AI.AnthropicKey) },
		func() error { return applyString(lookup, "ANTHROPIC_BASE_URL", &cfg.AI.AnthropicBaseURL) },
		func() error { return applyList(lookup, "ANTHROPIC_MODELS", &cfg.AI.AnthropicModels) },
		func() error { return applyString(lookup, "GOOGLE_API_KEY", &cfg.AI.GeminiKey) },
		func() error { return applyString(lookup, "GEMINI_API_KEY", &cfg.AI.GeminiKey) },
		func() error { return applyList(lookup, "GEMINI_MODELS", &cfg.AI.GeminiModels) },
		func() error { return applyString(lookup, "HUGGINGFACEHUB_API_TOKEN", &cfg.AI.HFToken) },
		func() error { return applyString(lookup, "HF_API_TOKEN", &cfg.AI.HFToken) },
		func() error { return applyString(lookup, "HF_BASE_URL", &cfg.AI.HFBaseURL) },
		func() error { return applyList(lookup, "HF_MODELS", &cfg.AI.HFModels) },
		func() error { return applyString(lookup, "GROQ_API_KEY", &cfg.AI.GroqKey) },
		func() error { return applyString(lookup, "GROQ_BASE_URL", &cfg.AI.GroqBaseURL) },
		func() error { return applyList(lookup, "GROQ_MODELS", &cfg.AI.GroqModels) },
		func() error { return applyString(lookup, "OLLAMA_ENDPOINT", &cfg.AI.OllamaURL) },
		func() error { return applyString(lookup, "OLLAMA_MODEL", &cfg.AI.OllamaModel) },
		func() error { return applyDuration(lookup, "PROVIDER_TIMEOUT", &cfg.AI.Timeout) },

		func() error { return applyString(lookup, "SQL_DIALECT", &cfg.Generation.Dialect) },
		func() error { return applyDuration(lookup, "GENERATION_DEADLINE", &cfg.Generation.Deadline) },

		func() error { return applyString(lookup, "DATABASE_URL", &cfg.Database.URL) },
		func() error { return applyInt(lookup, "MAX_QUERY_ROWS", &cfg.Database.MaxRows) },
		func() error { return applyDuration(lookup, "SCHEMA_CACHE_TTL", &cfg.Database.SchemaCacheTTL) },
		func() error { return applyBool(lookup, "SCHEMA_CHAIN_ENABLED", &cfg.Database.SchemaChain) },
		func() error { return applyList(lookup, "SCHEMA_CHAIN_ALLOWED_URIS", &cfg.Database.SchemaChainURIs) },
		func() error { return applySnowflake(lookup, &cfg.Database.Connection) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 값 범위 검사
func (c Config) Validate() error {
	if c.Database.MaxRows <= 0 {
		return fmt.Errorf("invalid MAX_QUERY_ROWS: must be positive, got %d", c.Database.MaxRows)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("invalid PROVIDER_TIMEOUT: must be positive, got %s", c.AI.Timeout)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %q", c.Log.Format)
	}
	return nil
}

// applySnowflake SNOWFLAKE_ACCOUNT 가 있으면 Snowflake 연결 정보 구성
func applySnowflake(lookup LookupFunc, dst *models.DBConfig) error {
	if account, ok := lookup("SNOWFLAKE_ACCOUNT"); !ok || strings.TrimSpace(account) == "" {
		return nil
	}

	dst.Type = models.Snowflake
	for key, field := range map[string]*string{
		"SNOWFLAKE_ACCOUNT":   &dst.Account,
		"SNOWFLAKE_USER":      &dst.User,
		"SNOWFLAKE_PASSWORD":  &dst.Password,
		"SNOWFLAKE_WAREHOUSE": &dst.Warehouse,
		"SNOWFLAKE_DATABASE":  &dst.Database,
		"SNOWFLAKE_SCHEMA":    &dst.Schema,
		"SNOWFLAKE_ROLE":      &dst.Role,
	} {
		if err := applyString(lookup, key, field); err != nil {
			return err
		}
	}
	return nil
}

func applyFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("설정 파일 읽기 실패: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("설정 파일 파싱 실패: %w", err)
	}
	return nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}
