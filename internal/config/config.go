package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Chunk       ChunkConfig       `mapstructure:"chunk"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Completion  CompletionConfig  `mapstructure:"completion"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Store       StoreConfig       `mapstructure:"store"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Extract     ExtractConfig     `mapstructure:"extract"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port" validate:"required,numeric"`
	APIKey         string        `mapstructure:"api_key"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes" validate:"gt=0"`
	Workers        int           `mapstructure:"workers" validate:"gt=0"`
	QueueSize      int           `mapstructure:"queue_size" validate:"gt=0"`
	JobTTL         time.Duration `mapstructure:"job_ttl" validate:"gt=0"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

type ChunkConfig struct {
	Size    int `mapstructure:"size" validate:"gt=0"`
	Overlap int `mapstructure:"overlap" validate:"gte=0,ltfield=Size"`
}

type EmbeddingConfig struct {
	Provider    string        `mapstructure:"provider" validate:"oneof=gemini ollama hash"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	Dimension   int           `mapstructure:"dimension" validate:"gte=0"`
	RateLimit   float64       `mapstructure:"rate_limit" validate:"gte=0"`
	Burst       int           `mapstructure:"burst" validate:"gte=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gt=0"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type CompletionConfig struct {
	Provider       string  `mapstructure:"provider" validate:"oneof=anthropic gemini"`
	Model          string  `mapstructure:"model"`
	BaseURL        string  `mapstructure:"base_url" validate:"omitempty,url"`
	Temperature    float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int64   `mapstructure:"max_tokens" validate:"gt=0"`
	MaxInputTokens int     `mapstructure:"max_input_tokens" validate:"gte=0"`
	Tokenizer      string  `mapstructure:"tokenizer" validate:"oneof=tiktoken estimate"`
}

type CredentialsConfig struct {
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=memory sqlite postgres"`
	DSN    string `mapstructure:"dsn" validate:"required_unless=Driver memory"`
}

type RetrievalConfig struct {
	K      int     `mapstructure:"k" validate:"gt=0"`
	FetchK int     `mapstructure:"fetch_k" validate:"gt=0"`
	Lambda float64 `mapstructure:"lambda" validate:"gte=0,lte=1"`
	Query  string  `mapstructure:"query"`
}

type ExtractConfig struct {
	Lenient bool   `mapstructure:"lenient"`
	Columns string `mapstructure:"columns"` // optional column map YAML overriding the embedded one
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// envAliases are plain environment names accepted alongside FINEXTRACT_*.
var envAliases = map[string][]string{
	"server.port":                   {"PORT"},
	"server.api_key":                {"FINEXTRACT_API_KEY"},
	"credentials.anthropic_api_key": {"ANTHROPIC_API_KEY"},
	"credentials.gemini_api_key":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"store.dsn":                     {"DATABASE_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.max_upload_bytes", 52428800) // 50MB
	v.SetDefault("server.workers", 2)
	v.SetDefault("server.queue_size", 100)
	v.SetDefault("server.job_ttl", time.Hour)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("chunk.size", 1000)
	v.SetDefault("chunk.overlap", 200)

	v.SetDefault("embedding.provider", "gemini")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.rate_limit", 0)
	v.SetDefault("embedding.burst", 1)
	v.SetDefault("embedding.concurrency", 4)
	v.SetDefault("embedding.timeout", 60*time.Second)

	v.SetDefault("completion.provider", "gemini")
	v.SetDefault("completion.model", "")
	v.SetDefault("completion.base_url", "")
	v.SetDefault("completion.temperature", 0.3)
	v.SetDefault("completion.max_tokens", 4096)
	v.SetDefault("completion.max_input_tokens", 0)
	v.SetDefault("completion.tokenizer", "tiktoken")

	v.SetDefault("credentials.anthropic_api_key", "")
	v.SetDefault("credentials.gemini_api_key", "")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")

	v.SetDefault("retrieval.k", 25)
	v.SetDefault("retrieval.fetch_k", 50)
	v.SetDefault("retrieval.lambda", 0.5)
	v.SetDefault("retrieval.query", "")

	v.SetDefault("extract.lenient", false)
	v.SetDefault("extract.columns", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads defaults, then the YAML file at path (or ./finextract.yaml when
// path is empty and the file exists), then the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("finextract")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FINEXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		prefixed := "FINEXTRACT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// FieldErrors maps a config field path to the rule it broke.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Validate checks field rules and the credentials each provider needs.
func (c *Config) Validate() error {
	errs := FieldErrors{}
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, e := range verrs {
			errs[e.Namespace()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
	}

	if c.Completion.Provider == "anthropic" && c.Credentials.AnthropicAPIKey == "" {
		errs["Config.Credentials.AnthropicAPIKey"] = "required by the anthropic completion provider"
	}
	if (c.Completion.Provider == "gemini" || c.Embedding.Provider == "gemini") && c.Credentials.GeminiAPIKey == "" {
		errs["Config.Credentials.GeminiAPIKey"] = "required by the gemini provider"
	}
	if c.Embedding.Provider == "ollama" && c.Embedding.BaseURL == "" {
		errs["Config.Embedding.BaseURL"] = "required by the ollama embedding provider"
	}
	if c.Store.Driver == "postgres" && c.Embedding.Dimension <= 0 {
		errs["Config.Embedding.Dimension"] = "required by the postgres store"
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RequireAPIKey reports whether the HTTP API key is set.
func (c *Config) RequireAPIKey() error {
	if c.Server.APIKey == "" {
		return errors.New("FINEXTRACT_API_KEY is required to serve the API")
	}
	return nil
}
