// Package config loads the explainer's configuration from an optional YAML
// file, a .env file and environment variables, in increasing priority.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
)

// DefaultPath is read when no config path is given. A missing default file is not an error.
const DefaultPath = "explainer.yaml"

// DotEnvPath is loaded into the environment before overrides are applied.
const DotEnvPath = ".env"

// Config is the full application configuration shared by both binaries.
type Config struct {
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Google    GoogleConfig    `yaml:"google"`
	Bluesky   BlueskyConfig   `yaml:"bluesky"`
	Search    SearchConfig    `yaml:"search"`
	Agent     AgentConfig     `yaml:"agent"`
	LLM       LLMConfig       `yaml:"llm"`
	Eval      EvalConfig      `yaml:"eval"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`

	// Costs maps model ids to USD prices per million tokens.
	// Entries from the file are merged over DefaultCosts.
	Costs map[string]ModelCost `yaml:"costs" validate:"dive"`
}

// OpenAIConfig configures the agent, embedding and default judge provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	Model   string `yaml:"model" validate:"required"`
}

type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

type GoogleConfig struct {
	APIKey string `yaml:"api_key"`
}

// BlueskyConfig configures the XRPC client used to read posts.
type BlueskyConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	BaseURL  string `yaml:"base_url" validate:"required,url"`

	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// RequestsPerSecond paces XRPC calls. Zero disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	BaseURL    string        `yaml:"base_url" validate:"required,url"`
	MaxResults int           `yaml:"max_results" validate:"min=1,max=25"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
	UserAgent  string        `yaml:"user_agent"`
}

// AgentConfig bounds the explainer's tool-calling loop.
type AgentConfig struct {
	MaxToolRounds int `yaml:"max_tool_rounds" validate:"min=1,max=32"`

	// MaxTokens caps each model turn. Zero leaves the provider default.
	MaxTokens int `yaml:"max_tokens" validate:"gte=0"`
}

// LLMConfig configures the middleware applied to judge completions.
type LLMConfig struct {
	// Timeout bounds each completion. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// RequestsPerSecond enables rate limiting when positive.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`

	// MaxRetries enables the retry middleware when positive.
	MaxRetries int `yaml:"max_retries" validate:"min=0,max=10"`
}

// EvalConfig configures the evaluation harness.
type EvalConfig struct {
	EmbeddingModel string `yaml:"embedding_model" validate:"required"`
	JudgeProvider  string `yaml:"judge_provider" validate:"oneof=openai anthropic google"`
	JudgeModel     string `yaml:"judge_model" validate:"required"`
	JudgeMaxTokens int    `yaml:"judge_max_tokens" validate:"min=1"`
	ResultsDir     string `yaml:"results_dir" validate:"required"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{Model: "gpt-4o"},
		Bluesky: BlueskyConfig{
			BaseURL: "https://bsky.social",
			Timeout: 30 * time.Second,
		},
		Search: SearchConfig{
			BaseURL:    "https://html.duckduckgo.com",
			MaxResults: 5,
			Timeout:    20 * time.Second,
			UserAgent:  "Mozilla/5.0 (compatible; bluesky-explainer/1.0)",
		},
		Agent: AgentConfig{MaxToolRounds: 8},
		Eval: EvalConfig{
			EmbeddingModel: "text-embedding-3-small",
			JudgeProvider:  "openai",
			JudgeModel:     "gpt-4o-mini",
			JudgeMaxTokens: 512,
			ResultsDir:     "eval/results",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:   LogConfig{Level: "info", Format: "text"},
		Costs: DefaultCosts(),
	}
}

// Load builds the configuration. An empty path reads DefaultPath if it
// exists; an explicit path must exist. The .env file in the working directory
// is loaded first and never overrides variables already set in the process.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := loadDotEnv(DotEnvPath); err != nil {
		return nil, err
	}

	if err := cfg.readFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return configError("LoadDotEnv", fmt.Errorf("failed to load %s: %w", path, err))
	}
	return nil
}

func (c *Config) readFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return configError("ReadFile", fmt.Errorf("failed to read config file %s: %w", path, err))
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return configError("ReadFile", fmt.Errorf("failed to parse config file %s: %w", path, err))
	}
	return nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	setFromEnv(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setFromEnv(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setFromEnv(&c.OpenAI.Model, "OPENAI_MODEL")
	setFromEnv(&c.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setFromEnv(&c.Google.APIKey, "GOOGLE_API_KEY")
	setFromEnv(&c.Bluesky.Email, "BLUESKY_EMAIL")
	setFromEnv(&c.Bluesky.Password, "BLUESKY_PASSWORD")
	setFromEnv(&c.Eval.EmbeddingModel, "EVAL_EMBEDDING_MODEL")
	setFromEnv(&c.Eval.JudgeModel, "EVAL_JUDGE_MODEL")
	setFromEnv(&c.Eval.ResultsDir, "EVAL_RESULTS_DIR")
	setFromEnv(&c.Log.Level, "EXPLAINER_LOG_LEVEL")
}

func setFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks struct constraints. It does not require credentials; see
// RequireCredentials.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			ve := domain.NewValidationError("Config")
			for _, fe := range verrs {
				ve.AddError(fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return configError("Validate", ve)
		}
		return configError("Validate", err)
	}
	return nil
}

// Credential names a secret a binary needs before doing any work.
type Credential int

const (
	CredentialOpenAI Credential = iota + 1
	CredentialBluesky
	// CredentialJudge resolves to the key of the configured judge provider.
	CredentialJudge
)

// RequireCredentials reports every missing credential in one error of kind
// domain.KindConfig.
func (c *Config) RequireCredentials(creds ...Credential) error {
	ve := domain.NewValidationError("Config")
	for _, cred := range creds {
		switch cred {
		case CredentialOpenAI:
			if c.OpenAI.APIKey == "" {
				ve.AddError("set OPENAI_API_KEY in .env or the environment")
			}
		case CredentialBluesky:
			if c.Bluesky.Email == "" || c.Bluesky.Password == "" {
				ve.AddError("set BLUESKY_EMAIL and BLUESKY_PASSWORD in .env or the environment")
			}
		case CredentialJudge:
			switch c.Eval.JudgeProvider {
			case "anthropic":
				if c.Anthropic.APIKey == "" {
					ve.AddError("set ANTHROPIC_API_KEY in .env or the environment")
				}
			case "google":
				if c.Google.APIKey == "" {
					ve.AddError("set GOOGLE_API_KEY in .env or the environment")
				}
			default:
				if c.OpenAI.APIKey == "" && !containsCred(creds, CredentialOpenAI) {
					ve.AddError("set OPENAI_API_KEY in .env or the environment")
				}
			}
		}
	}
	if ve.HasErrors() {
		return configError("RequireCredentials", ve)
	}
	return nil
}

func containsCred(creds []Credential, want Credential) bool {
	for _, c := range creds {
		if c == want {
			return true
		}
	}
	return false
}

// JudgeAPIKey returns the API key of the configured judge provider.
func (c *Config) JudgeAPIKey() string {
	switch c.Eval.JudgeProvider {
	case "anthropic":
		return c.Anthropic.APIKey
	case "google":
		return c.Google.APIKey
	default:
		return c.OpenAI.APIKey
	}
}

// JudgeBaseURL returns the endpoint override of the configured judge provider.
func (c *Config) JudgeBaseURL() string {
	switch c.Eval.JudgeProvider {
	case "anthropic":
		return c.Anthropic.BaseURL
	case "google":
		return ""
	default:
		return c.OpenAI.BaseURL
	}
}

func configError(op string, err error) error {
	return domain.NewError(domain.KindConfig, op, err)
}
