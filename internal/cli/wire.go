// Package cli holds the cobra commands of the explainer-api and eval-harness
// binaries and the wiring that builds their clients from configuration.
package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/agent"
	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/bluesky"
	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/llm"
	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/middleware"
	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/scoring"
	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/search"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/application"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/config"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/logging"
)

const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second
)

// globalFlags are shared by both commands.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func (f *globalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "config file (default is ./"+config.DefaultPath+" when present)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "log format: text or json (overrides config)")
}

// load reads the configuration, applies flag overrides and initialises the
// default logger.
func (f *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, domain.NewError(domain.KindConfig, "ParseLevel", err)
	}
	logging.Init(level, cfg.Log.Format)
	return cfg, nil
}

// newMetrics returns a registry with the Go and process collectors and a
// MetricsCollector registered on it.
func newMetrics() (*prometheus.Registry, *middleware.PrometheusMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, middleware.NewPrometheusMetrics(reg)
}

func newFetcher(cfg *config.Config) (*bluesky.Client, error) {
	return bluesky.New(cfg.Bluesky.BaseURL, cfg.Bluesky.Email, cfg.Bluesky.Password,
		bluesky.WithTimeout(cfg.Bluesky.Timeout),
		bluesky.WithRateLimit(cfg.Bluesky.RequestsPerSecond),
		bluesky.WithLogger(logging.New("bluesky")),
	)
}

func newSearcher(cfg *config.Config) *search.Searcher {
	return search.New(cfg.Search.BaseURL,
		search.WithTimeout(cfg.Search.Timeout),
		search.WithUserAgent(cfg.Search.UserAgent),
		search.WithMaxResults(cfg.Search.MaxResults),
		search.WithLogger(logging.New("search")),
	)
}

// newExplainer builds the agent with its Bluesky and search tools.
func newExplainer(cfg *config.Config, fetcher *bluesky.Client, metrics *middleware.PrometheusMetrics) (*agent.Explainer, error) {
	client, err := llm.NewOpenAIAPI(llm.ClientConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	return agent.New(client, fetcher, newSearcher(cfg), agent.Config{
		Model:            cfg.OpenAI.Model,
		MaxToolRounds:    cfg.Agent.MaxToolRounds,
		MaxTokens:        cfg.Agent.MaxTokens,
		MaxSearchResults: cfg.Search.MaxResults,
		Costs:            cfg.Costs,
	},
		agent.WithLogger(logging.New("agent")),
		agent.WithMetrics(metrics),
	)
}

// judgeMiddleware orders the chain outermost first: tracing and metrics see
// one request per judge call, retries re-enter the timeout and rate limiter.
func judgeMiddleware(cfg *config.Config, metrics *middleware.PrometheusMetrics) []llm.Middleware {
	mw := []llm.Middleware{
		llm.TracingMiddleware("judge"),
		llm.MetricsMiddleware(metrics, cfg.Eval.JudgeProvider),
	}
	if cfg.LLM.MaxRetries > 0 {
		mw = append(mw, llm.RetryMiddleware(llm.RetryPolicy{
			MaxRetries: cfg.LLM.MaxRetries,
			BaseDelay:  retryBaseDelay,
			MaxDelay:   retryMaxDelay,
			Logger:     logging.New("scoring"),
		}))
	}
	if cfg.LLM.Timeout > 0 {
		mw = append(mw, llm.TimeoutMiddleware(cfg.Eval.JudgeProvider, cfg.LLM.Timeout))
	}
	if cfg.LLM.RequestsPerSecond > 0 {
		burst := cfg.LLM.Burst
		if burst == 0 {
			burst = 1
		}
		mw = append(mw, llm.RateLimitMiddleware(cfg.Eval.JudgeProvider, rate.Limit(cfg.LLM.RequestsPerSecond), burst))
	}
	return mw
}

func newJudge(cfg *config.Config, metrics *middleware.PrometheusMetrics) (*scoring.Judge, error) {
	client, err := llm.NewClient(cfg.Eval.JudgeProvider, llm.ClientConfig{
		APIKey:     cfg.JudgeAPIKey(),
		BaseURL:    cfg.JudgeBaseURL(),
		Model:      cfg.Eval.JudgeModel,
		Middleware: judgeMiddleware(cfg, metrics),
	})
	if err != nil {
		return nil, fmt.Errorf("create judge client: %w", err)
	}
	return scoring.NewJudge(client, scoring.JudgeConfig{MaxTokens: cfg.Eval.JudgeMaxTokens}, logging.New("scoring"))
}

func newSimilarity(cfg *config.Config) (*scoring.Similarity, error) {
	embedder, err := llm.NewEmbedder(llm.ClientConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
	}, cfg.Eval.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return scoring.NewSimilarity(embedder), nil
}

// UserMessage renders err for stderr. Fixture and judge configuration errors
// keep their historical wording; other domain errors print their cause.
func UserMessage(err error) string {
	var nf *application.FixtureNotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	if errors.Is(err, application.ErrJudgeRequired) {
		return "Error: " + application.ErrJudgeRequired.Error()
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindConfig && de.Err != nil {
		return "config error: " + de.Err.Error()
	}
	return err.Error()
}
