// Package agent runs the Bluesky post explainer: an OpenAI chat model that
// calls fetch_bluesky_post, web_search and search_news until it can answer
// with a bullet-point explanation.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/llm"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/config"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/logging"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

const tracerName = "github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/agent"

// maxParallelTools bounds concurrent tool calls within one model turn.
const maxParallelTools = 4

// ErrToolRoundsExceeded is returned when the model keeps calling tools after
// it was asked to answer.
var ErrToolRoundsExceeded = errors.New("model kept calling tools after the round limit")

var _ ports.Explainer = (*Explainer)(nil)

// Config bounds a run.
type Config struct {
	Model string `validate:"required"`

	// MaxToolRounds is the number of model turns allowed to call tools. The
	// turn after the last round is sent with tool_choice "none".
	MaxToolRounds int `validate:"min=1,max=32"`

	// MaxTokens caps each model turn. Zero leaves the provider default.
	MaxTokens int `validate:"gte=0"`

	// MaxSearchResults is used when the model does not ask for a count.
	MaxSearchResults int `validate:"min=1,max=25"`

	// Costs prices the run. A model missing from the table reports no cost.
	Costs map[string]config.ModelCost
}

// Option configures an Explainer.
type Option func(*Explainer)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Explainer) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records tool call counts and run latency.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(e *Explainer) { e.metrics = m }
}

// Explainer implements ports.Explainer over the chat completions API.
// It is safe for concurrent use; every Explain call owns its conversation.
type Explainer struct {
	client     *openai.Client
	config     Config
	tools      []openai.Tool
	executor   *toolExecutor
	classifier *llm.ErrorClassifier
	logger     *slog.Logger
	metrics    ports.MetricsCollector
	tracer     trace.Tracer
}

// New creates an explainer. fetcher and searcher back the model's tools.
func New(client *openai.Client, fetcher ports.PostFetcher, searcher ports.WebSearcher, cfg Config, opts ...Option) (*Explainer, error) {
	if client == nil {
		return nil, errors.New("openai client cannot be nil")
	}
	if fetcher == nil || searcher == nil {
		return nil, errors.New("post fetcher and web searcher are required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("agent configuration validation failed: %w", err)
	}

	e := &Explainer{
		client: client,
		config: cfg,
		tools:  toolDefinitions(),
		executor: &toolExecutor{
			fetcher:    fetcher,
			searcher:   searcher,
			maxResults: cfg.MaxSearchResults,
			validate:   newArgsValidator(),
		},
		classifier: &llm.ErrorClassifier{Provider: "openai"},
		logger:     logging.Discard(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// runStats accumulates usage over the model turns of one run.
type runStats struct {
	inputTokens  int
	outputTokens int
	totalTokens  int
	reported     bool

	modelTime time.Duration
	ttft      time.Duration
	turns     int
	toolCalls int
}

// Explain runs the agent for postURL and returns the trimmed final answer.
// Any model failure aborts the run and discards partial output.
func (e *Explainer) Explain(ctx context.Context, postURL string) (domain.Explanation, error) {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "agent.explain",
		trace.WithAttributes(
			attribute.String("agent.model", e.config.Model),
			attribute.String("bluesky.post_url", postURL),
		),
	)
	defer span.End()

	text, stats, err := e.run(ctx, postURL, start)
	elapsed := time.Since(start)
	e.recordRun(elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.ErrorContext(ctx, "explainer run failed",
			"post_url", postURL,
			"turns", stats.turns,
			"error", err,
		)
		return domain.Explanation{}, domain.NewError(domain.KindAgent, "Explain", err)
	}

	usage := e.usage(stats)
	span.SetAttributes(
		attribute.Int("agent.turns", stats.turns),
		attribute.Int("agent.tool_calls", stats.toolCalls),
		attribute.Int("llm.tokens.input", stats.inputTokens),
		attribute.Int("llm.tokens.output", stats.outputTokens),
	)
	e.logger.InfoContext(ctx, "explainer run completed",
		"post_url", postURL,
		"turns", stats.turns,
		"tool_calls", stats.toolCalls,
		"elapsed", elapsed,
	)

	return domain.Explanation{
		Text:                  strings.TrimSpace(text),
		Usage:                 usage,
		RequestElapsedSeconds: domain.Round(elapsed.Seconds(), 2),
	}, nil
}

func (e *Explainer) run(ctx context.Context, postURL string, start time.Time) (string, runStats, error) {
	var stats runStats
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: Instructions},
		{Role: openai.ChatMessageRoleUser, Content: UserPrompt(postURL)},
	}

	for round := 0; ; round++ {
		req := openai.ChatCompletionRequest{
			Model:     e.config.Model,
			Messages:  messages,
			Tools:     e.tools,
			MaxTokens: e.config.MaxTokens,
		}
		final := round >= e.config.MaxToolRounds
		if final {
			req.ToolChoice = "none"
		}

		callStart := time.Now()
		resp, err := e.client.CreateChatCompletion(ctx, req)
		callTime := time.Since(callStart)
		if err != nil {
			return "", stats, llm.ClassifyOpenAIError(e.classifier, err)
		}

		if stats.turns == 0 {
			stats.ttft = time.Since(start)
		}
		stats.turns++
		stats.modelTime += callTime
		if resp.Usage.TotalTokens > 0 || resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
			stats.reported = true
			stats.inputTokens += resp.Usage.PromptTokens
			stats.outputTokens += resp.Usage.CompletionTokens
			stats.totalTokens += resp.Usage.TotalTokens
		}

		if len(resp.Choices) == 0 {
			return "", stats, llm.ErrNoResponseChoice
		}
		msg := resp.Choices[0].Message
		if msg.Refusal != "" {
			return "", stats, llm.NewProviderError("openai", llm.ErrorTypeContentPolicy, 0, msg.Refusal, nil)
		}
		if len(msg.ToolCalls) == 0 {
			return msg.Content, stats, nil
		}
		if final {
			return "", stats, ErrToolRoundsExceeded
		}

		messages = append(messages, msg)
		outputs, err := e.executeTools(ctx, msg.ToolCalls)
		if err != nil {
			return "", stats, err
		}
		stats.toolCalls += len(msg.ToolCalls)
		messages = append(messages, outputs...)
	}
}

// executeTools runs the calls of one turn concurrently and returns the tool
// messages in call order. Only context cancellation fails the turn.
func (e *Explainer) executeTools(ctx context.Context, calls []openai.ToolCall) ([]openai.ChatCompletionMessage, error) {
	outputs := make([]openai.ChatCompletionMessage, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelTools)
	for i, call := range calls {
		g.Go(func() error {
			content := e.executeTool(gctx, call)
			outputs[i] = openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (e *Explainer) executeTool(ctx context.Context, call openai.ToolCall) string {
	ctx, span := e.tracer.Start(ctx, "agent.tool",
		trace.WithAttributes(attribute.String("agent.tool", call.Function.Name)),
	)
	defer span.End()

	start := time.Now()
	out, err := e.executor.Execute(ctx, call)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.WarnContext(ctx, "tool call failed", "tool", call.Function.Name, "error", err)
		out = errorOutput(err)
	} else {
		e.logger.DebugContext(ctx, "tool call completed", "tool", call.Function.Name, "bytes", len(out))
	}

	if e.metrics != nil {
		labels := map[string]string{"tool": call.Function.Name, "status": status}
		e.metrics.RecordCounter("agent_tool_calls_total", 1, labels)
		e.metrics.RecordLatency("agent_tool_latency_seconds", time.Since(start), labels)
	}
	return out
}

// usage builds run metrics. Token fields are absent when the API reported
// no usage; cost needs both token counts and a priced model.
func (e *Explainer) usage(stats runStats) *domain.Usage {
	u := &domain.Usage{
		TimeToFirstTokenSeconds: domain.Ptr(domain.Round(stats.ttft.Seconds(), 2)),
		ModelRunDurationSeconds: domain.Ptr(domain.Round(stats.modelTime.Seconds(), 2)),
	}
	if stats.reported {
		u.InputTokens = domain.Ptr(stats.inputTokens)
		u.OutputTokens = domain.Ptr(stats.outputTokens)
		u.TotalTokens = domain.Ptr(stats.totalTokens)
		if cost, ok := config.EstimateCost(e.config.Costs, e.config.Model, stats.inputTokens, stats.outputTokens); ok {
			u.Cost = domain.Ptr(cost)
		}
	}
	return u
}

func (e *Explainer) recordRun(elapsed time.Duration, err error) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	labels := map[string]string{"model": e.config.Model, "status": status}
	e.metrics.RecordCounter("agent_runs_total", 1, labels)
	e.metrics.RecordLatency("agent_run_latency_seconds", elapsed, labels)
}
