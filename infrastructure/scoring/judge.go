package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/llm"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/logging"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

// DefaultJudgeMaxTokens bounds a verdict reply.
const DefaultJudgeMaxTokens = 512

var _ ports.Judge = (*Judge)(nil)

// JudgeConfig tunes the judge call.
type JudgeConfig struct {
	MaxTokens int `validate:"min=16,max=4096"`
}

// Judge scores explanations with an LLM using fixed rubric prompts and a
// structured {score, reasoning} reply.
type Judge struct {
	client ports.LLMClient
	config JudgeConfig
	logger *slog.Logger
	tracer trace.Tracer
}

// NewJudge creates a judge over client. A zero MaxTokens uses DefaultJudgeMaxTokens.
func NewJudge(client ports.LLMClient, config JudgeConfig, logger *slog.Logger) (*Judge, error) {
	if client == nil {
		return nil, fmt.Errorf("LLM client cannot be nil")
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultJudgeMaxTokens
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("judge configuration validation failed: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Judge{
		client: client,
		config: config,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Golden scores explanation against the reference explanation expected.
func (j *Judge) Golden(ctx context.Context, postText, expected, explanation string) (domain.Verdict, error) {
	return j.judge(ctx, "Golden", goldenTemplate, promptData{
		PostText:    postText,
		Expected:    expected,
		Explanation: explanation,
	})
}

// Relevance scores how well explanation explains the post.
func (j *Judge) Relevance(ctx context.Context, postText, explanation string) (domain.Verdict, error) {
	return j.judge(ctx, "Relevance", relevanceTemplate, promptData{
		PostText:    postText,
		Explanation: explanation,
	})
}

func (j *Judge) judge(ctx context.Context, op string, tmpl *template.Template, data promptData) (domain.Verdict, error) {
	ctx, span := j.tracer.Start(ctx, "scoring.judge",
		trace.WithAttributes(
			attribute.String("judge.rubric", tmpl.Name()),
			attribute.String("judge.model", j.client.GetModel()),
		),
	)
	defer span.End()

	fail := func(err error) (domain.Verdict, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Verdict{}, domain.NewError(domain.KindJudge, op, err)
	}

	prompt, err := render(tmpl, data)
	if err != nil {
		return fail(err)
	}

	reply, err := j.client.Complete(ctx, prompt, map[string]any{
		llm.OptionMaxTokens:      j.config.MaxTokens,
		llm.OptionResponseSchema: llm.VerdictSchema(),
	})
	if err != nil {
		return fail(err)
	}

	verdict, err := ParseVerdict(reply)
	if err != nil {
		return fail(err)
	}
	if !verdict.Valid() {
		j.logger.WarnContext(ctx, "judge score outside rubric", "rubric", tmpl.Name(), "score", verdict.Score)
	}

	span.SetAttributes(attribute.Int("judge.score", verdict.Score))
	return verdict, nil
}

// ParseVerdict decodes a judge reply. The score is coerced to an integer:
// numbers are truncated and numeric strings are parsed. A missing or
// malformed score gives 0. A reply that holds no decodable JSON object is an
// error.
func ParseVerdict(reply string) (domain.Verdict, error) {
	raw := llm.ExtractJSON(reply)
	if raw == "" {
		raw = strings.TrimSpace(reply)
		if raw == "" {
			raw = "{}"
		}
	}

	var body struct {
		Score     json.RawMessage `json:"score"`
		Reasoning any             `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return domain.Verdict{}, fmt.Errorf("decode judge reply: %w", err)
	}

	var reasoning string
	switch r := body.Reasoning.(type) {
	case nil:
	case string:
		reasoning = r
	default:
		reasoning = fmt.Sprint(r)
	}

	return domain.Verdict{Score: coerceScore(body.Score), Reasoning: reasoning}, nil
}

func coerceScore(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if math.IsNaN(f) || math.Abs(f) > math.MaxInt32 {
			return 0
		}
		return int(f)
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
			return n
		}
	}
	return 0
}
