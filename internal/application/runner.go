// Package application runs the evaluation harness: it drives fixture items
// through the explainer, scores the explanations and aggregates a report.
package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/logging"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

const tracerName = "github.com/souraviitkgp/bluesky-explainer-agent/internal/application"

// NoPostText replaces unreadable post text in judge prompts.
const NoPostText = "(post fetch returned no text or error)"

var errJudgeNotConfigured = errors.New("judge not configured")

// RunnerDeps are the collaborators of an ItemRunner. Similarity is only
// used in golden mode and Judge only when judging is enabled.
type RunnerDeps struct {
	Fetcher    ports.PostFetcher `validate:"required"`
	Explainer  ports.Explainer   `validate:"required"`
	Similarity ports.SimilarityScorer
	Judge      ports.Judge
	Metrics    ports.MetricsCollector
	Logger     *slog.Logger
}

// ItemRunner evaluates one fixture item at a time.
type ItemRunner struct {
	deps   RunnerDeps
	logger *slog.Logger
	tracer trace.Tracer
}

// NewItemRunner validates deps and returns a runner.
func NewItemRunner(deps RunnerDeps) (*ItemRunner, error) {
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if err := v.Struct(deps); err != nil {
		return nil, domain.NewError(domain.KindConfig, "NewItemRunner", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &ItemRunner{deps: deps, logger: logger, tracer: otel.Tracer(tracerName)}, nil
}

// Run evaluates item under mode. Fetch and agent failures short-circuit
// into a result carrying only id, post_url and error; similarity and judge
// failures are recorded next to the metrics they replace.
func (r *ItemRunner) Run(ctx context.Context, item domain.Item, mode domain.Mode, skipJudge bool) domain.Result {
	ctx, span := r.tracer.Start(ctx, "harness.item",
		trace.WithAttributes(
			attribute.String("eval.item", item.Label()),
			attribute.String("eval.mode", string(mode)),
		),
	)
	defer span.End()

	res := r.run(ctx, item, mode, skipJudge)

	status := "ok"
	if res.Failed() {
		status = "error"
		span.SetStatus(codes.Error, res.Error)
	}
	r.count(mode, status)
	return res
}

func (r *ItemRunner) run(ctx context.Context, item domain.Item, mode domain.Mode, skipJudge bool) domain.Result {
	postURL := item.Reference()
	if postURL == "" {
		r.logger.WarnContext(ctx, "item has no post reference", "item", item.Label())
		return domain.Result{ID: item.ID, Error: domain.ErrMissingReference.Error()}
	}
	logger := r.logger.With("item", item.Label(), "post_url", postURL)

	thread, err := r.deps.Fetcher.FetchThread(ctx, postURL)
	if err != nil {
		err = asKind(domain.KindFetch, "FetchThread", err)
		logger.ErrorContext(ctx, "post fetch failed", "error", err)
		return domain.Result{ID: item.ID, PostURL: postURL, Error: err.Error()}
	}
	postText := thread.Text()
	if domain.IsMarker(postText) {
		logger.WarnContext(ctx, "post has no readable text", "thread_kind", thread.Kind.String())
		postText = NoPostText
	}

	exp, err := r.deps.Explainer.Explain(ctx, postURL)
	if err != nil {
		err = asKind(domain.KindAgent, "Explain", err)
		logger.ErrorContext(ctx, "explainer failed", "error", err)
		return domain.Result{ID: item.ID, PostURL: postURL, Error: err.Error()}
	}
	explanation := strings.TrimSpace(exp.Text)

	res := domain.Result{
		ID:                    item.ID,
		PostURL:               postURL,
		Explanation:           domain.Ptr(explanation),
		Usage:                 exp.Usage,
		RequestElapsedSeconds: domain.Ptr(exp.RequestElapsedSeconds),
	}

	if mode == domain.ModeGolden {
		var expected string
		if item.ExpectedExplanation != nil {
			expected = strings.TrimSpace(*item.ExpectedExplanation)
		}
		res.ExpectedExplanation = domain.Ptr(expected)
		r.similarity(ctx, logger, &res, expected, explanation)

		if !skipJudge {
			v, err := r.golden(ctx, postText, expected, explanation)
			if err != nil {
				logger.WarnContext(ctx, "golden judge failed", "error", err)
				res.JudgeError = err.Error()
			} else {
				res.JudgeScore = domain.Ptr(v.Score)
				res.JudgeReasoning = domain.Ptr(v.Reasoning)
				r.observe("eval_judge_score", float64(v.Score), map[string]string{"mode": string(mode)})
			}
		}
		return res
	}

	if !skipJudge {
		v, err := r.relevance(ctx, postText, explanation)
		if err != nil {
			logger.WarnContext(ctx, "relevance judge failed", "error", err)
			res.JudgeError = err.Error()
		} else {
			res.RelevanceScore = domain.Ptr(v.Score)
			res.RelevanceReasoning = domain.Ptr(v.Reasoning)
			r.observe("eval_judge_score", float64(v.Score), map[string]string{"mode": string(mode)})
		}
	}
	return res
}

// similarity fills the semantic and lexical similarity fields. An embedding
// failure is recorded in similarity_error and leaves the result valid.
func (r *ItemRunner) similarity(ctx context.Context, logger *slog.Logger, res *domain.Result, expected, explanation string) {
	if r.deps.Similarity == nil {
		res.SimilarityError = domain.NewError(domain.KindEmbedding, "Semantic", errors.New("scorer not configured")).Error()
		return
	}

	sim, err := r.deps.Similarity.Semantic(ctx, expected, explanation)
	if err != nil {
		err = asKind(domain.KindEmbedding, "Semantic", err)
		logger.WarnContext(ctx, "semantic similarity failed", "error", err)
		res.SimilarityError = err.Error()
	} else {
		res.Similarity = domain.Ptr(sim)
		r.observe("eval_similarity", sim, map[string]string{"kind": "semantic"})
	}

	lex := r.deps.Similarity.Lexical(expected, explanation)
	res.LexicalSimilarity = domain.Ptr(lex)
	r.observe("eval_similarity", lex, map[string]string{"kind": "lexical"})
}

func (r *ItemRunner) golden(ctx context.Context, postText, expected, explanation string) (domain.Verdict, error) {
	if r.deps.Judge == nil {
		return domain.Verdict{}, domain.NewError(domain.KindJudge, "Golden", errJudgeNotConfigured)
	}
	v, err := r.deps.Judge.Golden(ctx, postText, expected, explanation)
	if err != nil {
		return domain.Verdict{}, asKind(domain.KindJudge, "Golden", err)
	}
	return v, nil
}

func (r *ItemRunner) relevance(ctx context.Context, postText, explanation string) (domain.Verdict, error) {
	if r.deps.Judge == nil {
		return domain.Verdict{}, domain.NewError(domain.KindJudge, "Relevance", errJudgeNotConfigured)
	}
	v, err := r.deps.Judge.Relevance(ctx, postText, explanation)
	if err != nil {
		return domain.Verdict{}, asKind(domain.KindJudge, "Relevance", err)
	}
	return v, nil
}

func (r *ItemRunner) count(mode domain.Mode, status string) {
	if r.deps.Metrics == nil {
		return
	}
	r.deps.Metrics.RecordCounter("eval_items_total", 1, map[string]string{"mode": string(mode), "status": status})
}

func (r *ItemRunner) observe(metric string, v float64, labels map[string]string) {
	if r.deps.Metrics == nil {
		return
	}
	r.deps.Metrics.RecordHistogram(metric, v, labels)
}

// asKind tags err with kind unless it already carries that kind.
func asKind(kind domain.ErrorKind, op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) && de.Kind == kind {
		return err
	}
	return domain.NewError(kind, op, err)
}
