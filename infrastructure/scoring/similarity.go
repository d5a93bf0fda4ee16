// Package scoring computes evaluation metrics for explanations: embedding
// cosine similarity, case-folded edit-distance similarity and LLM judge
// verdicts.
package scoring

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

const tracerName = "github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/scoring"

var _ ports.SimilarityScorer = (*Similarity)(nil)

// Similarity scores a produced explanation against a reference one.
type Similarity struct {
	embedder ports.Embedder
	folder   cases.Caser
	tracer   trace.Tracer
}

// NewSimilarity creates a scorer backed by embedder. Each Semantic call
// embeds both texts afresh; nothing is cached.
func NewSimilarity(embedder ports.Embedder) *Similarity {
	return &Similarity{
		embedder: embedder,
		folder:   cases.Fold(),
		tracer:   otel.Tracer(tracerName),
	}
}

// Semantic embeds both texts and returns their cosine similarity rounded to
// 4 dp. Blank texts are embedded like any other. Embedding failures are
// returned as KindEmbedding errors.
func (s *Similarity) Semantic(ctx context.Context, expected, actual string) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.semantic_similarity")
	defer span.End()

	e, err := s.embedder.Embed(ctx, expected)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, domain.NewError(domain.KindEmbedding, "Semantic", err)
	}
	a, err := s.embedder.Embed(ctx, actual)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, domain.NewError(domain.KindEmbedding, "Semantic", err)
	}

	sim := domain.Round(Cosine(e, a), 4)
	span.SetAttributes(
		attribute.Int("embedding.dimensions", len(e)),
		attribute.Float64("similarity", sim),
	)
	return sim, nil
}

// Lexical returns 1 - levenshtein(a, b) / max(len(a), len(b)) over
// case-folded runes, rounded to 4 dp. Two empty strings are identical.
func (s *Similarity) Lexical(expected, actual string) float64 {
	a := s.folder.String(expected)
	b := s.folder.String(actual)
	if a == b {
		return 1
	}

	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}

	distance := levenshtein.ComputeDistance(a, b)
	sim := 1 - float64(distance)/float64(maxLen)
	if sim < 0 {
		sim = 0
	}
	return domain.Round(sim, 4)
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero norm give 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
