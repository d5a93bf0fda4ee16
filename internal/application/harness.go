package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/logging"
)

// ErrJudgeRequired rejects --skip-judge for fixtures without references.
var ErrJudgeRequired = errors.New("In no-golden mode the LLM judge is required; there is no other evaluation. Do not use --skip-judge.")

// FixtureNotFoundError reports a fixture path that does not exist.
type FixtureNotFoundError struct {
	Path string
}

func (e *FixtureNotFoundError) Error() string { return "Fixture not found: " + e.Path }

const rule = "--------------------------------------------------"

// RunOptions controls one harness run.
type RunOptions struct {
	// SkipJudge disables the LLM judge. It is rejected in no-golden mode.
	SkipJudge bool

	// OutputPath receives the report unless NoReport is set.
	OutputPath string
	NoReport   bool
}

// Harness drives a fixture through an ItemRunner and prints progress to out.
type Harness struct {
	runner *ItemRunner
	out    io.Writer
	logger *slog.Logger
}

// NewHarness creates a harness printing to out. A nil logger discards.
func NewHarness(runner *ItemRunner, out io.Writer, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Harness{runner: runner, out: out, logger: logger}
}

// Run loads the fixture at path, evaluates every item in order and returns
// the report. Configuration problems are returned before any item runs.
func (h *Harness) Run(ctx context.Context, path string, opts RunOptions) (domain.Report, error) {
	fixture, err := CheckFixture(path, opts.SkipJudge)
	if err != nil {
		return domain.Report{}, err
	}
	mode := fixture.Mode()

	h.logger.InfoContext(ctx, "harness run started", "fixture", path, "mode", mode, "items", len(fixture.Items))
	start := time.Now()

	fmt.Fprintf(h.out, "Mode: %s (fixture: %s)\n", mode, path)
	fmt.Fprintln(h.out, rule)

	results := make([]domain.Result, 0, len(fixture.Items))
	for i, item := range fixture.Items {
		if err := ctx.Err(); err != nil {
			return domain.Report{}, err
		}

		fmt.Fprintf(h.out, "  [%d] %s ... ", i+1, item.Label())
		res := h.runner.Run(ctx, item, mode, opts.SkipJudge)
		if res.Failed() {
			fmt.Fprintf(h.out, "ERROR: %s\n", res.Error)
		} else {
			fmt.Fprintln(h.out, "ok")
		}
		results = append(results, res)
	}

	report := domain.Report{Summary: Summarize(mode, results), Results: results}

	summary, err := marshalIndent(report.Summary)
	if err != nil {
		return report, err
	}
	fmt.Fprintln(h.out, rule)
	fmt.Fprintf(h.out, "Summary: %s\n", strings.TrimRight(string(summary), "\n"))

	h.logger.InfoContext(ctx, "harness run completed",
		"items", report.Summary.N,
		"errors", report.Summary.Errors,
		"elapsed", time.Since(start),
	)

	if opts.NoReport || opts.OutputPath == "" {
		return report, nil
	}
	if err := WriteReport(opts.OutputPath, report); err != nil {
		return report, err
	}
	fmt.Fprintf(h.out, "Wrote %s\n", opts.OutputPath)
	return report, nil
}

// CheckFixture loads the fixture at path and rejects skipJudge when the
// fixture has no references. The CLI calls it before building any client.
func CheckFixture(path string, skipJudge bool) (domain.Fixture, error) {
	fixture, err := LoadFixture(path)
	if err != nil {
		return domain.Fixture{}, err
	}
	if fixture.Mode() == domain.ModeNoGolden && skipJudge {
		return domain.Fixture{}, domain.NewError(domain.KindConfig, "CheckFixture", ErrJudgeRequired)
	}
	return fixture, nil
}

// LoadFixture reads a fixture file. A missing file or undecodable JSON is a
// configuration error.
func LoadFixture(path string) (domain.Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Fixture{}, domain.NewError(domain.KindConfig, "LoadFixture", &FixtureNotFoundError{Path: path})
		}
		return domain.Fixture{}, domain.NewError(domain.KindConfig, "LoadFixture", fmt.Errorf("read fixture %s: %w", path, err))
	}

	var fixture domain.Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return domain.Fixture{}, domain.NewError(domain.KindConfig, "LoadFixture", fmt.Errorf("parse fixture %s: %w", path, err))
	}
	return fixture, nil
}

// Summarize aggregates results. Means skip absent values and stay nil when
// no value exists; similarities round to 4 dp and scores to 2 dp.
func Summarize(mode domain.Mode, results []domain.Result) domain.Summary {
	s := domain.Summary{Mode: mode, N: len(results)}

	var sims, lex, judge, relevance, costs []float64
	for _, r := range results {
		if r.Failed() {
			s.Errors++
		}
		if r.Usage != nil && r.Usage.Cost != nil {
			costs = append(costs, *r.Usage.Cost)
		}
		if r.Similarity != nil {
			sims = append(sims, *r.Similarity)
		}
		if r.LexicalSimilarity != nil {
			lex = append(lex, *r.LexicalSimilarity)
		}
		if r.JudgeScore != nil {
			judge = append(judge, float64(*r.JudgeScore))
		}
		if r.RelevanceScore != nil {
			relevance = append(relevance, float64(*r.RelevanceScore))
		}
	}

	if len(costs) > 0 {
		var total float64
		for _, c := range costs {
			total += c
		}
		s.TotalCost = domain.Ptr(domain.Round(total, 4))
	}

	if mode == domain.ModeGolden {
		s.MeanSimilarity = mean(sims, 4)
		s.MeanLexicalSimilarity = mean(lex, 4)
		s.MeanJudgeScore = mean(judge, 2)
	} else {
		s.MeanRelevanceScore = mean(relevance, 2)
	}
	return s
}

func mean(values []float64, places int) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return domain.Ptr(domain.Round(sum/float64(len(values)), places))
}

// WriteReport writes report as 2-space indented JSON, creating parent
// directories. Non-ASCII text and HTML characters are written unescaped.
func WriteReport(path string, report domain.Report) error {
	data, err := marshalIndent(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
