package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/middleware"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/application"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/config"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/logging"
)

// DefaultFixture is evaluated when --fixture is not given.
const DefaultFixture = "eval/fixtures/golden.json"

// ReportFile is the report name inside the results directory.
const ReportFile = "out.json"

type evalFlags struct {
	globalFlags
	fixture   string
	output    string
	skipJudge bool
	noReport  bool
}

// NewEvalCommand returns the eval-harness root command.
func NewEvalCommand() *cobra.Command {
	f := &evalFlags{}
	cmd := &cobra.Command{
		Use:   "eval-harness",
		Short: "Evaluate the explainer against a fixture of Bluesky posts",
		Long: `Runs the explainer on every fixture item in order and scores the explanations.

A fixture whose first item has an expected_explanation is evaluated in golden
mode (semantic similarity, lexical similarity and an LLM judge against the
reference). Otherwise the LLM judge scores relevance only, and --skip-judge
is rejected.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd, f)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&f.fixture, "fixture", DefaultFixture, "path to the fixture JSON")
	cmd.Flags().StringVar(&f.output, "output", "", "report path (default is <results_dir>/"+ReportFile+")")
	cmd.Flags().BoolVar(&f.skipJudge, "skip-judge", false, "skip the LLM judge (golden fixtures only)")
	cmd.Flags().BoolVar(&f.noReport, "no-report", false, "do not write the report file")
	return cmd
}

func runEval(cmd *cobra.Command, f *evalFlags) error {
	cfg, err := f.load()
	if err != nil {
		return err
	}

	fixture, err := application.CheckFixture(f.fixture, f.skipJudge)
	if err != nil {
		return err
	}

	creds := []config.Credential{config.CredentialOpenAI, config.CredentialBluesky}
	if !f.skipJudge {
		creds = append(creds, config.CredentialJudge)
	}
	if err := cfg.RequireCredentials(creds...); err != nil {
		return err
	}

	registry, metrics := newMetrics()
	runner, err := newItemRunner(cfg, fixture.Mode(), f.skipJudge, metrics)
	if err != nil {
		return err
	}

	output := f.output
	if output == "" {
		output = filepath.Join(cfg.Eval.ResultsDir, ReportFile)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New("harness")
	harness := application.NewHarness(runner, cmd.OutOrStdout(), logger)
	if _, err := harness.Run(ctx, f.fixture, application.RunOptions{
		SkipJudge:  f.skipJudge,
		OutputPath: output,
		NoReport:   f.noReport,
	}); err != nil {
		return err
	}

	if f.noReport {
		return nil
	}
	path := metricsPath(output)
	if err := writeMetricsSnapshot(registry, path); err != nil {
		logger.Warn("metrics snapshot not written", "path", path, "error", err)
		return nil
	}
	logger.Info("wrote metrics snapshot", "path", path)
	return nil
}

// newItemRunner builds only the clients the mode needs: the embedder is
// golden-only and the judge is skipped with --skip-judge.
func newItemRunner(cfg *config.Config, mode domain.Mode, skipJudge bool, metrics *middleware.PrometheusMetrics) (*application.ItemRunner, error) {
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	explainer, err := newExplainer(cfg, fetcher, metrics)
	if err != nil {
		return nil, err
	}

	deps := application.RunnerDeps{
		Fetcher:   fetcher,
		Explainer: explainer,
		Metrics:   metrics,
		Logger:    logging.New("harness"),
	}
	if mode == domain.ModeGolden {
		sim, err := newSimilarity(cfg)
		if err != nil {
			return nil, err
		}
		deps.Similarity = sim
	}
	if !skipJudge {
		judge, err := newJudge(cfg, metrics)
		if err != nil {
			return nil, err
		}
		deps.Judge = judge
	}
	return application.NewItemRunner(deps)
}

// ExecuteEval runs the eval-harness command and returns the process exit code.
func ExecuteEval(ctx context.Context, args []string) int {
	cmd := NewEvalCommand()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), UserMessage(err))
		return 1
	}
	return 0
}
