package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/api"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/config"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/logging"
)

const readHeaderTimeout = 10 * time.Second

type apiFlags struct {
	globalFlags
	host string
	port int
}

// NewAPICommand returns the explainer-api root command.
func NewAPICommand() *cobra.Command {
	f := &apiFlags{}
	cmd := &cobra.Command{
		Use:           "explainer-api",
		Short:         "Serve the Bluesky post explainer over HTTP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAPI(cmd, f)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&f.host, "host", "", "listen host (default from config, 0.0.0.0)")
	cmd.Flags().IntVar(&f.port, "port", 0, "listen port (default from config, 8000)")
	return cmd
}

func runAPI(cmd *cobra.Command, f *apiFlags) error {
	cfg, err := f.load()
	if err != nil {
		return err
	}
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
	if err := cfg.RequireCredentials(config.CredentialOpenAI, config.CredentialBluesky); err != nil {
		return err
	}

	logger := logging.New("api")
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	registry, metrics := newMetrics()
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	explainer, err := newExplainer(cfg, fetcher, metrics)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(api.Config{
		Explainer:   explainer,
		Metrics:     metrics,
		Gatherer:    registry,
		Logger:      logger,
		ServiceName: "explainer-api",
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr, "model", cfg.OpenAI.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// ExecuteAPI runs the explainer-api command and returns the process exit code.
func ExecuteAPI(ctx context.Context, args []string) int {
	cmd := NewAPICommand()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), UserMessage(err))
		return 1
	}
	return 0
}
