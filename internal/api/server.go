// Package api serves the explainer over HTTP.
//
// Routes:
//
//	GET  /health   liveness probe
//	POST /explain  run the explainer for one bsky.app post URL
//	GET  /metrics  Prometheus exposition, when a gatherer is configured
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/souraviitkgp/bluesky-explainer-agent/infrastructure/middleware"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/application"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/domain"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/logging"
	"github.com/souraviitkgp/bluesky-explainer-agent/internal/ports"
)

const (
	msgPostURLRequired = "post_url is required"
	msgPostURLInvalid  = "post_url must be a bsky.app post URL (e.g. " + domain.PostURLExample + ")"
)

// Config wires the router's collaborators. Only Explainer is required.
type Config struct {
	Explainer ports.Explainer `validate:"required"`

	// Metrics receives request counters and latencies.
	Metrics ports.MetricsCollector

	// Gatherer backs GET /metrics. The route is not registered when nil.
	Gatherer prometheus.Gatherer

	Logger      *slog.Logger
	ServiceName string
}

type handler struct {
	explainer ports.Explainer
	validate  *validator.Validate
	logger    *slog.Logger
}

type explainRequest struct {
	PostURL string `json:"post_url" validate:"required,bskyposturl"`
}

// tokenUsage and explainResponse write absent metrics as null.
type tokenUsage struct {
	InputTokens  *int     `json:"input_tokens"`
	OutputTokens *int     `json:"output_tokens"`
	TotalTokens  *int     `json:"total_tokens"`
	Cost         *float64 `json:"cost"`
}

type explainResponse struct {
	PostURL                 string      `json:"post_url"`
	Explanation             string      `json:"explanation"`
	RequestElapsedSeconds   float64     `json:"request_elapsed_seconds"`
	TokenUsage              *tokenUsage `json:"token_usage"`
	TimeToFirstTokenSeconds *float64    `json:"time_to_first_token_seconds"`
	ModelRunDurationSeconds *float64    `json:"model_run_duration_seconds"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// NewRouter builds the gin engine with tracing, request logging and request
// metrics applied to every route.
func NewRouter(cfg Config) (*gin.Engine, error) {
	v, err := application.NewValidator()
	if err != nil {
		return nil, err
	}
	if err := v.Struct(cfg); err != nil {
		return nil, domain.NewError(domain.KindConfig, "NewRouter", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	service := cfg.ServiceName
	if service == "" {
		service = "explainer-api"
	}

	h := &handler{explainer: cfg.Explainer, validate: v, logger: logger}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.Tracing(service),
		middleware.RequestLogger(logger),
		middleware.RequestMetrics(cfg.Metrics),
	)

	r.GET("/health", h.health)
	r.POST("/explain", h.explain)
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	return r, nil
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) explain(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error(), err)
		return
	}
	req.PostURL = strings.TrimSpace(req.PostURL)

	if err := h.validate.Struct(req); err != nil {
		h.fail(c, http.StatusBadRequest, validationMessage(err), err)
		return
	}

	start := time.Now()
	exp, err := h.explainer.Explain(c.Request.Context(), req.PostURL)
	if err != nil {
		status := http.StatusInternalServerError
		if domain.KindOf(err) == domain.KindValidation {
			status = http.StatusBadRequest
		}
		h.logger.ErrorContext(c.Request.Context(), "explain failed",
			"post_url", req.PostURL,
			"elapsed", time.Since(start),
			"error", err,
		)
		h.fail(c, status, err.Error(), err)
		return
	}

	c.JSON(http.StatusOK, newExplainResponse(req.PostURL, exp))
}

func (h *handler) fail(c *gin.Context, status int, detail string, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Detail: detail})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
		return msgPostURLRequired
	}
	return msgPostURLInvalid
}

func newExplainResponse(postURL string, exp domain.Explanation) explainResponse {
	resp := explainResponse{
		PostURL:               postURL,
		Explanation:           exp.Text,
		RequestElapsedSeconds: exp.RequestElapsedSeconds,
	}
	if exp.Usage == nil {
		return resp
	}
	if tu := exp.Usage.TokenUsage(); tu != nil {
		resp.TokenUsage = &tokenUsage{
			InputTokens:  tu.InputTokens,
			OutputTokens: tu.OutputTokens,
			TotalTokens:  tu.TotalTokens,
			Cost:         tu.Cost,
		}
	}
	resp.TimeToFirstTokenSeconds = round2(exp.Usage.TimeToFirstTokenSeconds)
	resp.ModelRunDurationSeconds = round2(exp.Usage.ModelRunDurationSeconds)
	return resp
}

func round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return domain.Ptr(domain.Round(*v, 2))
}
