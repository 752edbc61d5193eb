package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/outlookbridge/internal/config"
	"github.com/pitabwire/outlookbridge/internal/observability"
	"github.com/pitabwire/outlookbridge/internal/openapi"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config     *config.Config
	Dispatcher Dispatcher
	Actions    []string
	OpenAPI    *openapi.Index
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Gatherer   prometheus.Gatherer
	Readiness  observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness and metrics skip call context and reply
// timeouts.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(observability.TracingMiddleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	r.Get(openapi.HealthPath, observability.HandleHealth())
	r.Get(openapi.ReadyPath, observability.HandleReady(deps.Readiness))
	if deps.Gatherer != nil && deps.Config.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, observability.Handler(deps.Gatherer))
	}
	r.Get("/openapi.json", handleOpenAPI(deps.OpenAPI))

	r.Group(func(r chi.Router) {
		r.Use(CallContext(logger))
		r.Use(RequestLogging(logger))

		r.Get(openapi.ActionsPath, handleListActions(deps.Actions))
		r.With(ReplyTimeout(deps.Config.Server.ReplyTimeout)).
			Post(openapi.ActionsPath+"/{action}", handleInvoke(deps.Dispatcher, deps.OpenAPI, deps.Config.Server.MaxBodyBytes))
	})

	return r
}
