package api

import (
	"net/http"

	"github.com/ayo6706/treasury-governance/internal/api/handler"
	"github.com/ayo6706/treasury-governance/internal/api/middleware"
	"github.com/ayo6706/treasury-governance/internal/api/spec"
	"github.com/ayo6706/treasury-governance/internal/idempotency"
	"github.com/ayo6706/treasury-governance/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP surface is built on. Idempotency, Redis and
// Broker are optional.
type Deps struct {
	Service            *service.ProposalService
	Idempotency        *idempotency.Store
	Redis              redis.Cmdable
	Broker             handler.BrokerStatus
	Logger             *zap.Logger
	PublicRateLimitRPS int
	AuthRateLimitRPS   int
}

type Router struct {
	deps Deps
}

func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = zap.L()
	}
	return &Router{deps: deps}
}

func (api *Router) Routes() chi.Router {
	d := api.deps
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(d.Logger))
	r.Use(middleware.RecoverMiddleware(d.Logger))
	r.Use(middleware.MetricsMiddleware)

	proposalHandler := handler.NewProposalHandler(d.Service)
	governanceHandler := handler.NewGovernanceHandler(d.Service)
	healthHandler := handler.NewHealthHandler(d.Service, d.Redis, d.Broker)
	idempotent := middleware.IdempotencyMiddleware(d.Idempotency, d.Logger)

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(max(d.PublicRateLimitRPS, 1)))
		r.Get("/health/live", healthHandler.Live)
		r.Get("/health/ready", healthHandler.Ready)
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
		r.Get("/v1/roles/{role}/permissions", governanceHandler.RolePermissions)
		r.Get("/v1/refs/{ref}", governanceHandler.DescribeRef)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(max(d.AuthRateLimitRPS, 1)))

		// Proposals
		r.Post("/v1/proposals", proposalHandler.Create)
		r.Get("/v1/proposals/{id}", proposalHandler.Get)
		r.Get("/v1/proposals/{id}/audit", proposalHandler.Audit)
		r.With(idempotent).Post("/v1/proposals/{id}/votes", proposalHandler.Vote)
		r.With(idempotent).Post("/v1/proposals/{id}/execute", proposalHandler.Execute)
		r.Post("/v1/proposals/{id}/override", proposalHandler.Override)

		// Governance versions
		r.Get("/v1/governance/versions", governanceHandler.ListVersions)
		r.Get("/v1/governance/versions/{version}", governanceHandler.GetVersion)
		r.Post("/v1/governance/versions", governanceHandler.PublishVersion)
	})

	return r
}
