package server

import (
	"github.com/nulzo/prism-console/internal/server/middleware"
	v1 "github.com/nulzo/prism-console/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.logger)

	s.router.Use(middleware.ErrorHandler(s.logger))

	system := v1.NewSystemHandler(s.repo, s.version)
	s.router.GET("/health", system.Health)

	api := s.router.Group("/api")
	api.Use(limiter.Middleware())
	api.Use(middleware.Auth(s.config.Server.APIKeys))

	providers := v1.NewProviderHandler(s.repo, s.validator, s.logger)
	rules := v1.NewRuleHandler(s.repo, s.validator, s.logger)
	guardrails := v1.NewGuardrailHandler(s.repo, s.validator, s.logger)

	v2 := api.Group("/v2")
	{
		v2.GET("/providers", providers.List)
		v2.POST("/providers", providers.Create)
		v2.DELETE("/providers/:uuid", providers.Delete)
	}

	v1g := api.Group("/v1")
	{
		v1g.GET("/status", system.Status)

		v1g.GET("/rules", rules.List)
		v1g.POST("/rule", rules.Create)
		v1g.GET("/rule/:uuid", rules.Get)
		v1g.POST("/rule/:uuid", rules.Update)
		v1g.DELETE("/rule/:uuid", rules.Delete)

		v1g.GET("/provider-models/:uuid", providers.Models)
		v1g.POST("/provider-models/:uuid", providers.RefreshModels)

		v1g.GET("/guardrails/rules", guardrails.List)
		v1g.POST("/guardrails/rules", guardrails.Create)
		v1g.PUT("/guardrails/rules/:id", guardrails.Update)
	}
}
