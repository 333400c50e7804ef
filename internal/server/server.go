package server

import (
	"net/http"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-console/internal/config"
	"github.com/nulzo/prism-console/internal/server/middleware"
	"github.com/nulzo/prism-console/internal/server/validator"
	"github.com/nulzo/prism-console/internal/store"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "prism-devserver"

// Server is an in-process admin API used for local development and
// integration tests of the console.
type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    *zap.Logger
	repo      store.Repository
	validator *validator.Validator
	version   string
}

func New(cfg *config.Config, repo store.Repository, logger *zap.Logger, version string) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(middleware.Logger(logger, "/health"))
	engine.Use(otelgin.Middleware(serviceName))

	s := &Server{
		router:    engine,
		config:    cfg,
		logger:    logger,
		repo:      repo,
		validator: validator.New(),
		version:   version,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
