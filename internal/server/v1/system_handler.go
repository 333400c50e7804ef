package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-console/internal/store"
	"github.com/nulzo/prism-console/pkg/api"
)

type SystemHandler struct {
	repo    store.Repository
	version string
}

func NewSystemHandler(repo store.Repository, version string) *SystemHandler {
	return &SystemHandler{repo: repo, version: version}
}

// Health is an unauthenticated liveness probe.
//
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports the server version and provider counts.
//
// GET /api/v1/status
func (h *SystemHandler) Status(c *gin.Context) {
	providers, err := h.repo.Providers().List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := api.Status{
		Version:        h.version,
		ServerRunning:  true,
		ProvidersTotal: len(providers),
	}
	for _, p := range providers {
		if p.Enabled {
			status.ProvidersEnabled++
		}
	}
	c.JSON(http.StatusOK, api.OK(status))
}
