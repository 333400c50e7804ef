package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nulzo/prism-console/internal/server/validator"
	"github.com/nulzo/prism-console/internal/store"
	"github.com/nulzo/prism-console/pkg/api"
	"go.uber.org/zap"
)

type createProviderRequest struct {
	UUID          string   `json:"uuid"`
	Name          string   `json:"name" binding:"required"`
	APIBase       string   `json:"api_base"`
	APIStyle      string   `json:"api_style" binding:"omitempty,oneof=openai anthropic"`
	Token         string   `json:"token"`
	NoKeyRequired bool     `json:"no_key_required"`
	Enabled       *bool    `json:"enabled"`
	ProxyURL      string   `json:"proxy_url"`
	Models        []string `json:"models"`
}

type ProviderHandler struct {
	repo      store.Repository
	validator *validator.Validator
	logger    *zap.Logger
	now       func() time.Time
}

func NewProviderHandler(repo store.Repository, v *validator.Validator, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{repo: repo, validator: v, logger: logger, now: time.Now}
}

// List returns providers with their tokens masked.
//
// GET /api/v2/providers
func (h *ProviderHandler) List(c *gin.Context) {
	providers, err := h.repo.Providers().List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	for i := range providers {
		providers[i].Token = maskToken(providers[i].Token)
	}
	c.JSON(http.StatusOK, api.OK(providers))
}

// Create registers a provider. A missing uuid is generated.
//
// POST /api/v2/providers
func (h *ProviderHandler) Create(c *gin.Context) {
	var req createProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.NewProblem(http.StatusBadRequest, h.validator.Message(err)))
		return
	}

	p := api.Provider{
		UUID:          req.UUID,
		Name:          req.Name,
		APIBase:       req.APIBase,
		APIStyle:      req.APIStyle,
		Token:         req.Token,
		NoKeyRequired: req.NoKeyRequired,
		Enabled:       req.Enabled == nil || *req.Enabled,
		ProxyURL:      req.ProxyURL,
		Models:        req.Models,
	}
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	if p.APIStyle == "" {
		p.APIStyle = "openai"
	}

	if err := h.repo.Providers().Create(c.Request.Context(), &p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			_ = c.Error(api.NewProblem(http.StatusConflict, "provider already exists"))
			return
		}
		_ = c.Error(err)
		return
	}

	h.logger.Info("Provider created", zap.String("provider", p.UUID), zap.String("name", p.Name))
	p.Token = maskToken(p.Token)
	c.JSON(http.StatusOK, api.OK(p))
}

// Delete removes a provider. Rules that reference it keep the reference.
//
// DELETE /api/v2/providers/:uuid
func (h *ProviderHandler) Delete(c *gin.Context) {
	id := c.Param("uuid")
	if err := h.repo.Providers().Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = c.Error(api.NewProblem(http.StatusNotFound, "provider not found"))
			return
		}
		_ = c.Error(err)
		return
	}

	h.logger.Info("Provider deleted", zap.String("provider", id))
	c.JSON(http.StatusOK, api.Response[any]{Success: true, Message: "Provider deleted successfully"})
}

// Models returns the last probed model list of a provider.
//
// GET /api/v1/provider-models/:uuid
func (h *ProviderHandler) Models(c *gin.Context) {
	models, err := h.repo.Providers().Models(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = c.Error(api.NewProblem(http.StatusNotFound, "provider not found"))
			return
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.OK(models))
}

// RefreshModels re-probes the provider and stores the result. The dev
// server probes the provider's configured catalogue.
//
// POST /api/v1/provider-models/:uuid
func (h *ProviderHandler) RefreshModels(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("uuid")

	var out *api.ProviderModels
	err := h.repo.WithTx(ctx, func(tx store.Repository) error {
		p, err := tx.Providers().Get(ctx, id)
		if err != nil {
			return err
		}
		if !p.Enabled {
			return api.NewProblem(http.StatusBadRequest, "provider is disabled")
		}
		if err := tx.Providers().SetModels(ctx, id, p.Models, h.now()); err != nil {
			return err
		}
		out, err = tx.Providers().Models(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = c.Error(api.NewProblem(http.StatusNotFound, "provider not found"))
			return
		}
		_ = c.Error(err)
		return
	}

	h.logger.Info("Provider models refreshed", zap.String("provider", id), zap.Int("models_count", len(out.Models)))
	c.JSON(http.StatusOK, api.OK(out))
}

func maskToken(token string) string {
	if len(token) <= 8 {
		if token == "" {
			return ""
		}
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
