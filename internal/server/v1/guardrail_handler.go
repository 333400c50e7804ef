package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-console/internal/server/validator"
	"github.com/nulzo/prism-console/internal/store"
	"github.com/nulzo/prism-console/pkg/api"
	"go.uber.org/zap"
)

type guardrailRequest struct {
	ID      string                 `json:"id" binding:"required"`
	Name    string                 `json:"name" binding:"required"`
	Type    string                 `json:"type" binding:"required"`
	Enabled *bool                  `json:"enabled"`
	Scope   api.GuardrailScope     `json:"scope"`
	Params  map[string]interface{} `json:"params"`
}

func (r guardrailRequest) toRule() api.GuardrailRule {
	return api.GuardrailRule{
		ID:      r.ID,
		Name:    r.Name,
		Type:    r.Type,
		Enabled: r.Enabled == nil || *r.Enabled,
		Scope:   r.Scope,
		Params:  r.Params,
	}
}

type GuardrailHandler struct {
	repo      store.Repository
	validator *validator.Validator
	logger    *zap.Logger
}

func NewGuardrailHandler(repo store.Repository, v *validator.Validator, logger *zap.Logger) *GuardrailHandler {
	return &GuardrailHandler{repo: repo, validator: v, logger: logger}
}

// List returns every guardrail rule.
//
// GET /api/v1/guardrails/rules
func (h *GuardrailHandler) List(c *gin.Context) {
	rules, err := h.repo.Guardrails().List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.OK(rules))
}

// Create adds a guardrail rule.
//
// POST /api/v1/guardrails/rules
func (h *GuardrailHandler) Create(c *gin.Context) {
	var req guardrailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.NewProblem(http.StatusBadRequest, "id, name, and type are required"))
		return
	}

	rule := req.toRule()
	if err := h.repo.Guardrails().Create(c.Request.Context(), &rule); err != nil {
		if errors.Is(err, store.ErrConflict) {
			_ = c.Error(api.NewProblem(http.StatusConflict, "rule already exists"))
			return
		}
		_ = c.Error(err)
		return
	}

	h.logger.Info("Guardrail rule created", zap.String("rule", rule.ID))
	c.JSON(http.StatusOK, api.OK(api.GuardrailRuleResult{RuleID: rule.ID}))
}

// Update replaces a guardrail rule. The path id wins over the body.
//
// PUT /api/v1/guardrails/rules/:id
func (h *GuardrailHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req guardrailRequest
	req.ID = id
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.NewProblem(http.StatusBadRequest, h.validator.Message(err)))
		return
	}
	req.ID = id

	rule := req.toRule()
	if err := h.repo.Guardrails().Update(c.Request.Context(), &rule); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = c.Error(api.NewProblem(http.StatusNotFound, "rule not found"))
			return
		}
		_ = c.Error(err)
		return
	}

	h.logger.Info("Guardrail rule updated", zap.String("rule", id))
	c.JSON(http.StatusOK, api.OK(api.GuardrailRuleResult{RuleID: id}))
}
