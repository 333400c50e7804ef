package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nulzo/prism-console/internal/server/validator"
	"github.com/nulzo/prism-console/internal/store"
	"github.com/nulzo/prism-console/pkg/api"
	"go.uber.org/zap"
)

type serviceRequest struct {
	Provider   string `json:"provider"`
	Model      string `json:"model" binding:"required_with=Provider"`
	Weight     int    `json:"weight" binding:"min=0"`
	Active     *bool  `json:"active"`
	TimeWindow int    `json:"time_window" binding:"min=0"`
}

type ruleRequest struct {
	UUID          string           `json:"uuid"`
	Scenario      string           `json:"scenario"`
	RequestModel  string           `json:"request_model" binding:"required"`
	ResponseModel string           `json:"response_model"`
	Description   string           `json:"description"`
	Services      []serviceRequest `json:"services" binding:"dive"`
	Active        *bool            `json:"active"`
	LBTactic      api.Opaque       `json:"lb_tactic"`
	SmartEnabled  bool             `json:"smart_enabled"`
	SmartRouting  api.Opaque       `json:"smart_routing"`
}

func (r ruleRequest) toRule(id string) api.Rule {
	rule := api.Rule{
		UUID:          id,
		Scenario:      r.Scenario,
		RequestModel:  r.RequestModel,
		ResponseModel: r.ResponseModel,
		Description:   r.Description,
		Active:        r.Active == nil || *r.Active,
		Services:      make([]api.Service, 0, len(r.Services)),
		LBTactic:      r.LBTactic,
		SmartEnabled:  r.SmartEnabled,
		SmartRouting:  r.SmartRouting,
	}
	for _, s := range r.Services {
		rule.Services = append(rule.Services, api.Service{
			Provider:   s.Provider,
			Model:      s.Model,
			Weight:     s.Weight,
			Active:     s.Active == nil || *s.Active,
			TimeWindow: s.TimeWindow,
		})
	}
	return rule
}

type RuleHandler struct {
	repo      store.Repository
	validator *validator.Validator
	logger    *zap.Logger
}

func NewRuleHandler(repo store.Repository, v *validator.Validator, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{repo: repo, validator: v, logger: logger}
}

// List returns rules, optionally filtered by ?scenario=.
//
// GET /api/v1/rules
func (h *RuleHandler) List(c *gin.Context) {
	rules, err := h.repo.Rules().List(c.Request.Context(), c.Query("scenario"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.OK(rules))
}

// Get returns one rule.
//
// GET /api/v1/rule/:uuid
func (h *RuleHandler) Get(c *gin.Context) {
	rule, err := h.repo.Rules().Get(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = c.Error(api.NewProblem(http.StatusNotFound, "Rule not found"))
			return
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.OK(rule))
}

// Create adds a rule. A client supplied uuid is kept as is.
//
// POST /api/v1/rule
func (h *RuleHandler) Create(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.NewProblem(http.StatusBadRequest, h.validator.Message(err)))
		return
	}

	id := req.UUID
	if id == "" {
		id = uuid.NewString()
	}
	rule := req.toRule(id)

	ctx := c.Request.Context()
	err := h.repo.WithTx(ctx, func(tx store.Repository) error {
		if err := checkUniqueRequestModel(ctx, tx, rule); err != nil {
			return err
		}
		return tx.Rules().Create(ctx, &rule)
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			_ = c.Error(api.NewProblem(http.StatusConflict, fmt.Sprintf("rule %s already exists", id)))
			return
		}
		_ = c.Error(err)
		return
	}

	h.logger.Info("Rule created", zap.String("rule", rule.UUID), zap.String("request_model", rule.RequestModel))
	c.JSON(http.StatusOK, saved(rule, "Rule saved successfully"))
}

// Update replaces a rule, creating it when the uuid is unknown.
//
// POST /api/v1/rule/:uuid
func (h *RuleHandler) Update(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.NewProblem(http.StatusBadRequest, h.validator.Message(err)))
		return
	}

	rule := req.toRule(c.Param("uuid"))
	ctx := c.Request.Context()
	err := h.repo.WithTx(ctx, func(tx store.Repository) error {
		if err := checkUniqueRequestModel(ctx, tx, rule); err != nil {
			return err
		}
		err := tx.Rules().Update(ctx, &rule)
		if errors.Is(err, store.ErrNotFound) {
			return tx.Rules().Create(ctx, &rule)
		}
		return err
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.Info("Rule updated", zap.String("rule", rule.UUID))
	c.JSON(http.StatusOK, saved(rule, "Rule saved successfully"))
}

// Delete removes a rule.
//
// DELETE /api/v1/rule/:uuid
func (h *RuleHandler) Delete(c *gin.Context) {
	id := c.Param("uuid")
	if err := h.repo.Rules().Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = c.Error(api.NewProblem(http.StatusNotFound, "Rule not found"))
			return
		}
		_ = c.Error(err)
		return
	}

	h.logger.Info("Rule deleted", zap.String("rule", id))
	c.JSON(http.StatusOK, api.Response[any]{Success: true, Message: "Rule deleted successfully"})
}

// checkUniqueRequestModel rejects a rule whose request model is already
// routed by another rule. Request models are unique across all scenarios.
func checkUniqueRequestModel(ctx context.Context, tx store.Repository, rule api.Rule) error {
	existing, err := tx.Rules().List(ctx, "")
	if err != nil {
		return err
	}
	for _, r := range existing {
		if r.RequestModel == rule.RequestModel && r.UUID != rule.UUID {
			return api.NewProblem(http.StatusConflict,
				fmt.Sprintf("rule with request model %s already exists", rule.RequestModel))
		}
	}
	return nil
}

func saved(rule api.Rule, msg string) api.Response[api.CreateRuleResult] {
	return api.Response[api.CreateRuleResult]{
		Success: true,
		Message: msg,
		Data: api.CreateRuleResult{
			UUID:          rule.UUID,
			RequestModel:  rule.RequestModel,
			ResponseModel: rule.ResponseModel,
			Active:        rule.Active,
		},
	}
}
