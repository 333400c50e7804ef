package adminapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nulzo/prism-console/internal/core/domain"
	"github.com/nulzo/prism-console/internal/core/ports"
	"github.com/nulzo/prism-console/internal/httpclient"
	"github.com/nulzo/prism-console/pkg/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/nulzo/prism-console/internal/adminapi"

var (
	_ ports.RuleStore      = (*Client)(nil)
	_ ports.ProviderStore  = (*Client)(nil)
	_ ports.ModelSource    = (*Client)(nil)
	_ ports.GuardrailStore = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	// HTTPClient overrides the transport; it is still throttled.
	HTTPClient httpclient.HTTPClient
	Logger     *zap.Logger
}

// Client talks to the admin API. It implements every store port the
// console core consumes.
type Client struct {
	baseURL string
	token   string
	http    httpclient.HTTPClient
	tracer  trace.Tracer
	logger  *zap.Logger
}

func New(opts Options) *Client {
	base := opts.HTTPClient
	if base == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		base = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    httpclient.NewThrottledClient(base, opts.RequestsPerSecond, opts.Burst),
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
	}
}

// call performs one envelope request. A transport failure, a non-2xx status
// and success=false all come back as *domain.RemoteError; the server's
// reason is kept verbatim.
func call[T any](ctx context.Context, c *Client, op, method, path string, body interface{}) (T, error) {
	var zero T

	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	))
	defer span.End()

	headers := map[string]string{}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}

	var env api.Response[T]
	err := httpclient.SendJSON(ctx, c.http, httpclient.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: headers,
		Body:    body,
	}, &env)
	if err != nil {
		remote := toRemote(op, err)
		span.RecordError(remote)
		span.SetStatus(codes.Error, remote.Error())
		c.logger.Warn("Admin API request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", remote.StatusCode),
			zap.Error(err),
		)
		return zero, remote
	}

	if !env.Success {
		remote := domain.RemoteFailure(op, http.StatusOK, env.Reason())
		span.SetStatus(codes.Error, remote.Error())
		c.logger.Warn("Admin API reported failure", zap.String("op", op), zap.String("reason", env.Reason()))
		return zero, remote
	}

	span.SetStatus(codes.Ok, "")
	return env.Data, nil
}

func toRemote(op string, err error) *domain.RemoteError {
	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		msg := upstream.Message()
		if msg == "" {
			msg = http.StatusText(upstream.StatusCode)
		}
		return &domain.RemoteError{Op: op, StatusCode: upstream.StatusCode, Message: msg, Err: err}
	}
	return domain.WrapRemote(op, err)
}

// Status returns the server's version and provider counts.
func (c *Client) Status(ctx context.Context) (api.Status, error) {
	return call[api.Status](ctx, c, "get status", http.MethodGet, "/api/v1/status", nil)
}

func (c *Client) ListProviders(ctx context.Context) ([]api.Provider, error) {
	return call[[]api.Provider](ctx, c, "list providers", http.MethodGet, "/api/v2/providers", nil)
}

func (c *Client) CreateProvider(ctx context.Context, p api.Provider) (api.Provider, error) {
	return call[api.Provider](ctx, c, "create provider", http.MethodPost, "/api/v2/providers", p)
}

func (c *Client) DeleteProvider(ctx context.Context, id string) error {
	_, err := call[struct{}](ctx, c, "delete provider", http.MethodDelete, "/api/v2/providers/"+url.PathEscape(id), nil)
	return err
}

// ListRules returns rules, filtered to scenario when it is not empty.
func (c *Client) ListRules(ctx context.Context, scenario string) ([]api.Rule, error) {
	path := "/api/v1/rules"
	if scenario != "" {
		path += "?" + url.Values{"scenario": []string{scenario}}.Encode()
	}
	return call[[]api.Rule](ctx, c, "list rules", http.MethodGet, path, nil)
}

func (c *Client) GetRule(ctx context.Context, id string) (api.Rule, error) {
	return call[api.Rule](ctx, c, "get rule", http.MethodGet, "/api/v1/rule/"+url.PathEscape(id), nil)
}

// CreateRule posts a new rule. The server keeps initialID when it is set.
func (c *Client) CreateRule(ctx context.Context, initialID string, rule api.Rule) (string, error) {
	rule.UUID = initialID
	res, err := call[api.CreateRuleResult](ctx, c, "create rule", http.MethodPost, "/api/v1/rule", rule)
	if err != nil {
		return "", err
	}
	if res.UUID == "" {
		return initialID, nil
	}
	return res.UUID, nil
}

func (c *Client) UpdateRule(ctx context.Context, id string, rule api.Rule) error {
	rule.UUID = id
	_, err := call[api.CreateRuleResult](ctx, c, "update rule", http.MethodPost, "/api/v1/rule/"+url.PathEscape(id), rule)
	return err
}

func (c *Client) DeleteRule(ctx context.Context, id string) error {
	_, err := call[struct{}](ctx, c, "delete rule", http.MethodDelete, "/api/v1/rule/"+url.PathEscape(id), nil)
	return err
}

func (c *Client) ProviderModels(ctx context.Context, providerID string) ([]string, error) {
	res, err := call[api.ProviderModels](ctx, c, "list provider models", http.MethodGet,
		"/api/v1/provider-models/"+url.PathEscape(providerID), nil)
	if err != nil {
		return nil, err
	}
	return res.Models, nil
}

// RefreshProviderModels asks the server to re-probe the provider first.
func (c *Client) RefreshProviderModels(ctx context.Context, providerID string) ([]string, error) {
	res, err := call[api.ProviderModels](ctx, c, "refresh provider models", http.MethodPost,
		"/api/v1/provider-models/"+url.PathEscape(providerID), nil)
	if err != nil {
		return nil, err
	}
	return res.Models, nil
}

func (c *Client) ListGuardrailRules(ctx context.Context) ([]api.GuardrailRule, error) {
	return call[[]api.GuardrailRule](ctx, c, "list guardrail rules", http.MethodGet, "/api/v1/guardrails/rules", nil)
}

func (c *Client) CreateGuardrailRule(ctx context.Context, rule api.GuardrailRule) error {
	_, err := call[api.GuardrailRuleResult](ctx, c, "create guardrail rule", http.MethodPost, "/api/v1/guardrails/rules", rule)
	return err
}

func (c *Client) UpdateGuardrailRule(ctx context.Context, id string, rule api.GuardrailRule) error {
	if id == "" {
		return fmt.Errorf("update guardrail rule: id is required")
	}
	_, err := call[api.GuardrailRuleResult](ctx, c, "update guardrail rule", http.MethodPut,
		"/api/v1/guardrails/rules/"+url.PathEscape(id), rule)
	return err
}
