package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/nulzo/prism-console/internal/store"
	"github.com/nulzo/prism-console/pkg/api"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db       *sqlx.DB // Required for starting new transactions
	executor DB       // Used for actual queries (can be *sqlx.DB or *sqlx.Tx)
}

var _ store.Repository = (*SqliteRepository)(nil)

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	if _, inTx := r.executor.(*sqlx.Tx); inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &SqliteRepository{
		db:       r.db,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		// attempt rollback, but prioritize original error
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SqliteRepository) Providers() store.ProviderRepository {
	return &providerRepo{db: r.executor}
}

func (r *SqliteRepository) Rules() store.RuleRepository {
	return &ruleRepo{db: r.executor}
}

func (r *SqliteRepository) Guardrails() store.GuardrailRepository {
	return &guardrailRepo{db: r.executor}
}

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// jsonText stores a value as a JSON encoded TEXT column.
func jsonText(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type providerRow struct {
	UUID          string `db:"uuid"`
	Name          string `db:"name"`
	APIBase       string `db:"api_base"`
	APIStyle      string `db:"api_style"`
	Token         string `db:"token"`
	NoKeyRequired bool   `db:"no_key_required"`
	Enabled       bool   `db:"enabled"`
	ProxyURL      string `db:"proxy_url"`
	Catalogue     string `db:"catalogue"`
}

func (row providerRow) toAPI() (api.Provider, error) {
	p := api.Provider{
		UUID:          row.UUID,
		Name:          row.Name,
		APIBase:       row.APIBase,
		APIStyle:      row.APIStyle,
		Token:         row.Token,
		NoKeyRequired: row.NoKeyRequired,
		Enabled:       row.Enabled,
		ProxyURL:      row.ProxyURL,
	}
	if err := json.Unmarshal([]byte(row.Catalogue), &p.Models); err != nil {
		return p, fmt.Errorf("decode catalogue of provider %s: %w", row.UUID, err)
	}
	return p, nil
}

const providerColumns = `uuid, name, api_base, api_style, token, no_key_required, enabled, proxy_url, catalogue`

type providerRepo struct {
	db DB
}

func (r *providerRepo) List(ctx context.Context) ([]api.Provider, error) {
	var rows []providerRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+providerColumns+` FROM providers ORDER BY rowid`); err != nil {
		return nil, err
	}
	out := make([]api.Provider, 0, len(rows))
	for _, row := range rows {
		p, err := row.toAPI()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *providerRepo) Get(ctx context.Context, uuid string) (*api.Provider, error) {
	var row providerRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+providerColumns+` FROM providers WHERE uuid = ?`, uuid); err != nil {
		return nil, mapErr(err)
	}
	p, err := row.toAPI()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *providerRepo) Create(ctx context.Context, p *api.Provider) error {
	catalogue, err := jsonText(append([]string{}, p.Models...))
	if err != nil {
		return err
	}
	row := providerRow{
		UUID:          p.UUID,
		Name:          p.Name,
		APIBase:       p.APIBase,
		APIStyle:      p.APIStyle,
		Token:         p.Token,
		NoKeyRequired: p.NoKeyRequired,
		Enabled:       p.Enabled,
		ProxyURL:      p.ProxyURL,
		Catalogue:     catalogue,
	}
	query := `
	INSERT INTO providers (` + providerColumns + `)
	VALUES (:uuid, :name, :api_base, :api_style, :token, :no_key_required, :enabled, :proxy_url, :catalogue)`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return mapErr(err)
}

func (r *providerRepo) Delete(ctx context.Context, uuid string) error {
	if err := mustAffect(r.db.ExecContext(ctx, `DELETE FROM providers WHERE uuid = ?`, uuid)); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM provider_models WHERE provider_uuid = ?`, uuid)
	return err
}

type modelsRow struct {
	Models      string `db:"models"`
	LastUpdated string `db:"last_updated"`
}

func (r *providerRepo) Models(ctx context.Context, uuid string) (*api.ProviderModels, error) {
	if _, err := r.Get(ctx, uuid); err != nil {
		return nil, err
	}

	var row modelsRow
	err := r.db.GetContext(ctx, &row, `SELECT models, last_updated FROM provider_models WHERE provider_uuid = ?`, uuid)
	if errors.Is(err, sql.ErrNoRows) {
		return &api.ProviderModels{Models: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}

	out := &api.ProviderModels{LastUpdated: row.LastUpdated}
	if err := json.Unmarshal([]byte(row.Models), &out.Models); err != nil {
		return nil, fmt.Errorf("decode models of provider %s: %w", uuid, err)
	}
	if out.Models == nil {
		out.Models = []string{}
	}
	return out, nil
}

func (r *providerRepo) SetModels(ctx context.Context, uuid string, models []string, updated time.Time) error {
	if _, err := r.Get(ctx, uuid); err != nil {
		return err
	}
	encoded, err := jsonText(append([]string{}, models...))
	if err != nil {
		return err
	}
	query := `
	INSERT INTO provider_models (provider_uuid, models, last_updated) VALUES (?, ?, ?)
	ON CONFLICT(provider_uuid) DO UPDATE SET models = excluded.models, last_updated = excluded.last_updated`
	_, err = r.db.ExecContext(ctx, query, uuid, encoded, updated.UTC().Format(time.RFC3339))
	return err
}

type ruleRow struct {
	UUID          string `db:"uuid"`
	Scenario      string `db:"scenario"`
	RequestModel  string `db:"request_model"`
	ResponseModel string `db:"response_model"`
	Description   string `db:"description"`
	Services      string `db:"services"`
	Active        bool   `db:"active"`
	LBTactic      string `db:"lb_tactic"`
	SmartEnabled  bool   `db:"smart_enabled"`
	SmartRouting  string `db:"smart_routing"`
}

func newRuleRow(rule *api.Rule) (ruleRow, error) {
	services, err := jsonText(append([]api.Service{}, rule.Services...))
	if err != nil {
		return ruleRow{}, err
	}
	return ruleRow{
		UUID:          rule.UUID,
		Scenario:      rule.Scenario,
		RequestModel:  rule.RequestModel,
		ResponseModel: rule.ResponseModel,
		Description:   rule.Description,
		Services:      services,
		Active:        rule.Active,
		LBTactic:      string(rule.LBTactic),
		SmartEnabled:  rule.SmartEnabled,
		SmartRouting:  string(rule.SmartRouting),
	}, nil
}

func (row ruleRow) toAPI() (api.Rule, error) {
	rule := api.Rule{
		UUID:          row.UUID,
		Scenario:      row.Scenario,
		RequestModel:  row.RequestModel,
		ResponseModel: row.ResponseModel,
		Description:   row.Description,
		Active:        row.Active,
		SmartEnabled:  row.SmartEnabled,
	}
	if row.LBTactic != "" {
		rule.LBTactic = api.Opaque(row.LBTactic)
	}
	if row.SmartRouting != "" {
		rule.SmartRouting = api.Opaque(row.SmartRouting)
	}
	if err := json.Unmarshal([]byte(row.Services), &rule.Services); err != nil {
		return rule, fmt.Errorf("decode services of rule %s: %w", row.UUID, err)
	}
	if rule.Services == nil {
		rule.Services = []api.Service{}
	}
	return rule, nil
}

const ruleColumns = `uuid, scenario, request_model, response_model, description, services, active,
	lb_tactic, smart_enabled, smart_routing`

type ruleRepo struct {
	db DB
}

func (r *ruleRepo) List(ctx context.Context, scenario string) ([]api.Rule, error) {
	var rows []ruleRow
	var err error
	if scenario == "" {
		err = r.db.SelectContext(ctx, &rows, `SELECT `+ruleColumns+` FROM rules ORDER BY rowid`)
	} else {
		err = r.db.SelectContext(ctx, &rows, `SELECT `+ruleColumns+` FROM rules WHERE scenario = ? ORDER BY rowid`, scenario)
	}
	if err != nil {
		return nil, err
	}

	out := make([]api.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toAPI()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r *ruleRepo) Get(ctx context.Context, uuid string) (*api.Rule, error) {
	var row ruleRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+ruleColumns+` FROM rules WHERE uuid = ?`, uuid); err != nil {
		return nil, mapErr(err)
	}
	rule, err := row.toAPI()
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepo) Create(ctx context.Context, rule *api.Rule) error {
	row, err := newRuleRow(rule)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO rules (` + ruleColumns + `)
	VALUES (:uuid, :scenario, :request_model, :response_model, :description, :services, :active,
		:lb_tactic, :smart_enabled, :smart_routing)`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return mapErr(err)
}

func (r *ruleRepo) Update(ctx context.Context, rule *api.Rule) error {
	row, err := newRuleRow(rule)
	if err != nil {
		return err
	}
	query := `
	UPDATE rules SET scenario = :scenario, request_model = :request_model, response_model = :response_model,
		description = :description, services = :services, active = :active,
		lb_tactic = :lb_tactic, smart_enabled = :smart_enabled, smart_routing = :smart_routing
	WHERE uuid = :uuid`
	return mustAffect(r.db.NamedExecContext(ctx, query, row))
}

func (r *ruleRepo) Delete(ctx context.Context, uuid string) error {
	return mustAffect(r.db.ExecContext(ctx, `DELETE FROM rules WHERE uuid = ?`, uuid))
}

type guardrailRow struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	Type    string `db:"type"`
	Enabled bool   `db:"enabled"`
	Scope   string `db:"scope"`
	Params  string `db:"params"`
}

func newGuardrailRow(rule *api.GuardrailRule) (guardrailRow, error) {
	scope, err := jsonText(rule.Scope)
	if err != nil {
		return guardrailRow{}, err
	}
	params := "{}"
	if rule.Params != nil {
		if params, err = jsonText(rule.Params); err != nil {
			return guardrailRow{}, err
		}
	}
	return guardrailRow{
		ID:      rule.ID,
		Name:    rule.Name,
		Type:    rule.Type,
		Enabled: rule.Enabled,
		Scope:   scope,
		Params:  params,
	}, nil
}

func (row guardrailRow) toAPI() (api.GuardrailRule, error) {
	rule := api.GuardrailRule{
		ID:      row.ID,
		Name:    row.Name,
		Type:    row.Type,
		Enabled: row.Enabled,
	}
	if err := json.Unmarshal([]byte(row.Scope), &rule.Scope); err != nil {
		return rule, fmt.Errorf("decode scope of guardrail %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Params), &rule.Params); err != nil {
		return rule, fmt.Errorf("decode params of guardrail %s: %w", row.ID, err)
	}
	return rule, nil
}

const guardrailColumns = `id, name, type, enabled, scope, params`

type guardrailRepo struct {
	db DB
}

func (r *guardrailRepo) List(ctx context.Context) ([]api.GuardrailRule, error) {
	var rows []guardrailRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+guardrailColumns+` FROM guardrail_rules ORDER BY rowid`); err != nil {
		return nil, err
	}
	out := make([]api.GuardrailRule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toAPI()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r *guardrailRepo) Get(ctx context.Context, id string) (*api.GuardrailRule, error) {
	var row guardrailRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+guardrailColumns+` FROM guardrail_rules WHERE id = ?`, id); err != nil {
		return nil, mapErr(err)
	}
	rule, err := row.toAPI()
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *guardrailRepo) Create(ctx context.Context, rule *api.GuardrailRule) error {
	row, err := newGuardrailRow(rule)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO guardrail_rules (` + guardrailColumns + `)
	VALUES (:id, :name, :type, :enabled, :scope, :params)`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return mapErr(err)
}

func (r *guardrailRepo) Update(ctx context.Context, rule *api.GuardrailRule) error {
	row, err := newGuardrailRow(rule)
	if err != nil {
		return err
	}
	query := `
	UPDATE guardrail_rules SET name = :name, type = :type, enabled = :enabled, scope = :scope, params = :params
	WHERE id = :id`
	return mustAffect(r.db.NamedExecContext(ctx, query, row))
}
