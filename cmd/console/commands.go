package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/nulzo/prism-console/internal/cli"
	"github.com/nulzo/prism-console/internal/core/domain"
	"github.com/nulzo/prism-console/pkg/api"
	"gopkg.in/yaml.v3"
)

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...interface{}) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	name, rest := args[0], args[1:]
	switch name {
	case "status":
		return a.status(ctx)
	case "providers":
		return a.providers(ctx)
	case "rules":
		if len(rest) > 0 && rest[0] == "export" {
			return a.exportRules(ctx, rest[1:])
		}
		return a.listRules(ctx, rest)
	case "rule":
		if len(rest) == 0 {
			return usagef("rule: expected add or delete")
		}
		switch rest[0] {
		case "add":
			return a.addRule(ctx, rest[1:])
		case "delete":
			return a.deleteRule(ctx, rest[1:])
		}
		return usagef("rule: unknown subcommand %q", rest[0])
	case "models":
		if len(rest) == 2 && rest[0] == "refresh" {
			return a.refreshModels(ctx, rest[1])
		}
		if len(rest) != 1 {
			return usagef("models: expected a provider")
		}
		return a.listModels(ctx, rest[0])
	case "guardrails":
		if len(rest) == 2 && rest[0] == "duplicate" {
			return a.duplicateGuardrail(ctx, rest[1])
		}
		return a.listGuardrails(ctx)
	}
	return usagef("unknown command %q", name)
}

func (a *app) status(ctx context.Context) error {
	status, err := a.client.Status(ctx)
	if err != nil {
		a.notifier.Error(domain.UserMessage("Failed to get status", err))
		return err
	}
	_, _ = fmt.Fprintf(a.out, "%s %s\n", cli.Style("version", cli.Bold), status.Version)
	_, _ = fmt.Fprintf(a.out, "%s %d/%d enabled\n", cli.Style("providers", cli.Bold), status.ProvidersEnabled, status.ProvidersTotal)
	return nil
}

// load fetches rules and providers, reporting failures to the operator.
func (a *app) load(ctx context.Context) error {
	if _, err := a.rules.Load(ctx); err != nil {
		a.notifier.Error(domain.UserMessage("Failed to load rules", err))
		return err
	}
	return nil
}

func (a *app) providers(ctx context.Context) error {
	if err := a.load(ctx); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "UUID\tNAME\tSTYLE\tENABLED")
	for _, p := range a.rules.Providers() {
		enabled := cli.CheckMark()
		if !p.Enabled {
			enabled = cli.CrossMark()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.UUID, p.Name, p.APIStyle, enabled)
	}
	return tw.Flush()
}

func (a *app) listRules(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rules", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	scenario := fs.String("scenario", a.rules.Scenario(), "only show rules of this scenario")
	asJSON := fs.Bool("json", false, "print rules as JSON")
	if err := fs.Parse(args); err != nil {
		return usagef("rules: %v", err)
	}

	a.rules.SetScenario(*scenario)
	if err := a.load(ctx); err != nil {
		return err
	}

	records := a.rules.Records()
	if *asJSON {
		wire := make([]api.Rule, len(records))
		for i, r := range records {
			wire[i] = r.ToWire()
		}
		cli.PrettyPrint(a.out, wire)
		return nil
	}

	if len(records) == 0 {
		_, _ = fmt.Fprintln(a.out, cli.Dim("no rules"))
		return nil
	}
	for _, r := range records {
		a.printRule(r)
	}
	return nil
}

func (a *app) printRule(r domain.RuleRecord) {
	header := cli.Style(r.RequestModel, cli.Bold)
	if r.ResponseModel != "" {
		header += " " + cli.Arrow() + " " + r.ResponseModel
	}
	if !r.Active {
		header += " " + cli.Dim("(inactive)")
	}
	_, _ = fmt.Fprintf(a.out, "%s  %s\n", header, cli.Dim(r.ID.String()))
	if r.Description != "" {
		_, _ = fmt.Fprintf(a.out, "  %s\n", cli.Dim(r.Description))
	}
	for _, s := range r.Services {
		if s.Provider == "" {
			continue
		}
		line := fmt.Sprintf("  %s/%s weight=%d", a.rules.DisplayProvider(s.Provider), s.Model, s.Weight)
		if s.TimeWindow > 0 {
			line += fmt.Sprintf(" window=%ds", s.TimeWindow)
		}
		if !s.Active {
			line = cli.Dim(line + " (inactive)")
		}
		_, _ = fmt.Fprintln(a.out, line)
	}
}

func (a *app) exportRules(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rules export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	scenario := fs.String("scenario", a.rules.Scenario(), "only export rules of this scenario")
	if err := fs.Parse(args); err != nil {
		return usagef("rules export: %v", err)
	}

	a.rules.SetScenario(*scenario)
	if err := a.load(ctx); err != nil {
		return err
	}

	records := a.rules.Records()
	wire := make([]api.Rule, len(records))
	for i, r := range records {
		wire[i] = r.ToWire()
	}

	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]interface{}{"rules": wire}); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return enc.Close()
}

func (a *app) addRule(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rule add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	request := fs.String("request", "", "request model")
	response := fs.String("response", "", "response model")
	provider := fs.String("provider", "", "provider uuid or name")
	model := fs.String("model", "", "upstream model")
	weight := fs.Int("weight", 1, "service weight")
	description := fs.String("description", "", "description")
	if err := fs.Parse(args); err != nil {
		return usagef("rule add: %v", err)
	}

	if err := a.load(ctx); err != nil {
		return err
	}

	rec := a.rules.AddLocal()
	id := rec.ID.String()
	svc := rec.Services[0].LocalID

	edits := []error{
		a.rules.UpdateRule(id, domain.FieldRequestModel, *request),
		a.rules.UpdateRule(id, domain.FieldResponseModel, *response),
		a.rules.UpdateRule(id, domain.FieldDescription, *description),
	}
	if *provider != "" {
		providerID := a.rules.Resolver().Normalize(*provider)
		edits = append(edits,
			a.rules.UpdateService(id, svc, domain.FieldProvider, providerID),
			a.rules.UpdateService(id, svc, domain.FieldWeight, *weight),
		)
		a.checkModel(ctx, providerID, svc, *model)
		edits = append(edits, a.rules.UpdateService(id, svc, domain.FieldModel, *model))
	}
	if err := errors.Join(edits...); err != nil {
		return err
	}

	return a.rules.Save(ctx, id)
}

// checkModel warns when model is not among the provider's known models and
// marks the entry as manually entered.
func (a *app) checkModel(ctx context.Context, providerID, serviceID, model string) {
	if model == "" {
		return
	}
	if err := a.models.Ensure(ctx, providerID); err != nil {
		a.notifier.Error(domain.UserMessage("Failed to fetch models", err))
		return
	}
	known, _ := a.models.Models(providerID)
	if len(known) > 0 && !slices.Contains(known, model) {
		a.rules.SetManualInput(serviceID, true)
		_, _ = fmt.Fprintf(a.out, "%s model %q is not listed for %s\n",
			cli.WarningSign(), model, a.rules.DisplayProvider(providerID))
	}
}

func (a *app) deleteRule(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usagef("rule delete: expected a rule uuid")
	}
	if err := a.load(ctx); err != nil {
		return err
	}
	if _, ok := a.rules.Record(args[0]); !ok {
		a.notifier.Error(fmt.Sprintf("Rule %s not found", args[0]))
		return domain.ErrRecordNotFound
	}
	return a.rules.Delete(ctx, args[0])
}

func (a *app) listModels(ctx context.Context, provider string) error {
	providerID, err := a.providerID(ctx, provider)
	if err != nil {
		return err
	}
	if err := a.models.Ensure(ctx, providerID); err != nil {
		a.notifier.Error(domain.UserMessage("Failed to fetch models", err))
		return err
	}
	models, _ := a.models.Models(providerID)
	a.printModels(providerID, models)
	return nil
}

func (a *app) refreshModels(ctx context.Context, provider string) error {
	providerID, err := a.providerID(ctx, provider)
	if err != nil {
		return err
	}
	models, err := a.models.Refresh(ctx, providerID)
	if err != nil {
		a.notifier.Error(domain.UserMessage("Failed to refresh models", err))
		return err
	}
	a.notifier.Success(fmt.Sprintf("Refreshed %d models", len(models)))
	a.printModels(providerID, models)
	return nil
}

func (a *app) providerID(ctx context.Context, ref string) (string, error) {
	if err := a.load(ctx); err != nil {
		return "", err
	}
	return a.rules.Resolver().Normalize(ref), nil
}

func (a *app) printModels(providerID string, models []string) {
	if len(models) == 0 {
		_, _ = fmt.Fprintf(a.out, "%s\n", cli.Dim("no models reported by "+a.rules.DisplayProvider(providerID)))
		return
	}
	_, _ = fmt.Fprintln(a.out, strings.Join(models, "\n"))
}

func (a *app) listGuardrails(ctx context.Context) error {
	rules, err := a.guardrails.Load(ctx)
	if err != nil {
		a.notifier.Error(domain.UserMessage("Failed to load guardrail rules", err))
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tTYPE\tENABLED")
	for _, r := range rules {
		enabled := cli.CheckMark()
		if !r.Enabled {
			enabled = cli.CrossMark()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Type, enabled)
	}
	return tw.Flush()
}

func (a *app) duplicateGuardrail(ctx context.Context, id string) error {
	if _, err := a.guardrails.Load(ctx); err != nil {
		a.notifier.Error(domain.UserMessage("Failed to load guardrail rules", err))
		return err
	}
	if err := a.guardrails.Duplicate(id); err != nil {
		a.notifier.Error(fmt.Sprintf("Guardrail rule %s not found", id))
		return err
	}
	if err := a.guardrails.Save(ctx); err != nil {
		return err
	}
	draft, _ := a.guardrails.Draft()
	_, _ = fmt.Fprintf(a.out, "%s %s\n", cli.Arrow(), draft.ID)
	return nil
}
