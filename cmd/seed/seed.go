package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/nulzo/prism-console/internal/store"
	"github.com/nulzo/prism-console/internal/store/sqlite"
	"github.com/nulzo/prism-console/pkg/api"
	"go.uber.org/zap"
)

func main() {
	dsn := flag.String("db", "console.db", "sqlite database to seed")
	flag.Parse()

	repo, err := sqlite.NewSQLiteStorage(*dsn, zap.NewNop())
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	if err := seed(context.Background(), repo); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\nSuccessfully seeded %s\n", *dsn)
	fmt.Printf("Start the dev server with SERVER_DATABASE=%s\n", *dsn)
}

func seed(ctx context.Context, repo store.Repository) error {
	providers := []api.Provider{
		{
			UUID:     "9b7c6d1e-openai",
			Name:     "OpenAI",
			APIBase:  "https://api.openai.com/v1",
			APIStyle: "openai",
			Token:    "sk-test-openai",
			Enabled:  true,
			Models:   []string{"gpt-4o", "gpt-4o-mini", "o3-mini"},
		},
		{
			UUID:     "2f4e8a90-anthropic",
			Name:     "Anthropic",
			APIBase:  "https://api.anthropic.com",
			APIStyle: "anthropic",
			Token:    "sk-ant-test",
			Enabled:  true,
			Models:   []string{"claude-sonnet-4", "claude-haiku-4"},
		},
		{
			UUID:          "5a1d3c77-ollama",
			Name:          "Ollama Local",
			APIBase:       "http://localhost:11434/v1",
			APIStyle:      "openai",
			NoKeyRequired: true,
			Enabled:       false,
		},
	}

	rules := []api.Rule{
		{
			UUID:         "rule-gpt-default",
			Scenario:     "openai",
			RequestModel: "gpt-default",
			Description:  "Spread default traffic across OpenAI models",
			Active:       true,
			Services: []api.Service{
				{Provider: "9b7c6d1e-openai", Model: "gpt-4o", Weight: 3, Active: true},
				{Provider: "9b7c6d1e-openai", Model: "gpt-4o-mini", Weight: 1, Active: true, TimeWindow: 300},
			},
		},
		{
			UUID:          "rule-claude-code",
			Scenario:      "claude_code",
			RequestModel:  "claude-sonnet-4",
			ResponseModel: "claude-sonnet-4",
			Active:        true,
			Services: []api.Service{
				{Provider: "2f4e8a90-anthropic", Model: "claude-sonnet-4", Weight: 1, Active: true},
			},
		},
	}

	guardrails := []api.GuardrailRule{
		{
			ID:      "block-destructive-shell",
			Name:    "Block destructive shell commands",
			Type:    "text_match",
			Enabled: true,
			Scope:   api.GuardrailScope{Scenarios: []string{"claude_code"}, Directions: []string{"request"}},
			Params:  map[string]interface{}{"patterns": []string{"rm -rf /", "mkfs"}},
		},
	}

	return repo.WithTx(ctx, func(tx store.Repository) error {
		for i := range providers {
			if err := skipExisting(tx.Providers().Create(ctx, &providers[i])); err != nil {
				return fmt.Errorf("seed provider %s: %w", providers[i].Name, err)
			}
		}
		for i := range rules {
			if err := skipExisting(tx.Rules().Create(ctx, &rules[i])); err != nil {
				return fmt.Errorf("seed rule %s: %w", rules[i].RequestModel, err)
			}
		}
		for i := range guardrails {
			if err := skipExisting(tx.Guardrails().Create(ctx, &guardrails[i])); err != nil {
				return fmt.Errorf("seed guardrail %s: %w", guardrails[i].ID, err)
			}
		}
		return nil
	})
}

func skipExisting(err error) error {
	if errors.Is(err, store.ErrConflict) {
		log.Printf("already present, skipping")
		return nil
	}
	return err
}
