package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/lysithea/internal/catalog"
	"github.com/lysithea/internal/config"
	"github.com/lysithea/internal/engine"
	"github.com/lysithea/internal/llm"
	"github.com/lysithea/internal/logging"
	"github.com/lysithea/internal/output"
	"github.com/lysithea/pkg/models"
)

// GenerateCommand returns the generate command.
func GenerateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate code for a natural-language request",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "domain",
				Aliases: []string{"d"},
				Usage:   "Target pattern domain (http-route, sql-query, middleware)",
			},
			&cli.StringSliceFlag{
				Name:    "set",
				Aliases: []string{"s"},
				Usage:   "Slot override in name=value form (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "no-model",
				Usage: "Disable the external model (mechanical adaptation only)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Run the pipeline without writing output files",
			},
		},
		ArgsUsage: "\"REQUEST\"",
		Action:    runGenerate,
	}
}

func runGenerate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: request text")
	}
	prompt := strings.Join(c.Args().Slice(), " ")

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	overrides, err := parseOverrides(c.StringSlice("set"))
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.General.PatternsDir)
	if err != nil {
		return fmt.Errorf("failed to load pattern catalog: %w", err)
	}
	store := catalog.NewStore(cat)

	model, err := buildModelClient(cfg, c.Bool("no-model"))
	if err != nil {
		return err
	}

	service := engine.Build(store, model, cfg.Engine.ExtractConfidenceThreshold, engine.Config{
		MaxRepairAttempts: cfg.Engine.MaxRepairAttempts,
		DefaultDomain:     cfg.Engine.DefaultDomain,
	})

	runID := uuid.NewString()
	logger, err := logging.StartRunLogging(runID)
	if err != nil {
		return fmt.Errorf("failed to start run logging: %w", err)
	}
	defer logger.Close()

	results, err := service.RunAll(context.Background(), engine.Request{
		Prompt:        prompt,
		Domain:        c.String("domain"),
		RunID:         runID,
		SlotOverrides: overrides,
	})
	if err != nil {
		return err
	}

	writer := output.NewWriter(cfg.General.OutputDir)
	snapshot := store.Current()
	failures := 0

	for _, result := range results {
		printResult(result)
		if result.State == models.RunRejected {
			failures++
			continue
		}
		if c.Bool("dry-run") || result.Artifact == nil {
			continue
		}

		pattern, ok := snapshot.Get(result.Artifact.SourcePatternID)
		if !ok {
			continue
		}
		resource := result.Query.Resource
		path, err := writer.WriteArtifact(result.Artifact, pattern, resource)
		if err != nil {
			return err
		}
		fmt.Printf("  wrote %s\n", path)
		if notesPath, err := writer.WriteNotes(result, resource); err == nil {
			fmt.Printf("  wrote %s\n", notesPath)
		}
		if result.State != models.RunAccepted {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d operation(s) did not produce an accepted artifact", failures, len(results))
	}
	return nil
}

func printResult(result *models.GenerationResult) {
	op := "?"
	resource := "?"
	if result.Query != nil {
		op = string(result.Query.Operation)
		resource = result.Query.Resource
	}
	fmt.Printf("%s %s: %s", op, resource, result.State)
	if result.Report != nil {
		fmt.Printf(" (score %.2f, %d attempt(s))", result.Report.Score, result.Attempts)
	}
	fmt.Println()
	if result.Report != nil {
		for _, v := range result.Report.Violations {
			fmt.Printf("  violation [%s]: %s\n", v.Capability, v.Reason)
		}
	}
}

func parseOverrides(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --set value %q (want name=value)", pair)
		}
		overrides[name] = value
	}
	return overrides, nil
}

// buildModelClient wires the resilient ollama client, or returns nil when
// the model is disabled so the pipeline runs purely mechanically.
func buildModelClient(cfg *config.Config, noModel bool) (llm.Client, error) {
	if noModel || !cfg.Model.Enabled {
		return nil, nil
	}

	base, err := llm.NewOllamaClient(llm.OllamaConfig{
		ServerURL:   cfg.Model.ServerURL,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		HTTPTimeout: cfg.Model.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	return llm.NewResilientClient(base,
		llm.WithTimeout(cfg.Model.Timeout),
		llm.WithRateLimit(cfg.Model.RatePerSec),
	), nil
}
