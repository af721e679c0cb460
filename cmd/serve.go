package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lysithea/internal/api"
	"github.com/lysithea/internal/catalog"
	"github.com/lysithea/internal/config"
	"github.com/lysithea/internal/engine"
)

// ServeCommand returns the API server command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the generation API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "Override the listen address",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cat, err := catalog.Load(cfg.General.PatternsDir)
	if err != nil {
		return fmt.Errorf("failed to load pattern catalog: %w", err)
	}
	store := catalog.NewStore(cat)

	model, err := buildModelClient(cfg, false)
	if err != nil {
		return err
	}

	service := engine.Build(store, model, cfg.Engine.ExtractConfidenceThreshold, engine.Config{
		MaxRepairAttempts: cfg.Engine.MaxRepairAttempts,
		DefaultDomain:     cfg.Engine.DefaultDomain,
	})

	listen := cfg.API.Listen
	if override := c.String("listen"); override != "" {
		listen = override
	}

	server := api.NewServer(store, service, cfg.API.APIKeyHash)
	return server.Start(listen)
}
