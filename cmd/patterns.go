package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lysithea/internal/catalog"
	"github.com/lysithea/internal/config"
)

// PatternsCommand returns the patterns listing command.
func PatternsCommand() *cli.Command {
	return &cli.Command{
		Name:  "patterns",
		Usage: "List the loaded pattern catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "domain",
				Usage: "Only list patterns in this domain",
			},
		},
		Action: runPatterns,
	}
}

func runPatterns(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cat, err := catalog.Load(cfg.General.PatternsDir)
	if err != nil {
		return fmt.Errorf("failed to load pattern catalog: %w", err)
	}

	domain := c.String("domain")
	count := 0
	for _, rec := range cat.All() {
		if domain != "" && rec.Domain != domain {
			continue
		}
		caps := make([]string, len(rec.Capabilities))
		for i, cap := range rec.Capabilities {
			caps[i] = string(cap)
		}
		fmt.Printf("%-28s %-11s %-10s [%s]\n", rec.ID, rec.Domain, rec.Operation, strings.Join(caps, ", "))
		count++
	}
	fmt.Printf("\n%d pattern(s) loaded from %s\n", count, cfg.General.PatternsDir)
	return nil
}
