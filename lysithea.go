package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lysithea/cmd"
)

const (
	version = "0.2.0"
)

func main() {
	app := &cli.App{
		Name:    "lysithea",
		Usage:   "Pattern-enforced code generation with a local model",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			cmd.GenerateCommand(),
			cmd.PatternsCommand(),
			cmd.ServeCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
