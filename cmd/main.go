package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:                 "repchain",
		Usage:                "reputation-weighted round consensus service",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "runs the consensus rounds and the HTTP API",
				Action: runServe,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "path to the YAML config file",
						Value: "config/config.yaml",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "prints the status of a running service",
				Action: runStatus,
				Flags:  []cli.Flag{addrFlag()},
			},
			{
				Name:   "reputations",
				Usage:  "prints the reputation table of a running service",
				Action: runReputations,
				Flags:  []cli.Flag{addrFlag()},
			},
			{
				Name:   "join",
				Usage:  "registers a node with a running service",
				Action: runJoin,
				Flags: []cli.Flag{
					addrFlag(),
					&cli.StringFlag{
						Name:     "node-id",
						Usage:    "identity of the joining node",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addrFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "addr",
		Usage: "base URL of the service",
		Value: "http://localhost:5001",
	}
}
