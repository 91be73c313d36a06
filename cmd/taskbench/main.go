// Command taskbench drives demo workloads on the go-tasks runtime and
// exposes their runner metrics over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "taskbench",
		Usage: "Run cooperative task workloads and watch their runners",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML file declaring runners and the parallel collection",
				EnvVars: []string{"TASKBENCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on this address, e.g. :2112",
			},
			&cli.DurationFlag{
				Name:  "linger",
				Usage: "keep the metrics endpoint up this long after the workload",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log runner debug events",
			},
		},
		Commands: []*cli.Command{
			serialCommand(),
			parallelCommand(),
			fanoutCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
