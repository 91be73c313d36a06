package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	tasks "github.com/Swind/go-tasks"
	"github.com/Swind/go-tasks/core"
)

func fanoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "fanout",
		Usage: "Start many pooled routines on the default runner",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "routines", Value: 1000, Usage: "routines to start"},
			&cli.IntFlag{Name: "steps", Value: 10, Usage: "steps per routine"},
			&cli.IntFlag{Name: "rounds", Value: 3, Usage: "times the whole fan-out is repeated"},
		},
		Action: fanoutAction,
	}
}

func fanoutAction(c *cli.Context) error {
	routines, steps, rounds := c.Int("routines"), c.Int("steps"), c.Int("rounds")
	if routines < 1 || steps < 1 || rounds < 1 {
		return cli.Exit("routines, steps and rounds must be positive", 1)
	}

	b, err := newBench(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	tasks.InitDefaultSchedulers(b.defaultRunnerConfig())
	defer tasks.StopAndCleanupAllDefaultSchedulers()

	runner := tasks.DefaultRunner()
	b.poller.AddRunner(runner.Name(), runner)
	b.poller.AddPool("default-routines", tasks.DefaultRoutinePool())

	start := time.Now()
	err = b.run(c.Context, func(ctx context.Context) error {
		conts := make([]*core.Continuation, routines)
		for range rounds {
			for i := range conts {
				conts[i] = tasks.Run(core.Steps(func(step int) (core.Signal, bool) {
					return core.Yield(), step < steps-1
				}))
			}
			for _, cont := range conts {
				if err := cont.Wait(ctx); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	fmt.Printf("✓ %d rounds of %d routines in %s, %d routines pooled\n",
		rounds, routines, time.Since(start), tasks.DefaultRoutinePool().Len())
	printStats(runner.Stats())
	return nil
}
