package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Swind/go-tasks/core"
)

func serialCommand() *cli.Command {
	return &cli.Command{
		Name:  "serial",
		Usage: "Run a serial collection of stepping tasks on one runner",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "tasks", Value: 8, Usage: "number of tasks in the collection"},
			&cli.IntFlag{Name: "steps", Value: 100, Usage: "steps per task, one tick each"},
			&cli.StringFlag{Name: "runner", Value: "serial", Usage: "runner name to look up in the config"},
		},
		Action: serialAction,
	}
}

func serialAction(c *cli.Context) error {
	tasks, steps := c.Int("tasks"), c.Int("steps")
	if tasks < 1 || steps < 1 {
		return cli.Exit("tasks and steps must be positive", 1)
	}

	b, err := newBench(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	runner := core.NewMultiThreadRunner(b.runnerConfig(c.String("runner")))
	defer runner.Dispose()
	b.poller.AddRunner(runner.Name(), runner)

	order := make([]int, 0, tasks)
	collection := core.NewSerialCollectionWithCapacity(tasks)
	for i := range tasks {
		collection.Add(core.Steps(func(step int) (core.Signal, bool) {
			if step == steps-1 {
				order = append(order, i)
			}
			return core.Yield(), step < steps-1
		}))
	}

	start := time.Now()
	err = b.run(c.Context, func(ctx context.Context) error {
		cont := core.NewRoutine(runner).SetName("serial-bench").SetTask(collection).Start(nil, nil)
		return cont.Wait(ctx)
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	fmt.Printf("✓ %d tasks x %d steps in %s, finish order %v\n", tasks, steps, time.Since(start), order)
	printStats(runner.Stats())
	return nil
}
