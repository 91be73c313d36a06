package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Swind/go-tasks/core"
)

func parallelCommand() *cli.Command {
	return &cli.Command{
		Name:  "parallel",
		Usage: "Split a summing job across a multi-threaded parallel collection",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Usage: "worker runners, defaults to the config or the CPU count"},
			&cli.IntFlag{Name: "iterations", Value: 1_000_000, Usage: "job iterations"},
		},
		Action: parallelAction,
	}
}

func parallelAction(c *cli.Context) error {
	iterations := c.Int("iterations")
	if iterations < 0 {
		return cli.Exit("iterations must not be negative", 1)
	}

	b, err := newBench(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	collection := core.NewMultiThreadedParallelCollection(b.parallelConfig("parallel-bench", c.Int("workers")))
	defer collection.Dispose()
	b.poller.AddParallel("parallel-bench", collection)
	for _, r := range collection.Runners() {
		b.poller.AddRunner(r.Name(), r)
	}

	var sum atomic.Int64
	collection.AddJob(core.ParallelJobFunc(func(i int) {
		sum.Add(int64(i))
	}), iterations)

	start := time.Now()
	err = b.run(c.Context, func(ctx context.Context) error {
		// The sync runner drives the collection on this goroutine while the
		// workers run on their own.
		core.NewRoutine(core.NewSyncRunner("parallel-driver")).SetTask(collection).Start(nil, nil)
		return collection.Err()
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	want := int64(iterations) * int64(iterations-1) / 2
	if sum.Load() != want {
		return cli.Exit(fmt.Sprintf("sum = %d, want %d", sum.Load(), want), 1)
	}

	fmt.Printf("✓ %d iterations on %d workers in %s, sum %d\n",
		iterations, collection.Stats().Runners, time.Since(start), sum.Load())
	for _, r := range collection.Runners() {
		printStats(r.Stats())
	}
	return nil
}
