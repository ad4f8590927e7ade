package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seantiz/qexec/internal/backend/dummy"
	"github.com/seantiz/qexec/internal/config"
	"github.com/seantiz/qexec/internal/job"
	"github.com/seantiz/qexec/internal/model"
	"github.com/seantiz/qexec/internal/pool"
)

type runOptions struct {
	backend   string
	name      string
	shots     int
	timeout   time.Duration
	wait      time.Duration
	timeAlive time.Duration
	count     int
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workload in-process and print its result",
		Long: "Run submits the workload to the named backend, waits for it and prints " +
			"the result as JSON, one line per job. A job that fails or is cancelled " +
			"makes the command exit non-zero.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkload(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.backend, "backend", dummy.Name, "backend name")
	f.StringVar(&opts.name, "name", "", "workload name")
	f.IntVar(&opts.shots, "shots", 1024, "number of shots")
	f.DurationVar(&opts.timeout, "timeout", 60*time.Second, "execution budget of each job")
	f.DurationVar(&opts.wait, "wait", time.Second, "backend polling step")
	f.DurationVar(&opts.timeAlive, "time-alive", dummy.DefaultTimeAlive, "lifetime of dummy simulator jobs")
	f.IntVar(&opts.count, "count", 1, "number of identical jobs to run concurrently")
	return cmd
}

func runWorkload(cmd *cobra.Command, opts runOptions) error {
	if opts.count < 1 {
		return fmt.Errorf("--count must be at least 1, got %d", opts.count)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := config.NewLogger(os.Stderr, cfg.Level())

	p := pool.New(cfg.PoolWorkers, logger)
	defer p.Shutdown(cmd.Context()) //nolint:errcheck // every job is awaited below

	reg, err := newRegistry(p, opts.timeAlive, logger)
	if err != nil {
		return err
	}
	b, err := reg.GetBackend(opts.backend)
	if err != nil {
		return err
	}

	w := model.Workload{
		Name:    opts.name,
		Shots:   opts.shots,
		Timeout: opts.timeout,
		Wait:    opts.wait,
	}

	handles := make([]*job.Handle, opts.count)
	for i := range handles {
		h, err := b.Run(cmd.Context(), w)
		if err != nil {
			return err
		}
		handles[i] = h
	}

	results := make([]model.Result, len(handles))
	var g errgroup.Group
	for i, h := range handles {
		g.Go(func() error {
			res, err := h.Result(cmd.Context())
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}
	return nil
}
