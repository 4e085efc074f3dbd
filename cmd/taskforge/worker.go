package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskforge/platform/pkg/broker"
	"github.com/taskforge/platform/pkg/config"
	"github.com/taskforge/platform/pkg/runner"
)

func workerCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume agent.task deliveries and run them through the Runner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(context.Background(), concurrency)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", envIntOr("WORKER_CONCURRENCY", 4), "number of tasks processed concurrently")
	return cmd
}

// runWorker polls the broker for task deliveries and fans each one out to
// its own goroutine, bounded by concurrency — the same poll-then-dispatch
// loop shape as the teacher's Worker.run/pollAndProcess, adapted from a
// DB-poll-and-claim step to a NATS ConsumeTasks fetch.
func runWorker(ctx context.Context, concurrency int) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cleanup.Start(ctx); err != nil {
		return err
	}
	defer a.cleanup.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-stop
		slog.Info("worker: shutdown signal received")
		cancel()
	}()

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	slog.Info("worker: started", "concurrency", concurrency)
	for {
		select {
		case <-runCtx.Done():
			wg.Wait()
			return nil
		default:
		}

		deliveries, err := a.br.ConsumeTasks(runCtx, concurrency, 5*time.Second)
		if err != nil {
			if runCtx.Err() != nil {
				wg.Wait()
				return nil
			}
			slog.Error("worker: consume tasks failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(deliveries) == 0 {
			continue
		}

		for _, d := range deliveries {
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				processDelivery(runCtx, a.runner, d)
			}()
		}
	}
}

// processDelivery runs one task through the Runner and reports the outcome
// back to the broker: Ack on success, Nak with backoff on a transient
// error, Term when the delivery has already exhausted its attempts.
func processDelivery(ctx context.Context, r *runner.Runner, d *broker.Delivery[broker.TaskMessage]) {
	log := slog.With("task_id", d.Payload.TaskID, "attempt", d.Attempt)

	if d.Attempt > broker.MaxDeliver {
		log.Error("worker: delivery exceeded max attempts, terminating")
		if err := d.Term(); err != nil {
			log.Error("worker: term failed", "error", err)
		}
		return
	}

	if err := r.Run(ctx, d.Payload); err != nil {
		log.Error("worker: run failed, nacking for redelivery", "error", err)
		if err := d.Nak(time.Duration(d.Attempt) * time.Second); err != nil {
			log.Error("worker: nak failed", "error", err)
		}
		return
	}

	if err := d.Ack(); err != nil {
		log.Error("worker: ack failed", "error", err)
	}
}
