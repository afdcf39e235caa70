package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/hunetmoducoding/rsmq-go/pkg/rsmq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

type consumerFlags struct {
	queue         string
	visibilitySec int64
	pollMs        int64
	maxReceives   int64
	dlq           string
	baseDelayMs   int64
	maxDelayMs    int64
	jitter        bool
	metricsAddr   string
	once          bool
	failRate      float64
	processTime   time.Duration
	name          string
}

// NewConsumerCommand constructs the rsmq-consumer root command. It runs a
// Worker on one queue until interrupted, or with --once until the queue has
// no ready message.
func NewConsumerCommand() *cobra.Command {
	var f consumerFlags

	cmd := &cobra.Command{
		Use:   "rsmq-consumer",
		Short: "Receive, print and delete messages from an rsmq queue",
		Args:  cobra.NoArgs,
	}
	conn := AddConnectionFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runConsumer(cmd, conn, f)
	}

	defaults := rsmq.DefaultConfig().Worker
	flags := cmd.Flags()
	flags.StringVarP(&f.queue, "queue", "q", "", "Queue name (required)")
	flags.Int64Var(&f.visibilitySec, "visibility", 0, "Visibility timeout in seconds (default: the queue's)")
	flags.Int64Var(&f.pollMs, "poll", defaults.PollIntervalMs, "Poll interval in ms when the queue is empty")
	flags.Int64Var(&f.maxReceives, "max-receives", defaults.MaxReceiveCount, "Receives before a failing message is dead-lettered (needs --dlq)")
	flags.StringVar(&f.dlq, "dlq", "", "Dead-letter queue name")
	flags.Int64Var(&f.baseDelayMs, "base-delay", defaults.BaseDelayMs, "Retry backoff base in ms")
	flags.Int64Var(&f.maxDelayMs, "max-delay", defaults.MaxDelayMs, "Retry backoff cap in ms")
	flags.BoolVar(&f.jitter, "jitter", false, "Add random jitter to the retry backoff")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address (e.g. :9090)")
	flags.BoolVar(&f.once, "once", false, "Process ready messages then exit")
	flags.Float64Var(&f.failRate, "fail-rate", 0.0, "Fraction [0,1] of messages to randomly fail")
	flags.DurationVar(&f.processTime, "process-time", 0, "Simulated processing time (e.g., 2s)")
	flags.StringVar(&f.name, "name", "rsmq-consumer", "Worker name prefix")
	return cmd
}

func runConsumer(cmd *cobra.Command, conn *Connection, f consumerFlags) error {
	if f.queue == "" {
		return &rsmq.InvalidParameterError{Field: "queue", Value: f.queue, Reason: "--queue is required"}
	}
	if f.failRate < 0 || f.failRate > 1 {
		return &rsmq.InvalidParameterError{Field: "fail-rate", Value: f.failRate, Reason: "must be between 0 and 1"}
	}
	visibility, err := seconds("visibility", f.visibilitySec)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := conn.Logger()
	opts := []rsmq.Option{rsmq.WithLogger(logger)}

	var registry *prometheus.Registry
	if f.metricsAddr != "" {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, rsmq.WithMetrics(rsmq.NewPrometheusMetrics(registry)))
	}

	session, err := conn.Connect(ctx, opts...)
	if err != nil {
		return err
	}
	defer session.Close()
	client := session.Client

	cfg := session.Config
	cfg.Worker = rsmq.WorkerConfig{
		PollIntervalMs:      f.pollMs,
		VisibilityTimeoutMs: visibility.Milliseconds(),
		MaxReceiveCount:     f.maxReceives,
		DeadLetterQueue:     f.dlq,
		BaseDelayMs:         f.baseDelayMs,
		MaxDelayMs:          f.maxDelayMs,
		Jitter:              f.jitter,
		WorkerName:          f.name,
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", rsmq.ErrInvalidParameter, err)
	}

	// Fail fast on a missing queue rather than polling it forever.
	if _, err := client.GetQueueAttributes(ctx, f.queue); err != nil {
		return err
	}
	if f.dlq != "" {
		if _, err := client.GetQueueAttributes(ctx, f.dlq); err != nil {
			return err
		}
	}

	if registry != nil {
		check := func(ctx context.Context) error {
			_, err := client.GetQueueAttributes(ctx, f.queue)
			return err
		}
		shutdown := serveMetrics(f.metricsAddr, NewMetricsRouter(registry, check, logger), logger)
		defer shutdown()
	}

	out := cmd.OutOrStdout()
	processed := 0
	handler := printingHandler(out, f, &processed)
	worker := rsmq.NewWorker(client, cfg.Worker, opts...)

	if f.once {
		for ctx.Err() == nil {
			ok, err := worker.ProcessNext(ctx, f.queue, handler)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
		}
		fmt.Fprintf(out, "[%s] Drain complete (processed %d messages)\n", timestamp(), processed)
		return nil
	}

	if err := worker.Start(f.queue, handler); err != nil {
		return err
	}
	fmt.Fprintf(out, "[%s] Consuming '%s' as %s\n", timestamp(), f.queue, worker.Name())

	<-ctx.Done()

	fmt.Fprintf(out, "[%s] Shutting down gracefully...\n", timestamp())
	if err := worker.Stop(); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
	fmt.Fprintf(out, "[%s] Shutdown complete (processed %d messages)\n", timestamp(), processed)
	return nil
}

// printingHandler prints each message and simulates work and failures.
// The worker runs one handler at a time, so count needs no lock.
func printingHandler(out io.Writer, f consumerFlags, count *int) rsmq.Handler {
	return func(ctx context.Context, msg *rsmq.Message) error {
		ts := timestamp()
		fmt.Fprintf(out, "[%s] <- %s | rc=%d | %s\n", ts, msg.ID, msg.ReceiveCount, msg.Payload)
		*count++

		if f.processTime > 0 {
			select {
			case <-time.After(f.processTime):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if f.failRate > 0 && rand.Float64() < f.failRate {
			err := fmt.Errorf("simulated error (fail-rate=%.2f)", f.failRate)
			fmt.Fprintf(out, "[%s] FAIL %s: %v\n", ts, msg.ID, err)
			return err
		}

		fmt.Fprintf(out, "[%s] ACK %s\n", ts, msg.ID)
		return nil
	}
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
