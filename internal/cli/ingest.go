package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/limitidx/internal/config"
	"github.com/roach88/limitidx/internal/engine"
	"github.com/roach88/limitidx/internal/metrics"
	"github.com/roach88/limitidx/internal/source"
)

// IngestOptions holds flags for the ingest command. Every ingest flag is
// bound to a configuration key, so values are read from the loaded config.
type IngestOptions struct {
	*RootOptions
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Merge order update events into the store",
		Long: `Read order update events from a source and merge each into its record.

Sources:
  file   JSON lines from --file ("-" for stdin)
  kafka  a consumer group on --kafka-topic; offsets commit after each merge
  eth    LimitOrderUpdated logs of --eth-contract over a websocket node

Malformed and unencodable events are logged and skipped. A store failure
stops the run with exit code 1; the failed event is not acknowledged.

Examples:
  limitidx ingest --file events.jsonl
  cat events.jsonl | limitidx ingest --store badger --db ./orders
  limitidx ingest --source kafka --kafka-brokers k1:9092 --kafka-topic limit-orders
  limitidx ingest --source eth --eth-url wss://node --eth-contract 0x… --metrics-addr :9100`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.String("source", config.SourceFile, "event source (file|kafka|eth)")
	f.String("file", "-", `JSON lines event file ("-" reads stdin)`)
	f.Int("workers", engine.DefaultWorkers, "concurrent workers; events for one order stay in order")
	f.Int("queue-depth", engine.DefaultQueueDepth, "buffered events per worker")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
	f.StringSlice("kafka-brokers", nil, "Kafka bootstrap brokers")
	f.String("kafka-topic", "", "Kafka topic")
	f.String("kafka-group", "limitidx", "Kafka consumer group")
	f.String("eth-url", "", "Ethereum node websocket or IPC endpoint")
	f.String("eth-contract", "", "contract emitting LimitOrderUpdated")
	f.Uint64("eth-from-block", 0, "first block to follow (0 = head)")

	for key, name := range map[string]string{
		"source.kind":           "source",
		"source.file":           "file",
		"engine.workers":        "workers",
		"engine.queue_depth":    "queue-depth",
		"metrics.addr":          "metrics-addr",
		"source.kafka.brokers":  "kafka-brokers",
		"source.kafka.topic":    "kafka-topic",
		"source.kafka.group":    "kafka-group",
		"source.eth.url":        "eth-url",
		"source.eth.contract":   "eth-contract",
		"source.eth.from_block": "eth-from-block",
	} {
		opts.bind(key, f.Lookup(name))
	}

	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command) error {
	if err := opts.prepare(cmd); err != nil {
		return err
	}
	cfg := opts.cfg
	logger := opts.logger
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := opts.openStore(ctx)
	if err != nil {
		return out.fail(ExitCommandError, CodeStore, "failed to open store", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}
	}()

	src, err := opts.openSource(ctx)
	if err != nil {
		return out.fail(ExitCommandError, CodeSource, "failed to open source", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Error("error closing source", "error", err)
		}
	}()

	if cfg.Source.Kind == config.SourceKafka && cfg.Engine.Workers > 1 {
		logger.Warn("after a store failure, events other workers already applied are redelivered and counted again",
			"workers", cfg.Engine.Workers)
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithWorkers(cfg.Engine.Workers),
		engine.WithQueueDepth(cfg.Engine.QueueDepth),
		engine.WithRunIDGenerator(runIDs),
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Addr != "" {
		recorder = metrics.NewRecorder()
		engOpts = append(engOpts, engine.WithMetrics(recorder))
	}
	eng := engine.New(st, engOpts...)

	logger.Info("ingest starting",
		"store", cfg.Store.Driver,
		"source", cfg.Source.Kind,
		"workers", eng.Workers(),
	)

	sum, err := ingest(ctx, eng, src, recorder, cfg.Metrics.Addr)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Info("ingest interrupted")
	case engine.IsStoreError(err):
		_ = out.Error(CodeStore, "ingest stopped", err.Error())
		return WrapExitError(ExitFailure, "ingest stopped", err)
	default:
		_ = out.Error(CodeRun, "ingest stopped", err.Error())
		return WrapExitError(ExitFailure, "ingest stopped", err)
	}

	return out.SuccessWithRun(sum.RunID, sum, func(w io.Writer) {
		printSummary(w, sum)
	})
}

// ingest runs the engine and, when recorder is set, the metrics endpoint
// until the run ends.
func ingest(ctx context.Context, eng *engine.Engine, src source.Source, recorder *metrics.Recorder, addr string) (engine.Summary, error) {
	if recorder == nil {
		return eng.Run(ctx, src)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := recorder.Serve(gctx, addr); err != nil {
			return fmt.Errorf("metrics endpoint: %w", err)
		}
		return nil
	})

	var sum engine.Summary
	g.Go(func() error {
		defer cancel()
		var err error
		sum, err = eng.Run(gctx, src)
		return err
	})

	return sum, g.Wait()
}

func printSummary(w io.Writer, sum engine.Summary) {
	fmt.Fprintf(w, "Run %s\n", sum.RunID)
	fmt.Fprintf(w, "  events:    %d\n", sum.Events)
	fmt.Fprintf(w, "  created:   %d\n", sum.Created)
	fmt.Fprintf(w, "  updated:   %d\n", sum.Updated)
	fmt.Fprintf(w, "  skipped:   %d (malformed %d, encoding %d)\n", sum.Skipped(), sum.Malformed, sum.Encoding)
	fmt.Fprintf(w, "  duration:  %s\n", sum.Duration.Round(time.Millisecond))
}
