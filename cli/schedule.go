package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/petal-labs/toolrun/builtin"
	"github.com/petal-labs/toolrun/bus"
	"github.com/petal-labs/toolrun/daemon"
	"github.com/petal-labs/toolrun/engine"
	"github.com/petal-labs/toolrun/otel"
	"github.com/petal-labs/toolrun/trace"
)

// NewScheduleCmd creates the "schedule" subcommand running the daemon.
func NewScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run scheduled tool invocations from a config file",
		Args:  cobra.NoArgs,
		RunE:  runSchedule,
	}

	cmd.Flags().StringP("config", "c", "", "Path to schedule config (default: ./toolrun.yaml, ~/.toolrun/config.yaml)")
	cmd.Flags().Bool("once", false, "Fire every schedule once and exit")
	cmd.Flags().String("events-db", "", "SQLite DSN for persisting trace events")
	cmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP endpoint for trace export")
	cmd.Flags().Bool("otlp-insecure", false, "Disable TLS for the OTLP exporter")

	return cmd
}

func runSchedule(cmd *cobra.Command, args []string) error {
	configFlag, _ := cmd.Flags().GetString("config")
	once, _ := cmd.Flags().GetBool("once")
	eventsDB, _ := cmd.Flags().GetString("events-db")
	otlpEndpoint, _ := cmd.Flags().GetString("otlp-endpoint")
	otlpInsecure, _ := cmd.Flags().GetBool("otlp-insecure")

	path, found, err := daemon.DiscoverConfigPath(configFlag)
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	if !found {
		return exitError(exitValidation, "no schedule config found (use --config)")
	}

	cfg, err := daemon.LoadConfig(path)
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	registry := builtin.NewRegistry()
	if err := cfg.Validate(registry); err != nil {
		return exitError(exitValidation, "%v", err)
	}

	var sinkOpts []trace.SinkOption
	if strings.TrimSpace(eventsDB) != "" {
		store, err := bus.NewSQLiteEventStore(bus.SQLiteStoreConfig{DSN: eventsDB})
		if err != nil {
			return exitError(exitRuntime, "opening events db: %v", err)
		}
		defer func() { _ = store.Close() }()
		sinkOpts = append(sinkOpts, trace.WithHandler(bus.StoreHandler(store)))
	}

	engineCfg := engine.Config{
		Registry: registry,
		Sink:     trace.NewMemorySink(sinkOpts...),
	}

	if strings.TrimSpace(otlpEndpoint) != "" {
		shutdown, err := otel.SetupTracing(cmd.Context(), otel.TracingConfig{
			Endpoint: otlpEndpoint,
			Insecure: otlpInsecure,
		})
		if err != nil {
			return exitError(exitRuntime, "%v", err)
		}
		defer func() { _ = shutdown(cmd.Context()) }()

		observer, err := otel.NewInvokeObserver(
			otelapi.Meter("toolrun"),
			otelapi.Tracer("toolrun"),
		)
		if err != nil {
			return exitError(exitRuntime, "creating observer: %v", err)
		}
		engineCfg.Observer = observer
	}

	scheduler, err := daemon.NewScheduler(daemon.SchedulerConfig{
		Engine: engine.New(engineCfg),
		Config: cfg,
	})
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}

	if once {
		scheduler.RunOnce()
		printScheduleResults(cmd, cfg, scheduler)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Running %d schedule(s) from %s\n", len(cfg.Schedules), path)
	scheduler.Start()
	<-ctx.Done()
	stop()

	stopCtx, cancel := signalStopContext()
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		return exitError(exitRuntime, "stopping scheduler: %v", err)
	}
	printScheduleResults(cmd, cfg, scheduler)
	return nil
}

func printScheduleResults(cmd *cobra.Command, cfg daemon.Config, scheduler *daemon.Scheduler) {
	for _, schedule := range cfg.Schedules {
		result, ok := scheduler.LastResult(schedule.ID())
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: never ran\n", schedule.ID())
			continue
		}
		if result.OK {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (attempts=%d cached=%t)\n", schedule.ID(), result.Attempts, result.Cached)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: failed (%s)\n", schedule.ID(), result.ErrorMessage)
		}
	}
}

func signalStopContext() (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
