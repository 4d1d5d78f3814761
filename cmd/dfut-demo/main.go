// Command dfut-demo stands up small in-process clusters of dfut.Node and
// runs one of a handful of worked scenarios against them, in the spirit of
// the original runtime's demo/src/bin binaries (eval.rs, test_cpu.rs, and
// the fib/add chain in main.rs). It lives outside the library proper —
// process bootstrap and CLI parsing are explicitly out of scope for the
// runtime itself.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	configureLogging(false)

	if err := rootCmd().Execute(); err != nil {
		slog.Error("scenario failed", "err", err)
		os.Exit(1)
	}
}

// configureLogging installs a process-wide slog default, text-handled to
// stderr the way the teacher's daemon does, switched to debug level by the
// root command's --debug flag.
func configureLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func rootCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "dfut-demo",
		Short: "Run a worked distributed-futures scenario against an in-process cluster",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(debug)
			return nil
		},
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(addCmd(), fibCmd(), cpuCmd())
	return cmd
}

// demoContext returns a context cancelled on SIGINT/SIGTERM, matching the
// teacher's own `signal.NotifyContext` shutdown wiring.
func demoContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
