package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"nengosim/internal/logging"
	"nengosim/internal/metrics"
	"nengosim/internal/storage"
	"nengosim/pkg/nengosim"
)

const defaultDBPath = "nengosim.db"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nengosimctl",
		Short: "Run hierarchical network simulations and inspect their recordings",
		Long: `nengosimctl builds networks from YAML model descriptions, simulates them
over a time window and stores the probe recordings of every run.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	rootCmd.PersistentFlags().String("db-path", defaultDBPath, "sqlite database path")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace|debug|info|warn|error")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newInitCmd(),
		newValidateCmd(),
		newRunCmd(),
		newRunsCmd(),
		newRecordingCmd(),
		newDeleteCmd(),
		newResetCmd(),
	)
	return rootCmd
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logging.NewLogger(level, cmd.ErrOrStderr())
}

// openClient builds a client from the persistent flags. The caller closes it.
func openClient(cmd *cobra.Command, reg *metrics.Registry, workers int) (*nengosim.Client, error) {
	storeKind, _ := cmd.Flags().GetString("store")
	dbPath, _ := cmd.Flags().GetString("db-path")
	return nengosim.New(nengosim.Options{
		StoreKind: storeKind,
		DBPath:    dbPath,
		Logger:    newLogger(cmd),
		Metrics:   reg,
		Workers:   workers,
	})
}

func closeClient(client *nengosim.Client) {
	_ = client.Close()
}

// serveMetrics exposes reg on addr until the returned stop function is called.
func serveMetrics(addr string, reg *metrics.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func jsonOutput(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
