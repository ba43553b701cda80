package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"nengosim/internal/metrics"
	"nengosim/pkg/nengosim"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <model.yaml>",
		Short: "Simulate a model and store its probe recordings",
		Long: `Simulate a model over its run window and store one recording per probe.

Examples:
  nengosimctl run integrator.yaml
  nengosimctl run integrator.yaml --end 0.5
  nengosimctl run integrator.yaml --store sqlite --metrics-addr :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workers, _ := cmd.Flags().GetInt("workers")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

			req := nengosim.RunRequest{ModelPath: args[0]}
			if cmd.Flags().Changed("start") {
				start, _ := cmd.Flags().GetFloat64("start")
				req.Start = &start
			}
			if cmd.Flags().Changed("end") {
				end, _ := cmd.Flags().GetFloat64("end")
				req.End = &end
			}

			var reg *metrics.Registry
			if metricsAddr != "" {
				reg = metrics.NewRegistry()
				stop, err := serveMetrics(metricsAddr, reg, newLogger(cmd))
				if err != nil {
					return err
				}
				defer stop()
			}

			client, err := openClient(cmd, reg, workers)
			if err != nil {
				return err
			}
			defer closeClient(client)

			summary, runErr := client.Run(cmd.Context(), req)
			if summary.RunID == "" {
				return runErr
			}
			if jsonOutput(cmd) {
				if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
				return runErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run_id=%s network=%s steps=%d duration=%s\n", summary.RunID, summary.Network, summary.Steps, summary.Duration)
			keys := make([]string, 0, len(summary.Recordings))
			for key := range summary.Recordings {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(out, "recording=%s samples=%d\n", key, summary.Recordings[key])
			}
			if summary.Fault != "" {
				fmt.Fprintf(out, "fault=%s\n", summary.Fault)
			}
			return runErr
		},
	}

	cmd.Flags().Float64("start", 0, "override the model's run start time (s)")
	cmd.Flags().Float64("end", 0, "override the model's run end time (s)")
	cmd.Flags().Int("workers", 0, "parallel node evaluations per step (0 = serial)")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	return cmd
}
