package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nengosim/pkg/nengosim"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			client, err := openClient(cmd, nil, 0)
			if err != nil {
				return err
			}
			defer closeClient(client)

			items, err := client.Runs(cmd.Context(), nengosim.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "no runs")
				return nil
			}
			for _, item := range items {
				status := "ok"
				if item.Fault != "" {
					status = "fault"
				}
				fmt.Fprintf(out, "run_id=%s created_at=%s network=%s window=[%g,%g] steps=%d probes=%d status=%s\n",
					item.RunID, item.CreatedAtUTC, item.Network, item.StartTime, item.EndTime, item.Steps, item.Probes, status)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum number of runs to list")
	return cmd
}

func newRecordingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recording <run-id> [key]",
		Short: "List a run's recordings, or print one recording",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tail, _ := cmd.Flags().GetInt("tail")

			client, err := openClient(cmd, nil, 0)
			if err != nil {
				return err
			}
			defer closeClient(client)

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				keys, err := client.Recordings(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return writeJSON(out, keys)
				}
				for _, key := range keys {
					fmt.Fprintln(out, key)
				}
				return nil
			}

			ts, err := client.Recording(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			times, values := ts.Times(), ts.Values()
			if tail > 0 && len(times) > tail {
				times = times[len(times)-tail:]
				values = values[len(values)-tail:]
			}
			if jsonOutput(cmd) {
				return writeJSON(out, map[string]any{
					"key":    ts.Name(),
					"units":  ts.Units(),
					"labels": ts.Labels(),
					"times":  times,
					"values": values,
				})
			}
			for i, t := range times {
				parts := make([]string, len(values[i]))
				for d, v := range values[i] {
					parts[d] = fmt.Sprintf("%g", v)
				}
				fmt.Fprintf(out, "%g\t%s\n", t, strings.Join(parts, "\t"))
			}
			return nil
		},
	}

	cmd.Flags().Int("tail", 0, "print only the last N samples (0 = all)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run and its recordings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(cmd, nil, 0)
			if err != nil {
				return err
			}
			defer closeClient(client)

			if err := client.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted run_id=%s\n", args[0])
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop every stored run and recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeKind, _ := cmd.Flags().GetString("store")
			client, err := openClient(cmd, nil, 0)
			if err != nil {
				return err
			}
			defer closeClient(client)

			if err := client.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset store=%s\n", storeKind)
			return nil
		},
	}
}
