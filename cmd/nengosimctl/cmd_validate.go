package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nengosim/internal/modelspec"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <model.yaml>...",
		Short: "Check model descriptions without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			out := cmd.OutOrStdout()
			for _, path := range args {
				m, err := modelspec.Load(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "%s: ok network=%s nodes=%d projections=%d probes=%d\n",
					path, m.Name, len(m.Nodes), len(m.Projections), len(m.Probes))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d models invalid", failed, len(args))
			}
			return nil
		},
	}
}
