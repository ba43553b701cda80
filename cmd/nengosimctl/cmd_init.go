package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nengosim/internal/modelspec"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the store and write an example model",
		RunE: func(cmd *cobra.Command, args []string) error {
			modelPath, _ := cmd.Flags().GetString("model")
			force, _ := cmd.Flags().GetBool("force")
			storeKind, _ := cmd.Flags().GetString("store")

			client, err := openClient(cmd, nil, 0)
			if err != nil {
				return err
			}
			defer closeClient(client)
			if err := client.Init(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "initialized store=%s\n", storeKind)
			if modelPath == "" {
				return nil
			}
			if _, err := os.Stat(modelPath); err == nil && !force {
				fmt.Fprintf(out, "model %s exists, skipping (use --force to overwrite)\n", modelPath)
				return nil
			}
			data, err := modelspec.Marshal(modelspec.Example())
			if err != nil {
				return fmt.Errorf("encode example model: %w", err)
			}
			if err := os.WriteFile(modelPath, data, 0o644); err != nil {
				return fmt.Errorf("write example model: %w", err)
			}
			fmt.Fprintf(out, "wrote example model=%s\n", modelPath)
			return nil
		},
	}

	cmd.Flags().String("model", "integrator.yaml", "path of the example model to write (empty to skip)")
	cmd.Flags().Bool("force", false, "overwrite an existing model file")
	return cmd
}
