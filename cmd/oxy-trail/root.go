package main

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-trail/engine/trail"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "oxy-trail",
		Short: "Render GPU trail sets.",
		Long: `Render GPU trail sets.

Run a config windowed on the WebGPU renderer:

	oxy-trail run --config=trails.toml

or headless on the software backend, logging each frame's draws:

	oxy-trail run --config=trails.yaml --headless --frames=120
`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(), newValidateCommand(), newConfigCommand())
	return root
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate CONFIG...",
		Short: "Check trail config files and report every problem.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				if _, err := trail.LoadConfig(path); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d configs invalid", failed, len(args))
			}
			return nil
		},
	}
}

func newConfigCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the default trail config.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := trail.DefaultConfig().Marshal(trail.ConfigFormat(format))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", string(trail.ConfigFormatTOML), "output format, toml or yaml")
	return cmd
}

// loadConfigOrDefault loads path, or returns the default config when path is empty.
func loadConfigOrDefault(path string) (trail.Config, error) {
	if path == "" {
		return trail.DefaultConfig(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return trail.Config{}, fmt.Errorf("config: %w", err)
	}
	return trail.LoadConfig(path)
}
