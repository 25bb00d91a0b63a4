package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that a conversion engine is available",
	Long: `Check resolves the configured backend the same way convert does and
prints the engine it found: the local pandoc version, or the container
runtime and image used as a fallback.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("backend", "", "engine backend: pandoc, container, or native")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	applyConvertFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	_, desc, err := newEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("no conversion engine available: %w", err)
	}
	fmt.Printf("Engine: %s\n", desc)
	return nil
}
