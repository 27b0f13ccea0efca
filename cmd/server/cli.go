package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lanwatch/lanwatch/internal/core/scanner"
)

// scanCmd runs a one-shot range scan without starting the HTTP
// surface, for operators who just want a quick sweep from a terminal.
func scanCmd() *cobra.Command {
	var rng string
	var timeoutMs int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a one-shot network scan and print discovered hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rng == "" {
				return fmt.Errorf("--range is required, e.g. 192.168.1.0/24")
			}
			eng, logger, err := openEngine()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := eng.Initialize(ctx); err != nil {
				return fmt.Errorf("initialize engine: %w", err)
			}
			defer eng.Shutdown()

			opts := scanner.DefaultOptions()
			if timeoutMs > 0 {
				opts.TimeoutMS = timeoutMs
			}

			scanCtx, scanCancel := context.WithTimeout(ctx, 2*time.Minute)
			defer scanCancel()
			results, err := eng.ScanNetwork(scanCtx, rng, opts)
			if err != nil {
				return fmt.Errorf("scan network: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
	cmd.Flags().StringVar(&rng, "range", "", "IP range to scan (single, N-M, or CIDR /24)")
	cmd.Flags().IntVar(&timeoutMs, "timeout", 0, "per-host liveness timeout in milliseconds (0 = default)")
	return cmd
}

// devicesCmd groups read-only device inspection subcommands.
func devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect devices tracked in the store",
	}
	cmd.AddCommand(devicesListCmd())
	return cmd
}

func devicesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tracked devices as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, logger, err := openEngine()
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer eng.Shutdown()

			devices, err := eng.Store().ListDevices()
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(devices)
		},
	}
}
