package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bluepulse/internal/adapter/ble"
	"bluepulse/internal/adapter/ble/backend"
	"bluepulse/internal/domain"
)

func newScanCommand(flags *rootFlags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List advertising BLE devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if timeout <= 0 {
				timeout = cfg.BLE.ScanTimeout
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			log, cleanup, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := backend.New(cfg.BLE, nil, log)
			if err != nil {
				return err
			}
			defer t.Close()

			return runScan(ctx, t, timeout, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "scan window (default ble.scan_timeout)")
	return cmd
}

func runScan(ctx context.Context, s domain.Scanner, timeout time.Duration, out io.Writer) error {
	devices, err := s.Scan(ctx, timeout)
	if err != nil {
		return domain.WrapOp("scan", err)
	}
	if len(devices) == 0 {
		return domain.ErrNoDevicesFound
	}
	ble.SortByRSSI(devices)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI")
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", name, d.ID, d.RSSI)
	}
	return w.Flush()
}
