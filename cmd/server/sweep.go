package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one booking expiry sweep",
	Long:  `Expire pending and accepted bookings whose goods never arrived, then exit. Safe to run from cron alongside the server.`,
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := a.service.ExpireBookings(ctx)
	if err != nil {
		return err
	}
	a.log.Info().
		Strs("expired", res.Expired).
		Int("failed", res.Failed).
		Msg("Sweep complete")
	return nil
}
