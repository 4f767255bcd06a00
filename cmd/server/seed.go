package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/warp/warehouse-engine/factory"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

var (
	seedFile    string
	seedOwnerID string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load warehouse definitions",
	Long:  `Create warehouses from a JSON file holding one definition or an array of them. Existing ids are skipped.`,
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "warehouse JSON file (required)")
	seedCmd.Flags().StringVar(&seedOwnerID, "owner", "", "owner id for definitions that omit owner_id")
	seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(seedFile)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", seedFile)
	}
	cmds, err := factory.NewWarehouseFactory().ParseWarehouses(data)
	if err != nil {
		return errors.Wrapf(err, "invalid seed file %s", seedFile)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	created, skipped := 0, 0
	for _, c := range cmds {
		if c.OwnerID == "" {
			c.OwnerID = seedOwnerID
		}
		w, err := a.service.CreateWarehouse(ctx, warehousing.SystemIdentity, c)
		if errors.Is(err, generic.ErrAlreadyExists) {
			a.log.Info().Str("warehouse_id", string(c.ID)).Msg("Warehouse exists, skipping")
			skipped++
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "failed to create warehouse %q", c.Name)
		}
		a.log.Info().
			Str("warehouse_id", string(w.ID)).
			Str("name", w.Name).
			Str("capacity", w.Capacity.Total.String()).
			Msg("Warehouse created")
		created++
	}

	a.log.Info().Int("created", created).Int("skipped", skipped).Msg("Seed complete")
	return nil
}
