package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataherd/dataherd/internal/core/db"
	"github.com/dataherd/dataherd/internal/importer"
	"github.com/dataherd/dataherd/internal/store"
	"github.com/dataherd/dataherd/internal/types"
)

var loadCmd = &cobra.Command{
	Use:   "load <file.xlsx|file.csv>",
	Short: "Load a lot data file as a new batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().String("batch-id", "", "batch identifier (default: new UUID)")
	loadCmd.Flags().String("client", "", "client context for the batch")
}

func runLoad(cmd *cobra.Command, args []string) error {
	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := importer.ReadFile(f, path)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	batchID, _ := cmd.Flags().GetString("batch-id")
	if batchID == "" {
		batchID = string(types.NewBatchID())
	}
	clientContext, _ := cmd.Flags().GetString("client")

	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.MigrateUp(database); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	records := make([]types.Record, 0, len(rows))
	for i, fields := range rows {
		records = append(records, types.Record{
			RecordID: importer.RecordID(fields, i),
			BatchID:  types.BatchID(batchID),
			Original: fields,
			Current:  fields.Clone(),
			Status:   types.StatusOriginal,
		})
	}

	batches := store.NewBatchStore(queries)
	err = batches.CreateBatch(context.Background(), types.Batch{
		BatchID:       types.BatchID(batchID),
		ClientContext: clientContext,
	}, records)
	if err != nil {
		return fmt.Errorf("failed to store batch: %w", err)
	}

	fmt.Printf("loaded %d records into batch %s\n", len(records), batchID)
	return nil
}
