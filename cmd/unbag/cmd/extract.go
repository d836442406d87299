/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/unbag/pkg/export"
	"github.com/ssargent/unbag/pkg/storage"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <bag>",
	Short: "Decode a bag into the output store",
	Long: `Decode the records of a bag and write them, as JSON, to a new run in the
output store. Each run gets a time-ordered id; records keep their file order
within a topic. Nothing is written if the export fails.

Examples:
  unbag extract drive.bag -o ./out
  unbag extract drive.bag -o ./out -t /imu --skip-errors`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir := cfg.Output.Dir
		if cmd.Flags().Changed("output") {
			outDir, _ = cmd.Flags().GetString("output")
		}
		if err := os.MkdirAll(outDir, 0750); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}

		it, err := openIterator(cmd, args[0])
		if err != nil {
			return err
		}
		defer it.Close()

		store, err := storage.NewDefaultStorage(outDir)
		if err != nil {
			return fmt.Errorf("failed to open output store: %w", err)
		}
		defer store.Close()

		sum, err := export.Export(it, store, args[0], export.Options{
			SkipErrors: skipErrorsFlag(cmd),
			Logger:     container.GetLogger(),
		})
		if err != nil {
			return fmt.Errorf("extract failed: %w", err)
		}

		cmd.Printf("run %s: %d records written to %s\n", sum.RunID, sum.Records, outDir)
		if sum.Unrecognized > 0 || sum.Skipped > 0 {
			cmd.Printf("  %d unrecognized, %d skipped\n", sum.Unrecognized, sum.Skipped)
		}
		topics := make([]string, 0, len(sum.Topics))
		for topic := range sum.Topics {
			topics = append(topics, topic)
		}
		slices.Sort(topics)
		for _, topic := range topics {
			cmd.Printf("  %-32s %d\n", topic, sum.Topics[topic])
		}
		return nil
	},
}

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the runs in the output store",
	Long: `List the runs extract has written to the output store, oldest first.

Example:
  unbag runs -o ./out`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir := cfg.Output.Dir
		if cmd.Flags().Changed("output") {
			outDir, _ = cmd.Flags().GetString("output")
		}
		if _, err := os.Stat(outDir); err != nil {
			return fmt.Errorf("no output store at %s: %w", outDir, err)
		}

		store, err := storage.NewDefaultStorage(outDir)
		if err != nil {
			return fmt.Errorf("failed to open output store: %w", err)
		}
		defer store.Close()

		runs, err := store.Runs()
		if err != nil {
			return err
		}
		for _, r := range runs {
			cmd.Printf("%s  %s  %6d  %s\n", r.ID, r.Created.Format(time.RFC3339), r.Records, r.Source)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(runsCmd)

	addInputFlags(extractCmd)
	extractCmd.Flags().StringP("output", "o", "output", "Directory of the output store")
	runsCmd.Flags().StringP("output", "o", "output", "Directory of the output store")
}
