/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/unbag/pkg/msgs"
	"github.com/ssargent/unbag/pkg/unbag"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list <bag>",
	Short: "Decode and print the records of a bag",
	Long: `Decode the records of a bag in file order and print one line per record.
Point clouds are summarized by their field names.

Examples:
  unbag list drive.bag
  unbag list drive.bag -t /velodyne_points -t /imu
  unbag list drive.bag --skip-errors`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		it, err := openIterator(cmd, args[0])
		if err != nil {
			return err
		}
		defer it.Close()

		skipErrors := skipErrorsFlag(cmd)
		var records, failed int
		for msg, err := range it.All() {
			var rerr *unbag.RecordError
			if errors.As(err, &rerr) && skipErrors {
				cmd.Printf("%d.%09d %s %s decode error: %v\n", msg.Time/1e9, msg.Time%1e9, msg.Topic, msg.Schema, rerr.Err)
				failed++
				continue
			}
			if err != nil {
				return err
			}

			cmd.Printf("%d.%09d %s %s %s\n", msg.Time/1e9, msg.Time%1e9, msg.Topic, msg.Schema, describe(msg.Data))
			records++
		}

		cmd.Printf("%d records", records)
		if failed > 0 {
			cmd.Printf(", %d failed to decode", failed)
		}
		cmd.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	addInputFlags(listCmd)
}

// addInputFlags registers the flags shared by the commands that read records
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("topic", "t", nil, "Topic to include (repeatable; default all topics)")
	cmd.Flags().Bool("skip-errors", false, "Report records that fail to decode and continue")
}

// openIterator opens path with the topics from -t, or from the config
func openIterator(cmd *cobra.Command, path string) (*unbag.Iterator, error) {
	topics := cfg.Input.Topics
	if cmd.Flags().Changed("topic") {
		topics, _ = cmd.Flags().GetStringSlice("topic")
	}

	return unbag.Open(path, unbag.Options{
		Topics:  topics,
		Catalog: container.GetCatalog(),
		Logger:  container.GetLogger(),
		Metrics: container.GetMetrics(),
	})
}

func skipErrorsFlag(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("skip-errors") {
		skip, _ := cmd.Flags().GetBool("skip-errors")
		return skip
	}
	return cfg.Input.SkipErrors
}

// describe renders a decoded record on one line
func describe(m msgs.Msg) string {
	switch v := m.(type) {
	case *msgs.PointCloud2:
		return fmt.Sprintf("fields=%s width=%d height=%d", strings.Join(v.FieldNames(), ","), v.Width, v.Height)
	case *msgs.String:
		return fmt.Sprintf("data=%q", v.Data)
	case msgs.Unrecognized:
		return v.String()
	}

	out, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(out)
}
