/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/unbag/pkg/bag"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <bag>",
	Short: "Show the connections and chunks of a bag",
	Long: `Show what a bag's index declares: its connections (id, topic, type),
chunk count, message count and time span.

Example:
  unbag info drive.bag`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := bag.Open(args[0])
		if err != nil {
			return err
		}
		defer b.Close()

		chunks := b.ChunkInfos()
		cmd.Printf("path:        %s\n", b.Path())
		cmd.Printf("chunks:      %d\n", len(chunks))
		cmd.Printf("messages:    %d\n", b.MessageCount())
		if len(chunks) > 0 {
			start, end := chunks[0].StartTime, chunks[0].EndTime
			for _, ci := range chunks[1:] {
				start = min(start, ci.StartTime)
				end = max(end, ci.EndTime)
			}
			cmd.Printf("start:       %s\n", formatTime(start))
			cmd.Printf("end:         %s\n", formatTime(end))
		}

		conns := b.Connections().Sorted()
		cmd.Printf("connections: %d\n", len(conns))
		for _, c := range conns {
			cmd.Printf("  %4d  %-32s %s\n", c.ID, c.Topic, c.Type)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

// formatTime renders nanoseconds since the epoch
func formatTime(ns uint64) string {
	return fmt.Sprintf("%s (%d.%09d)", time.Unix(0, int64(ns)).UTC().Format(time.RFC3339Nano), ns/1e9, ns%1e9)
}
