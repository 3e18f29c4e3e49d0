// Package main provides the NogDB CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nogdb/nogdb/pkg/nogdb"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "nogdb",
		Short: "NogDB - an embedded property-graph database",
		Long: `NogDB is an embedded graph database with a typed property-graph
model, ACID MVCC transactions, a schema catalog, secondary indexes, and
graph query primitives (filtered find, BFS traversal, BFS shortest path).`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nogdb v%s\n", version)
		},
	})

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Print schema and storage counters for a database",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
	rootCmd.AddCommand(infoCmd)

	compactCmd := &cobra.Command{
		Use:   "compact",
		Short: "Run value-log garbage collection on a database",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompact,
	}
	compactCmd.Flags().Float64("discard-ratio", 0.5, "reclaim files with at least this fraction of stale data")
	rootCmd.AddCommand(compactCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, err := nogdb.Open(nogdb.Options{Path: args[0]})
	if err != nil {
		return err
	}
	defer ctx.Close()

	info, err := ctx.Info()
	if err != nil {
		return err
	}
	fmt.Printf("path:          %s\n", info.Path)
	fmt.Printf("classes:       %d (max id %d)\n", info.NumClasses, info.MaxClassID)
	fmt.Printf("properties:    %d (max id %d)\n", info.NumProperty, info.MaxPropertyID)
	fmt.Printf("indexes:       %d (max id %d)\n", info.NumIndex, info.MaxIndexID)
	for classID, maxPos := range info.MaxPositionID {
		fmt.Printf("  class %d: max positionId %d\n", classID, maxPos)
	}
	return nil
}

func runCompact(cmd *cobra.Command, args []string) error {
	ctx, err := nogdb.Open(nogdb.Options{Path: args[0]})
	if err != nil {
		return err
	}
	defer ctx.Close()

	ratio, err := cmd.Flags().GetFloat64("discard-ratio")
	if err != nil {
		return err
	}
	if err := ctx.Compact(ratio); err != nil {
		return err
	}
	fmt.Println("compaction complete")
	return nil
}
