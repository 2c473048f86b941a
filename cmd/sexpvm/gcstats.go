package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sexpvm/sexpvm/internal/reader"
	"github.com/sexpvm/sexpvm/internal/vm"
)

func newGCStatsCmd() *cobra.Command {
	var collectFirst bool
	cmd := &cobra.Command{
		Use:   "gc-stats <file>",
		Short: "Run a source file and print the collector's counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			top, err := reader.ReadAll(string(src))
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			v := vm.New()
			if _, err := v.CompileAndRun(nil, wrapProgram(top)); err != nil {
				return err
			}
			stats := v.Heap().Stats()
			if collectFirst {
				stats = v.Collect()
			}
			fmt.Printf("cycles:          %d\n", stats.Cycles)
			fmt.Printf("bytes allocated: %d\n", stats.BytesAllocated)
			fmt.Printf("bytes reclaimed: %d\n", stats.BytesReclaimed)
			fmt.Printf("live bytes:      %d\n", stats.LiveBytes)
			fmt.Printf("live objects:    %d\n", stats.LiveObjects)
			fmt.Printf("max RSS (KB):    %d\n", stats.MaxRSSKB)
			for _, w := range v.Heap().Warnings() {
				fmt.Printf("warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&collectFirst, "force-collect", true, "run an explicit collection before reporting")
	return cmd
}
