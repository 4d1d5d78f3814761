package main

import (
	"context"
	"fmt"
	"time"

	"dfut"
	"dfut/procs"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// addCmd ports §8 scenario S1: a 2-node cluster where the leader spawns
// add(2, 3) then chains a second add over the first result, asserting the
// terminal value is 2 + (2 + 3) = 7.
func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Run the 2-node add chain scenario (S1)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := demoContext()
			defer cancel()

			cluster, err := buildCluster(2, nil)
			if err != nil {
				return err
			}

			started := time.Now()
			result, err := runScenario(ctx, cluster, 0, func(ctx context.Context, leader *dfut.Node) (int, error) {
				first, err := dfut.Spawn[int](ctx, leader, procs.NewAdd(dfut.Val(2), dfut.Val(3)))
				if err != nil {
					return 0, fmt.Errorf("spawn add(2, 3): %w", err)
				}
				second, err := dfut.Spawn[int](ctx, leader, procs.NewAdd(dfut.Val(2), dfut.Fut(first)))
				if err != nil {
					return 0, fmt.Errorf("spawn add(2, <fut>): %w", err)
				}
				return second.Resolve(ctx, leader)
			})
			if err != nil {
				return err
			}

			fmt.Printf("2 + (2 + 3) = %d (finished %s)\n", result, humanize.Time(started))
			return nil
		},
	}
}
