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

// fibCmd ports §8 scenario S2: fib(n) spawned across a cluster with empty
// resource configs, chaining fib(n-1)/fib(n-2) straight into add without
// the leader ever retrieving the two intermediate futures itself (S4).
func fibCmd() *cobra.Command {
	var n int
	var nodes int

	cmd := &cobra.Command{
		Use:   "fib",
		Short: "Run the fib chaining scenario (S2/S4)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := demoContext()
			defer cancel()

			cluster, err := buildCluster(nodes, nil)
			if err != nil {
				return err
			}

			started := time.Now()
			result, err := runScenario(ctx, cluster, 0, func(ctx context.Context, leader *dfut.Node) (int, error) {
				ref, err := dfut.Spawn[int](ctx, leader, procs.NewFib(dfut.Val(n)))
				if err != nil {
					return 0, fmt.Errorf("spawn fib(%d): %w", n, err)
				}
				return ref.Resolve(ctx, leader)
			})
			if err != nil {
				return err
			}

			fmt.Printf("fib(%d) = %d across %d nodes (finished %s)\n", n, result, nodes, humanize.Time(started))
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 16, "fib argument")
	cmd.Flags().IntVar(&nodes, "nodes", 5, "cluster size")
	return cmd
}
