package main

import (
	"context"
	"fmt"
	"time"

	"dfut"
	"dfut/internal/core"
	"dfut/procs"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// cpuCmd ports §8 scenario S3: a single CPU node of capacity 3, three
// 1-second blockers and one no-op, demonstrating that the no-op returns
// almost immediately while the three blockers run concurrently under the
// node's CPU quota rather than serially.
func cpuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cpu",
		Short: "Run the CPU-gating scenario (S3)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := demoContext()
			defer cancel()

			cluster, err := buildCluster(1, map[core.NodeId]core.ResourceConfig{
				0: {"cpus": 3},
			})
			if err != nil {
				return err
			}

			started := time.Now()
			_, err = runScenario(ctx, cluster, 0, func(ctx context.Context, leader *dfut.Node) (struct{}, error) {
				fastStarted := time.Now()
				fastRef, err := dfut.Spawn[bool](ctx, leader, procs.Fast{})
				if err != nil {
					return struct{}{}, fmt.Errorf("spawn fast: %w", err)
				}
				if _, err := fastRef.Resolve(ctx, leader); err != nil {
					return struct{}{}, fmt.Errorf("resolve fast: %w", err)
				}
				fastElapsed := time.Since(fastStarted)

				g, gctx := errgroup.WithContext(ctx)
				for i := 0; i < 3; i++ {
					g.Go(func() error {
						ref, err := dfut.Spawn[bool](gctx, leader, procs.NewSlow(time.Second))
						if err != nil {
							return fmt.Errorf("spawn slow: %w", err)
						}
						_, err = ref.Resolve(gctx, leader)
						return err
					})
				}
				if err := g.Wait(); err != nil {
					return struct{}{}, err
				}

				fmt.Printf("fast finished in %s, three 1s blockers finished in %s (total %s)\n",
					fastElapsed, time.Since(started), humanize.Time(started))
				return struct{}{}, nil
			})
			return err
		},
	}
}
