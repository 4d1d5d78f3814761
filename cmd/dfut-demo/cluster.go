package main

import (
	"context"
	"fmt"
	"net"

	"dfut"
	"dfut/config"
	"dfut/internal/core"

	"golang.org/x/sync/errgroup"
)

// buildCluster lays out n loopback nodes, one free port each, with the
// given per-node resources (nil for no advertised resources). Node i gets
// resources[i] if present, else none — just enough shape to stand up the
// worked scenarios without a config file on disk.
func buildCluster(n int, resources map[core.NodeId]core.ResourceConfig) (config.Cluster, error) {
	cluster := make(config.Cluster, n)
	for i := 0; i < n; i++ {
		addr, err := freeLoopbackAddr()
		if err != nil {
			return nil, fmt.Errorf("allocate address for node %d: %w", i, err)
		}
		cluster[core.NodeId(i)] = config.Peer{Addr: addr, Resources: resources[core.NodeId(i)]}
	}
	return cluster, nil
}

func freeLoopbackAddr() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr, nil
}

// runScenario brings up one dfut.Node per cluster member in this process:
// every non-leader node just runs its accept loop until cancelled, while
// leaderID runs leaderFn as its main body. Once leaderFn returns, every
// other node's accept loop is cancelled so the whole cluster winds down
// together — there is no separate "stop the demo" signal, the leader
// finishing the scenario is the done condition.
func runScenario[T any](ctx context.Context, cluster config.Cluster, leaderID core.NodeId, leaderFn func(ctx context.Context, n *dfut.Node) (T, error)) (T, error) {
	var zero T
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var result T
	var resultErr error

	g, gctx := errgroup.WithContext(ctx)
	for id := range cluster {
		id := id
		if id == leaderID {
			g.Go(func() error {
				n, err := dfut.New(id, cluster)
				if err != nil {
					return fmt.Errorf("build leader node %d: %w", id, err)
				}
				err = n.Start(gctx, func(ctx context.Context) error {
					result, resultErr = leaderFn(ctx, n)
					return resultErr
				})
				cancel()
				return err
			})
			continue
		}
		g.Go(func() error {
			n, err := dfut.New(id, cluster)
			if err != nil {
				return fmt.Errorf("build follower node %d: %w", id, err)
			}
			return n.Start(gctx, nil)
		})
	}

	if err := g.Wait(); err != nil {
		return zero, err
	}
	return result, resultErr
}
