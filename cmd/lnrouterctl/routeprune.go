package main

import (
	"fmt"
	"time"

	"github.com/petrkovac/lightning/routing"
	"github.com/spf13/cobra"
)

type routePruneCommand struct {
	PruneTimeout time.Duration

	cmd *cobra.Command
}

func newRoutePruneCommand() *cobra.Command {
	cc := &routePruneCommand{}
	cc.cmd = &cobra.Command{
		Use:   "routeprune",
		Short: "Destroy every channel stale on both directions",
		Long: `This command runs route_prune against the loaded graph
snapshot: every public channel whose both half-edges have gone longer than
--prune_timeout without an update is destroyed, which may cascade into
destroying endpoints left with no remaining channel.`,
		RunE: cc.execute,
	}
	cc.cmd.Flags().DurationVar(&cc.PruneTimeout, "prune_timeout", defaultConfig.PruneTimeout, "staleness window after which an unrefreshed channel is pruned")

	return cc.cmd
}

func (c *routePruneCommand) execute(_ *cobra.Command, _ []string) error {
	g, _, err := loadGraph(graphPath)
	if err != nil {
		return err
	}

	engine := &routing.Engine{Graph: g, PruneTimeout: c.PruneTimeout}

	beforeChannels, beforeNodes := g.NumChannels(), g.NumNodes()
	engine.RoutePrune(time.Now())

	fmt.Printf(
		"channels: %d -> %d, nodes: %d -> %d\n",
		beforeChannels, g.NumChannels(), beforeNodes, g.NumNodes(),
	)
	return nil
}
