package main

import (
	"fmt"
	"time"

	"github.com/petrkovac/lightning/config"
	"github.com/petrkovac/lightning/lnwire"
	"github.com/petrkovac/lightning/routing"
	"github.com/spf13/cobra"
)

type getRouteCommand struct {
	Source     string
	Dest       string
	AmtMsat    uint64
	FinalCltv  uint32
	RiskFactor float64
	Fuzz       float64
	FuzzSeed   uint64

	cmd *cobra.Command
}

func newGetRouteCommand() *cobra.Command {
	cc := &getRouteCommand{}
	cc.cmd = &cobra.Command{
		Use:   "getroute",
		Short: "Find the cheapest route between two nodes in the snapshot",
		Long: `This command answers a get_route query against the loaded
graph snapshot: a path able to deliver amt_msat from source to dest, the
best per path length by accumulated fee plus risk and, across lengths, the
one with the lowest total amount; or "no route found" if none exists.`,
		Example: `lnrouterctl --graph testnet.json getroute \
	--source alice --dest carol --amt_msat 1000000 --final_cltv 9`,
		RunE: cc.execute,
	}
	cc.cmd.Flags().StringVar(&cc.Source, "source", "", "alias of the path-finding source node")
	cc.cmd.Flags().StringVar(&cc.Dest, "dest", "", "alias of the destination node")
	cc.cmd.Flags().Uint64Var(&cc.AmtMsat, "amt_msat", 0, "amount to deliver, in millisatoshi")
	cc.cmd.Flags().Uint32Var(&cc.FinalCltv, "final_cltv", 9, "CLTV delta the destination requires")
	cc.cmd.Flags().Float64Var(&cc.RiskFactor, "risk_factor", defaultConfig.RiskFactor, "user-facing risk tolerance")
	cc.cmd.Flags().Float64Var(&cc.Fuzz, "fuzz", 0, "deterministic fee fuzz factor in [0, 1)")
	cc.cmd.Flags().Uint64Var(&cc.FuzzSeed, "fuzz_seed", 0, "seed for the fee fuzz factor")

	return cc.cmd
}

func (c *getRouteCommand) execute(_ *cobra.Command, _ []string) error {
	g, aliases, err := loadGraph(graphPath)
	if err != nil {
		return err
	}

	source, err := resolveAlias(aliases, c.Source)
	if err != nil {
		return err
	}
	dest, err := resolveAlias(aliases, c.Dest)
	if err != nil {
		return err
	}

	riskFactorPerBlock := (&config.Config{RiskFactor: c.RiskFactor}).RiskFactorPerBlock()

	hops := routing.GetRoute(
		g, source, dest, lnwire.MilliSatoshi(c.AmtMsat), riskFactorPerBlock,
		c.FinalCltv, c.Fuzz, c.FuzzSeed, time.Now(),
	)
	if hops == nil {
		fmt.Println("no route found")
		return nil
	}

	for i, hop := range hops {
		fmt.Printf(
			"hop %d: scid=%d next=%v amount_msat=%d cltv_delay=%d\n",
			i, hop.SCID.ToUint64(), hop.NextNodeID, hop.AmountToForward, hop.CltvDelay,
		)
	}
	return nil
}
