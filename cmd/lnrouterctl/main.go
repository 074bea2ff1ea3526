// Command lnrouterctl is an offline inspection and control tool for the
// routing engine's graph store: it loads a JSON graph snapshot, applies one
// operation (get_route, routing_failure, route_prune), and prints the
// result. It does not talk to a running
// process; like chantools' relationship to an lnd channel.db, it operates
// directly on the snapshot file.
package main

import (
	"fmt"
	"os"

	"github.com/petrkovac/lightning/config"
	"github.com/spf13/cobra"
)

// defaultConfig supplies this binary's flag defaults (prune timeout, risk
// factor) from the same built-in values a long-running lnrouter daemon
// would use, so the CLI's idea of "default" never drifts from the
// process's.
var defaultConfig = config.Default()

var rootCmd = &cobra.Command{
	Use:   "lnrouterctl",
	Short: "Inspect and drive a routing engine graph snapshot offline",
	Long: `lnrouterctl loads a JSON graph snapshot (node aliases, channels,
and fee schedules) and runs a single routing-engine operation against it,
printing the result to stdout.`,
	DisableAutoGenTag: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(
		&graphPath, "graph", "graph.json", "path to the JSON graph snapshot to load",
	)

	rootCmd.AddCommand(
		newGetRouteCommand(),
		newRoutingFailureCommand(),
		newRoutePruneCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
