package channeldb

import "github.com/btcsuite/btclog"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by the graph store.
func UseLogger(l btclog.Logger) {
	log = l
}
