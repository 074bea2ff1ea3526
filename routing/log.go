package routing

import "github.com/btcsuite/btclog"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by the policy engine and path
// finder.
func UseLogger(l btclog.Logger) {
	log = l
}
