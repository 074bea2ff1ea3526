package routing

import (
	"context"
	"time"

	"github.com/petrkovac/lightning/channeldb"
	"github.com/petrkovac/lightning/discovery"
	"github.com/petrkovac/lightning/lnwire"
)

// ErrSourceNodeNotSet is returned by GetRouteFromLocal when the graph has no
// configured local node to path-find from.
var ErrSourceNodeNotSet = channeldb.ErrSourceNodeNotSet

// Router is the single-threaded owner of the graph store, the gossip
// ingest processor, and the policy engine, per §5's scheduling model: one
// logical thread processes one gossip message or one query at a time.
type Router struct {
	Graph    *channeldb.ChannelGraph
	Gossiper *discovery.AuthenticatedGossiper
	Policy   *Engine

	RiskFactorPerBlock float64
	Fuzz               float64
	FuzzSeed           uint64
}

// New wires a graph, gossiper, and policy engine into a Router.
func New(graph *channeldb.ChannelGraph, gossiper *discovery.AuthenticatedGossiper, policy *Engine) *Router {
	return &Router{Graph: graph, Gossiper: gossiper, Policy: policy}
}

// GetRoute answers §4.4.1's get_route contract using the router's
// configured risk factor and fuzz parameters.
func (r *Router) GetRoute(source, destination channeldb.NodeID, amountMsat lnwire.MilliSatoshi,
	finalCltvDelta uint32) []*Hop {

	return GetRoute(r.Graph, source, destination, amountMsat, r.RiskFactorPerBlock,
		finalCltvDelta, r.Fuzz, r.FuzzSeed, time.Now())
}

// GetRouteFromLocal answers a get_route query using the graph's configured
// local node (channeldb.ChannelGraph.SetSourceNode) as the path-finding
// source, for callers that want to query "from me" without tracking their
// own identity separately.
func (r *Router) GetRouteFromLocal(destination channeldb.NodeID, amountMsat lnwire.MilliSatoshi,
	finalCltvDelta uint32) ([]*Hop, error) {

	source, ok := r.Graph.SourceNode()
	if !ok {
		return nil, ErrSourceNodeNotSet
	}
	return r.GetRoute(source, destination, amountMsat, finalCltvDelta), nil
}

// StartPruner runs RoutePrune on interval until ctx is canceled. This is
// ambient scheduling infrastructure, not a semantic change to RoutePrune:
// the method itself remains synchronous and may be called directly.
func (r *Router) StartPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.Policy.RoutePrune(now)
			}
		}
	}()
}
