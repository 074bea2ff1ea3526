package routing

import (
	"time"

	"github.com/petrkovac/lightning/channeldb"
	"github.com/petrkovac/lightning/discovery"
	"github.com/petrkovac/lightning/lnwire"
)

// FailCode mirrors the onion failure-code bit flags relevant to routing:
// whether the failure is permanent, scoped to the whole node, and whether
// it carries a fresh channel_update.
type FailCode uint16

const (
	// FailCodeUpdate indicates the failure message embeds a
	// channel_update that should be applied after the edge is marked
	// unroutable, potentially re-enabling it immediately.
	FailCodeUpdate FailCode = 0x1000

	// FailCodeNode scopes the failure to every channel incident on the
	// erring node, rather than a single channel.
	FailCodeNode FailCode = 0x2000

	// FailCodePerm marks the failure as permanent: the affected
	// channel(s) are destroyed rather than temporarily disabled.
	FailCodePerm FailCode = 0x4000

	// unroutableCooldown is how long a channel is marked unroutable by
	// a non-permanent routing failure.
	unroutableCooldown = 20 * time.Second
)

// Engine applies routing-failure feedback and periodic pruning to a graph.
// Gossiper is reused to apply an embedded channel_update from a routing
// failure, so a re-enabling update goes through the same parse, chain-hash,
// and signature checks as any other gossiped update.
type Engine struct {
	Graph        *channeldb.ChannelGraph
	PruneTimeout time.Duration
	Gossiper     *discovery.AuthenticatedGossiper
}

// NewEngine creates a policy engine over g.
func NewEngine(g *channeldb.ChannelGraph, pruneTimeout time.Duration, gossiper *discovery.AuthenticatedGossiper) *Engine {
	return &Engine{Graph: g, PruneTimeout: pruneTimeout, Gossiper: gossiper}
}

// RoutingFailure implements §4.3's routing_failure: apply a reported
// forwarding failure to the channel (or, for node-scoped failures, every
// channel) on erringNode's outgoing side. If failcode carries
// FailCodeUpdate and channelUpdate parses, it is applied afterward so a
// fresher signed update can re-enable the edge immediately.
func (e *Engine) RoutingFailure(erringNode channeldb.NodeID, scid lnwire.ShortChannelID,
	failcode FailCode, channelUpdate []byte) {

	node, err := e.Graph.LookupNode(erringNode)
	if err != nil {
		log.Debugf("routing_failure for unknown node %v: %v", erringNode, err)
		return
	}

	if failcode&FailCodeNode != 0 {
		for id := range node.Channels {
			e.applyFailure(erringNode, id, failcode)
		}
	} else {
		id := scid.ToUint64()
		if _, ok := node.Channels[id]; !ok {
			return
		}
		e.applyFailure(erringNode, id, failcode)
	}

	if failcode&FailCodeUpdate != 0 && len(channelUpdate) > 0 && e.Gossiper != nil {
		e.Gossiper.HandleChannelUpdate(channelUpdate)
	}
}

// applyFailure performs the per-channel action of RoutingFailure on the
// outgoing half-edge of erringNode within the channel identified by scid.
func (e *Engine) applyFailure(erringNode channeldb.NodeID, scid uint64, failcode FailCode) {
	edge, err := e.Graph.LookupChannel(scid)
	if err != nil {
		log.Debugf("routing_failure for unknown channel scid=%d: %v", scid, err)
		return
	}

	dir, ok := edge.DirectionOf(erringNode)
	if !ok {
		return
	}

	if failcode&FailCodePerm != 0 {
		log.Infof("destroying channel scid=%d on permanent failure from %v", scid, erringNode)
		e.Graph.DestroyChannel(scid)
		return
	}

	log.Debugf("marking scid=%d direction=%d unroutable for %v", scid, dir, unroutableCooldown)
	edge.Half[dir].UnroutableUntil = time.Now().Add(unroutableCooldown)
}

// MarkChannelUnroutable implements §4.3's mark_channel_unroutable: both
// half-edges become temporarily unavailable to the path finder.
func (e *Engine) MarkChannelUnroutable(scid uint64) {
	edge, ok := e.Graph.GetChannel(scid)
	if !ok {
		return
	}

	until := time.Now().Add(unroutableCooldown)
	edge.Half[0].UnroutableUntil = until
	edge.Half[1].UnroutableUntil = until
}

// RoutePrune implements §4.3's route_prune: every public channel whose both
// half-edges have gone stale (last_timestamp older than PruneTimeout) is
// destroyed. Victims are collected before destruction so iteration is never
// invalidated mid-pass.
func (e *Engine) RoutePrune(now time.Time) {
	cutoff := uint32(now.Add(-e.PruneTimeout).Unix())

	var victims []uint64
	e.Graph.ForEachChannel(func(edge *channeldb.ChannelEdgeInfo) error {
		if !edge.Public {
			return nil
		}
		if edge.Half[0].LastTimestamp < cutoff && edge.Half[1].LastTimestamp < cutoff {
			victims = append(victims, edge.SCID.ToUint64())
		}
		return nil
	})

	if len(victims) > 0 {
		log.Infof("route_prune destroying %d stale channel(s)", len(victims))
	}
	for _, scid := range victims {
		e.Graph.DestroyChannel(scid)
	}
}
