// Package routing implements the policy engine (routing-failure handling,
// channel pruning) and the length-stratified Bellman-Ford path finder that
// answers get_route queries over a channeldb.ChannelGraph.
package routing

import (
	"math"
	"time"

	"github.com/petrkovac/lightning/channeldb"
	"github.com/petrkovac/lightning/lnwire"
)

const (
	// RoutingMaxHops bounds path length, reflecting the onion packet's
	// fixed hop count.
	RoutingMaxHops = 20

	// maxRoutableMsat is the overflow guard on any accumulated amount;
	// amounts at or above it are treated as unreachable.
	maxRoutableMsat = 1 << 40

	// infinite is the sentinel "unreachable" total, reserved distinct
	// from maxRoutableMsat so overflowed-but-finite sums never alias it.
	infinite = (uint64(1) << 62) - 1
)

// Hop is one leg of a materialized route: the channel to use, the node it
// leads to, and the amount and CLTV delay to put on the outgoing HTLC.
type Hop struct {
	SCID            lnwire.ShortChannelID
	NextNodeID      channeldb.NodeID
	AmountToForward lnwire.MilliSatoshi
	CltvDelay       uint32
}

// bfgEntry is one (length, node) cell of the path finder's DP table: the
// smallest total amount that must enter this node to deliver the query
// amount to the destination along some path of that length starting at
// this node, together with the accumulated risk score and the first channel
// of that path (the one leading from this node toward the destination).
type bfgEntry struct {
	total    uint64
	risk     uint64
	prevSCID uint64
	prevDir  int
	hasPrev  bool
}

// scratchTable is the per-query DP table, keyed by node id, replacing the
// "bfg_scratch on every node" of a single-threaded design so concurrent
// queries do not share mutable state (spec note: move scratch into a
// per-query table keyed by node id).
type scratchTable map[channeldb.NodeID]*[RoutingMaxHops + 1]bfgEntry

func newScratchTable() scratchTable {
	return make(scratchTable)
}

func (s scratchTable) entryFor(id channeldb.NodeID) *[RoutingMaxHops + 1]bfgEntry {
	row, ok := s[id]
	if !ok {
		row = &[RoutingMaxHops + 1]bfgEntry{}
		for i := range row {
			row[i].total = infinite
		}
		s[id] = row
	}
	return row
}

// GetRoute answers a get_route query: a path of at most RoutingMaxHops hops
// from source to destination able to deliver amountMsat, or nil if none
// exists. For each path length the candidate with the smallest accumulated
// total-amount-plus-risk is kept; among those, the length with the smallest
// total amount (risk not counted) is returned.
//
// riskFactorPerBlock is the caller's risk tolerance already normalized to
// per-block units (user_risk_factor / BLOCKS_PER_YEAR / 10_000, per
// §4.4.4). fuzz and fuzzSeed implement the deterministic fee jitter of
// §4.4.3; pass fuzz == 0 to disable it.
func GetRoute(g *channeldb.ChannelGraph, source, destination channeldb.NodeID,
	amountMsat lnwire.MilliSatoshi, riskFactorPerBlock float64, finalCltvDelta uint32,
	fuzz float64, fuzzSeed uint64, now time.Time) []*Hop {

	if amountMsat >= maxRoutableMsat {
		return nil
	}
	if source == destination {
		return nil
	}
	if _, ok := g.GetNode(source); !ok {
		return nil
	}
	if _, ok := g.GetNode(destination); !ok {
		return nil
	}

	scratch := newScratchTable()
	dstRow := scratch.entryFor(destination)
	dstRow[0] = bfgEntry{total: uint64(amountMsat)}

	// Each ForEachChannel call takes its own read lock for the duration of
	// one pass; the DP table itself is query-local (scratchTable), so no
	// lock needs to span the whole query the way a single long-held lock
	// would.
	for run := 0; run < RoutingMaxHops; run++ {
		g.ForEachChannel(func(edge *channeldb.ChannelEdgeInfo) error {
			relaxChannel(g, scratch, edge, 0, riskFactorPerBlock, fuzz, fuzzSeed, now)
			relaxChannel(g, scratch, edge, 1, riskFactorPerBlock, fuzz, fuzzSeed, now)
			return nil
		})
	}

	srcRow := scratch.entryFor(source)
	best := -1
	var bestTotal uint64 = infinite
	for i := 1; i <= RoutingMaxHops; i++ {
		if srcRow[i].total < bestTotal {
			bestTotal = srcRow[i].total
			best = i
		}
	}
	if best == -1 || bestTotal >= infinite {
		return nil
	}

	return materialize(g, scratch, source, best, amountMsat, finalCltvDelta)
}

// relaxChannel considers the directed edge u->v on the given channel, where
// u is Endpoints[dir] and v is Endpoints[1-dir], and attempts to improve
// u's DP table using v's current entries.
func relaxChannel(g *channeldb.ChannelGraph, scratch scratchTable, edge *channeldb.ChannelEdgeInfo,
	dir int, riskFactorPerBlock, fuzz float64, fuzzSeed uint64, now time.Time) {

	if !edge.Public {
		return
	}

	policy := edge.Half[dir]
	if policy == nil || !policy.routable(now) {
		return
	}

	u := edge.Endpoints[dir]
	v := edge.Endpoints[1-dir]

	vRow := scratch.entryFor(v)
	uRow := scratch.entryFor(u)

	scid := edge.SCID.ToUint64()
	scale := fuzzFactor(fuzz, fuzzSeed, scid)

	for h := 0; h < RoutingMaxHops; h++ {
		vEntry := vRow[h]
		if vEntry.total >= infinite {
			continue
		}

		fee := channelFee(policy, vEntry.total)
		scaledFee := uint64(math.Round(float64(fee) * scale))

		risk := vEntry.risk + 1 + uint64(math.Round(
			float64(vEntry.total+scaledFee)*float64(policy.Delay)*riskFactorPerBlock))

		combined := vEntry.total + scaledFee + risk
		if combined >= maxRoutableMsat {
			continue
		}

		if combined < uRow[h+1].total+uRow[h+1].risk {
			uRow[h+1] = bfgEntry{
				total:    vEntry.total + scaledFee,
				risk:     risk,
				prevSCID: scid,
				prevDir:  dir,
				hasPrev:  true,
			}
		}
	}
}

// channelFee returns the unscaled forwarding fee a half-edge charges to
// carry amtMsat.
func channelFee(policy *channeldb.ChannelEdgePolicy, amtMsat uint64) uint64 {
	return uint64(policy.BaseFee) + (uint64(policy.ProportionalFee)*amtMsat)/1_000_000
}

// materialize walks the DP table's prevSCID chain forward from source to
// build the channel sequence, then computes each hop's forwarded amount and
// CLTV delay by accumulating from the destination backward, per §4.4.2.
func materialize(g *channeldb.ChannelGraph, scratch scratchTable, source channeldb.NodeID,
	length int, amountMsat lnwire.MilliSatoshi, finalCltvDelta uint32) []*Hop {

	policies := make([]*channeldb.ChannelEdgePolicy, 0, length)
	scids := make([]lnwire.ShortChannelID, 0, length)
	nextNodes := make([]channeldb.NodeID, 0, length)

	node := source
	for remaining := length; remaining > 0; remaining-- {
		entry := scratch.entryFor(node)[remaining]
		if !entry.hasPrev {
			return nil
		}

		edge, ok := g.GetChannel(entry.prevSCID)
		if !ok {
			return nil
		}

		next := edge.Endpoints[1-entry.prevDir]

		scids = append(scids, edge.SCID)
		policies = append(policies, edge.Half[entry.prevDir])
		nextNodes = append(nextNodes, next)

		node = next
	}

	hops := make([]*Hop, length)
	var amount lnwire.MilliSatoshi
	var cltv uint32
	for k := length - 1; k >= 0; k-- {
		if k == length-1 {
			amount = amountMsat
			cltv = finalCltvDelta
		} else {
			nextPolicy := policies[k+1]
			fee := channelFee(nextPolicy, uint64(amount))
			amount += lnwire.MilliSatoshi(fee)
			cltv += uint32(nextPolicy.Delay)
		}

		hops[k] = &Hop{
			SCID:            scids[k],
			NextNodeID:      nextNodes[k],
			AmountToForward: amount,
			CltvDelay:       cltv,
		}
	}

	return hops
}
