package routing

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/petrkovac/lightning/channeldb"
	"github.com/petrkovac/lightning/lnwire"
	"github.com/stretchr/testify/require"
)

func testNodeID(t *testing.T) channeldb.NodeID {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return channeldb.NewNodeID(priv.PubKey().SerializeCompressed())
}

// newActiveChannel creates a channel between a and b whose both half-edges
// are active with a fresh LastTimestamp, so it starts out routable and
// outside RoutePrune's staleness window.
func newActiveChannel(t *testing.T, g *channeldb.ChannelGraph, a, b channeldb.NodeID, scidInt uint64) *channeldb.ChannelEdgeInfo {
	t.Helper()

	scid := lnwire.NewShortChanIDFromInt(scidInt)
	edge := g.NewChannel(scid, a, b, time.Now())
	edge.Public = true
	for _, half := range edge.Half {
		half.Active = true
		half.LastTimestamp = uint32(time.Now().Unix())
	}
	return edge
}

func TestApplyFailurePermanentDestroysChannel(t *testing.T) {
	g := channeldb.NewChannelGraph(time.Hour)
	a, b := testNodeID(t), testNodeID(t)
	edge := newActiveChannel(t, g, a, b, 1)
	scid := edge.SCID.ToUint64()

	e := NewEngine(g, time.Hour, nil)
	e.RoutingFailure(a, edge.SCID, FailCodePerm, nil)

	_, ok := g.GetChannel(scid)
	require.False(t, ok)
}

func TestApplyFailureTemporarySetsUnroutableOnErringDirectionOnly(t *testing.T) {
	g := channeldb.NewChannelGraph(time.Hour)
	a, b := testNodeID(t), testNodeID(t)
	edge := newActiveChannel(t, g, a, b, 2)

	dirA, _ := edge.DirectionOf(a)
	dirB := 1 - dirA

	e := NewEngine(g, time.Hour, nil)
	e.RoutingFailure(a, edge.SCID, 0, nil)

	now := time.Now()
	require.True(t, edge.Half[dirA].UnroutableUntil.After(now))
	require.True(t, edge.Half[dirB].UnroutableUntil.Before(now))

	_, ok := g.GetChannel(edge.SCID.ToUint64())
	require.True(t, ok, "temporary failure must not destroy the channel")
}

func TestRoutingFailureNodeScopedAppliesToEveryIncidentChannel(t *testing.T) {
	g := channeldb.NewChannelGraph(time.Hour)
	a, b, c := testNodeID(t), testNodeID(t), testNodeID(t)
	edgeAB := newActiveChannel(t, g, a, b, 10)
	edgeAC := newActiveChannel(t, g, a, c, 11)

	e := NewEngine(g, time.Hour, nil)
	e.RoutingFailure(a, edgeAB.SCID, FailCodePerm|FailCodeNode, nil)

	_, okAB := g.GetChannel(edgeAB.SCID.ToUint64())
	_, okAC := g.GetChannel(edgeAC.SCID.ToUint64())
	require.False(t, okAB)
	require.False(t, okAC)
}

func TestRoutingFailureUnknownErringNodeIsNoop(t *testing.T) {
	g := channeldb.NewChannelGraph(time.Hour)
	a, b := testNodeID(t), testNodeID(t)
	edge := newActiveChannel(t, g, a, b, 20)

	stranger := testNodeID(t)
	e := NewEngine(g, time.Hour, nil)
	require.NotPanics(t, func() {
		e.RoutingFailure(stranger, edge.SCID, FailCodePerm, nil)
	})

	_, ok := g.GetChannel(edge.SCID.ToUint64())
	require.True(t, ok)
}

func TestMarkChannelUnroutableSetsBothDirections(t *testing.T) {
	g := channeldb.NewChannelGraph(time.Hour)
	a, b := testNodeID(t), testNodeID(t)
	edge := newActiveChannel(t, g, a, b, 30)

	e := NewEngine(g, time.Hour, nil)
	e.MarkChannelUnroutable(edge.SCID.ToUint64())

	now := time.Now()
	require.True(t, edge.Half[0].UnroutableUntil.After(now))
	require.True(t, edge.Half[1].UnroutableUntil.After(now))
}

func TestRoutePruneDestroysOnlyChannelsStaleOnBothDirections(t *testing.T) {
	pruneTimeout := time.Hour
	g := channeldb.NewChannelGraph(pruneTimeout)
	now := time.Now()

	a, b := testNodeID(t), testNodeID(t)
	staleScid := lnwire.NewShortChanIDFromInt(40)
	staleEdge := g.NewChannel(staleScid, a, b, now.Add(-2*pruneTimeout))
	staleEdge.Public = true
	for _, half := range staleEdge.Half {
		half.Active = true
		half.LastTimestamp = uint32(now.Add(-2 * pruneTimeout).Unix())
	}

	c, d := testNodeID(t), testNodeID(t)
	freshEdge := newActiveChannel(t, g, c, d, 41)

	e := NewEngine(g, pruneTimeout, nil)
	e.RoutePrune(now)

	_, staleOK := g.GetChannel(staleScid.ToUint64())
	require.False(t, staleOK)

	_, freshOK := g.GetChannel(freshEdge.SCID.ToUint64())
	require.True(t, freshOK)
}

func TestRoutePruneSkipsChannelFreshOnOnlyOneDirection(t *testing.T) {
	pruneTimeout := time.Hour
	g := channeldb.NewChannelGraph(pruneTimeout)
	now := time.Now()

	a, b := testNodeID(t), testNodeID(t)
	scid := lnwire.NewShortChanIDFromInt(50)
	edge := g.NewChannel(scid, a, b, now)
	edge.Public = true

	dirA, _ := edge.DirectionOf(a)
	dirB := 1 - dirA
	edge.Half[dirA].Active = true
	edge.Half[dirA].LastTimestamp = uint32(now.Add(-2 * pruneTimeout).Unix())
	edge.Half[dirB].Active = true
	edge.Half[dirB].LastTimestamp = uint32(now.Unix())

	e := NewEngine(g, pruneTimeout, nil)
	e.RoutePrune(now)

	_, ok := g.GetChannel(scid.ToUint64())
	require.True(t, ok, "a channel refreshed on only one side must survive")
}

func TestRoutePruneCascadesNodeDestructionOnLastChannel(t *testing.T) {
	pruneTimeout := time.Hour
	g := channeldb.NewChannelGraph(pruneTimeout)
	now := time.Now()

	a, b := testNodeID(t), testNodeID(t)
	scid := lnwire.NewShortChanIDFromInt(60)
	edge := g.NewChannel(scid, a, b, now.Add(-2*pruneTimeout))
	edge.Public = true
	for _, half := range edge.Half {
		half.Active = true
		half.LastTimestamp = uint32(now.Add(-2 * pruneTimeout).Unix())
	}

	e := NewEngine(g, pruneTimeout, nil)
	e.RoutePrune(now)

	_, okA := g.GetNode(a)
	_, okB := g.GetNode(b)
	require.False(t, okA)
	require.False(t, okB)
}

func TestRoutePruneIgnoresNonPublicChannels(t *testing.T) {
	pruneTimeout := time.Hour
	g := channeldb.NewChannelGraph(pruneTimeout)
	now := time.Now()

	a, b := testNodeID(t), testNodeID(t)
	scid := lnwire.NewShortChanIDFromInt(70)
	edge := g.NewChannel(scid, a, b, now.Add(-2*pruneTimeout))
	// edge.Public left false: a private/unannounced channel is never
	// pruned by route_prune, regardless of staleness.
	for _, half := range edge.Half {
		half.Active = true
		half.LastTimestamp = uint32(now.Add(-2 * pruneTimeout).Unix())
	}

	e := NewEngine(g, pruneTimeout, nil)
	e.RoutePrune(now)

	_, ok := g.GetChannel(scid.ToUint64())
	require.True(t, ok)
}
