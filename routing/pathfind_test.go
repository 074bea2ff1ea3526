package routing

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/petrkovac/lightning/channeldb"
	"github.com/petrkovac/lightning/lnwire"
	"github.com/stretchr/testify/require"
)

// testGraph is the JSON encoding of a test fixture graph: a handful of
// named nodes and the channels connecting them, with the fee schedule
// applied symmetrically to both directions for test simplicity.
type testGraph struct {
	Info   []string   `json:"info"`
	Source string     `json:"source"`
	Nodes  []testNode `json:"nodes"`
	Edges  []testChan `json:"edges"`
}

type testNode struct {
	Alias string `json:"alias"`
}

type testChan struct {
	Node1       string `json:"node_1"`
	Node2       string `json:"node_2"`
	ChannelID   uint64 `json:"channel_id"`
	Flags       uint16 `json:"flags"`
	Expiry      uint16 `json:"expiry"`
	MinHTLC     uint64 `json:"min_htlc"`
	FeeBaseMsat uint32 `json:"fee_base_msat"`
	FeeRatePPM  uint32 `json:"fee_rate_ppm"`
	Capacity    int64  `json:"capacity"`
}

type aliasMap map[string]channeldb.NodeID

// aliasNodeID derives a deterministic, stable NodeID from a human alias, so
// fixtures can be authored with names instead of real compressed pubkeys;
// path-finding never verifies signatures, so the bytes need not lie on the
// curve.
func aliasNodeID(alias string) channeldb.NodeID {
	sum := sha256.Sum256([]byte(alias))
	var id channeldb.NodeID
	id[0] = 0x02
	copy(id[1:], sum[:32])
	return id
}

func parseTestGraph(t *testing.T, path string) (*channeldb.ChannelGraph, aliasMap) {
	t.Helper()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var tg testGraph
	require.NoError(t, json.Unmarshal(raw, &tg))

	aliases := make(aliasMap, len(tg.Nodes))
	for _, n := range tg.Nodes {
		aliases[n.Alias] = aliasNodeID(n.Alias)
	}

	g := channeldb.NewChannelGraph(time.Hour)
	now := time.Now()

	if tg.Source != "" {
		g.SetSourceNode(aliases[tg.Source])
	}

	for _, e := range tg.Edges {
		n1, n2 := aliases[e.Node1], aliases[e.Node2]
		scid := lnwire.NewShortChanIDFromInt(e.ChannelID)
		edge := g.NewChannel(scid, n1, n2, now)
		edge.Public = true
		edge.Capacity = btcutil.Amount(e.Capacity)

		dir1, _ := edge.DirectionOf(n1)
		dir2 := 1 - dir1

		for _, dir := range [2]int{dir1, dir2} {
			half := edge.Half[dir]
			half.BaseFee = e.FeeBaseMsat
			half.ProportionalFee = e.FeeRatePPM
			half.Delay = e.Expiry
			half.HtlcMinimumMsat = lnwire.MilliSatoshi(e.MinHTLC)
			half.Active = true
			half.LastTimestamp = uint32(now.Unix())
		}
	}

	return g, aliases
}

func TestFixtureSourceNodeIsConfigured(t *testing.T) {
	g, aliases := parseTestGraph(t, "testdata/basic_graph.json")

	got, ok := g.SourceNode()
	require.True(t, ok)
	require.Equal(t, aliases["alice"], got)
}

func TestGetRouteFromLocalUsesConfiguredSource(t *testing.T) {
	g, aliases := parseTestGraph(t, "testdata/basic_graph.json")
	r := New(g, nil, NewEngine(g, time.Hour, nil))

	hops, err := r.GetRouteFromLocal(aliases["carol"], 1_000_000, 9)
	require.NoError(t, err)
	require.NotNil(t, hops)
	require.Equal(t, aliases["bob"], hops[0].NextNodeID)
}

func TestGetRouteFromLocalErrorsWithoutSource(t *testing.T) {
	g := channeldb.NewChannelGraph(time.Hour)
	r := New(g, nil, NewEngine(g, time.Hour, nil))

	_, err := r.GetRouteFromLocal(aliasNodeID("carol"), 1000, 9)
	require.ErrorIs(t, err, ErrSourceNodeNotSet)
}

func TestBasicGraphTwoHopRoute(t *testing.T) {
	g, aliases := parseTestGraph(t, "testdata/basic_graph.json")

	hops := GetRoute(g, aliases["alice"], aliases["carol"], 1_000_000, 0, 9, 0, 0, time.Now())
	require.NotNil(t, hops)
	require.Len(t, hops, 2)

	require.Equal(t, aliases["bob"], hops[0].NextNodeID)
	require.Equal(t, lnwire.MilliSatoshi(1_001_100), hops[0].AmountToForward)
	require.Equal(t, uint32(19), hops[0].CltvDelay)

	require.Equal(t, aliases["carol"], hops[1].NextNodeID)
	require.Equal(t, lnwire.MilliSatoshi(1_000_000), hops[1].AmountToForward)
	require.Equal(t, uint32(9), hops[1].CltvDelay)
}

func TestBasicGraphPicksCheaperOfTwoPaths(t *testing.T) {
	g, aliases := parseTestGraph(t, "testdata/basic_graph.json")

	// bob->carol is direct (cheap); bob->dave->carol is the expensive
	// detour. The route from alice to carol must prefer the direct hop.
	hops := GetRoute(g, aliases["alice"], aliases["carol"], 1_000_000, 0, 9, 0, 0, time.Now())
	require.NotNil(t, hops)
	require.Equal(t, aliases["bob"], hops[0].NextNodeID)
	require.Equal(t, aliases["carol"], hops[1].NextNodeID)
}

func TestUnknownSourceOrDestinationReturnsNil(t *testing.T) {
	g, aliases := parseTestGraph(t, "testdata/basic_graph.json")

	stranger := aliasNodeID("stranger")
	require.Nil(t, GetRoute(g, stranger, aliases["carol"], 1000, 0, 9, 0, 0, time.Now()))
	require.Nil(t, GetRoute(g, aliases["alice"], stranger, 1000, 0, 9, 0, 0, time.Now()))
}

func TestSameSourceAndDestinationReturnsNil(t *testing.T) {
	g, aliases := parseTestGraph(t, "testdata/basic_graph.json")
	require.Nil(t, GetRoute(g, aliases["alice"], aliases["alice"], 1000, 0, 9, 0, 0, time.Now()))
}

func TestInactiveEdgeIsInvisibleToPathFinder(t *testing.T) {
	g, aliases := parseTestGraph(t, "testdata/basic_graph.json")

	edge, ok := g.GetChannel(lnwire.NewShortChanIDFromInt(2).ToUint64())
	require.True(t, ok)
	edge.Half[0].Active = false
	edge.Half[1].Active = false

	// Now the only path from alice to carol goes through dave.
	hops := GetRoute(g, aliases["alice"], aliases["carol"], 1_000_000, 0, 9, 0, 0, time.Now())
	require.NotNil(t, hops)
	require.Equal(t, aliases["dave"], hops[1].NextNodeID)
}

func TestUnreachableDestinationReturnsNil(t *testing.T) {
	g := channeldb.NewChannelGraph(time.Hour)
	now := time.Now()

	a := aliasNodeID("a")
	b := aliasNodeID("b")
	c := aliasNodeID("c")

	scid := lnwire.NewShortChanIDFromInt(1)
	edge := g.NewChannel(scid, a, b, now)
	edge.Public = true
	edge.Half[0].Active = true
	edge.Half[1].Active = true

	// A node with no channels cannot exist in the graph (nodes vanish
	// with their last channel), so c is made known through a b-c channel
	// whose both half-edges are inactive: c is in the graph but no
	// routable path from a reaches it.
	scid2 := lnwire.NewShortChanIDFromInt(2)
	edge2 := g.NewChannel(scid2, b, c, now)
	edge2.Public = true
	edge2.Half[0].Active = false
	edge2.Half[1].Active = false

	require.Nil(t, GetRoute(g, a, c, 1000, 0, 9, 0, 0, now))
}

func TestFuzzDeterminism(t *testing.T) {
	g, aliases := parseTestGraph(t, "testdata/basic_graph.json")

	now := time.Now()
	hops1 := GetRoute(g, aliases["alice"], aliases["carol"], 1_000_000, 0, 9, 0.1, 42, now)
	hops2 := GetRoute(g, aliases["alice"], aliases["carol"], 1_000_000, 0, 9, 0.1, 42, now)

	require.Equal(t, hops1, hops2)
}

func TestExcessiveHopsGraphHasNoRoute(t *testing.T) {
	g := channeldb.NewChannelGraph(time.Hour)
	now := time.Now()

	// Build a straight-line chain of RoutingMaxHops+1 channels: no path
	// of at most RoutingMaxHops hops can reach the far end.
	prev := aliasNodeID("hop-0")
	for i := 1; i <= RoutingMaxHops+1; i++ {
		next := aliasNodeID(fmt.Sprintf("hop-%d", i))
		scid := lnwire.NewShortChanIDFromInt(uint64(i))
		edge := g.NewChannel(scid, prev, next, now)
		edge.Public = true
		for _, half := range edge.Half {
			half.Active = true
			half.BaseFee = 1
			half.Delay = 1
		}
		prev = next
	}

	start := aliasNodeID("hop-0")
	end := aliasNodeID(fmt.Sprintf("hop-%d", RoutingMaxHops+1))
	require.Nil(t, GetRoute(g, start, end, 1000, 0, 9, 0, 0, now))
}
