package main

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/petrkovac/lightning/channeldb"
	"github.com/petrkovac/lightning/lnwire"
)

var graphPath string

// snapshot is the on-disk JSON shape lnrouterctl reads: named nodes and the
// channels between them, the same layout the routing package's own test
// fixtures use.
type snapshot struct {
	PruneTimeout string         `json:"prune_timeout"`
	Nodes        []snapshotNode `json:"nodes"`
	Edges        []snapshotEdge `json:"edges"`
}

type snapshotNode struct {
	Alias string `json:"alias"`
}

type snapshotEdge struct {
	Node1       string `json:"node_1"`
	Node2       string `json:"node_2"`
	ChannelID   uint64 `json:"channel_id"`
	Expiry      uint16 `json:"expiry"`
	MinHTLC     uint64 `json:"min_htlc"`
	FeeBaseMsat uint32 `json:"fee_base_msat"`
	FeeRatePPM  uint32 `json:"fee_rate_ppm"`
	Capacity    int64  `json:"capacity"`
	Disabled    bool   `json:"disabled"`
}

// aliasNodeID derives a stable NodeID from an alias string, so snapshots can
// be authored by hand without real secp256k1 key material; lnrouterctl never
// verifies gossip signatures, it only inspects and drives an already-trusted
// graph.
func aliasNodeID(alias string) channeldb.NodeID {
	sum := sha256.Sum256([]byte(alias))
	var id channeldb.NodeID
	id[0] = 0x02
	copy(id[1:], sum[:32])
	return id
}

func loadGraph(path string) (*channeldb.ChannelGraph, map[string]channeldb.NodeID, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading graph snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, nil, fmt.Errorf("parsing graph snapshot: %w", err)
	}

	pruneTimeout := time.Hour
	if snap.PruneTimeout != "" {
		d, err := time.ParseDuration(snap.PruneTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid prune_timeout: %w", err)
		}
		pruneTimeout = d
	}

	aliases := make(map[string]channeldb.NodeID, len(snap.Nodes))
	for _, n := range snap.Nodes {
		aliases[n.Alias] = aliasNodeID(n.Alias)
	}

	g := channeldb.NewChannelGraph(pruneTimeout)
	now := time.Now()

	for _, e := range snap.Edges {
		n1, ok := aliases[e.Node1]
		if !ok {
			return nil, nil, fmt.Errorf("edge references unknown node alias %q", e.Node1)
		}
		n2, ok := aliases[e.Node2]
		if !ok {
			return nil, nil, fmt.Errorf("edge references unknown node alias %q", e.Node2)
		}

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
			half.Active = !e.Disabled
			half.LastTimestamp = uint32(now.Unix())
		}
	}

	return g, aliases, nil
}

func resolveAlias(aliases map[string]channeldb.NodeID, alias string) (channeldb.NodeID, error) {
	id, ok := aliases[alias]
	if !ok {
		return channeldb.NodeID{}, fmt.Errorf("unknown node alias %q", alias)
	}
	return id, nil
}
