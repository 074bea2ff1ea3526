// Package channeldb holds the in-memory, verified view of the channel
// graph: nodes, channels, and the two directional policies attached to each
// channel. It is the graph store described by the routing engine design: a
// star-less, key-addressed adjacency list rather than a pointer graph, so
// that node/channel lifetime can be cascaded explicitly instead of relying
// on reference counting or a garbage collector to break node<->channel
// cycles.
package channeldb

import (
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/petrkovac/lightning/lnwire"
)

// NodeID is a node's long-term identity, the 33-byte compressed form of its
// public key. It is used as a map key directly rather than threading
// *btcec.PublicKey pointers through the graph, which is what lets channels
// and nodes reference each other without creating a reference cycle.
type NodeID [33]byte

// NewNodeID derives a NodeID from a serialized compressed public key. The
// caller is responsible for ensuring pubKey is exactly 33 bytes.
func NewNodeID(pubKey []byte) NodeID {
	var id NodeID
	copy(id[:], pubKey)
	return id
}

// Less reports whether n sorts lexicographically before other. Channel
// endpoints are canonicalized using this ordering.
func (n NodeID) Less(other NodeID) bool {
	return bytes.Compare(n[:], other[:]) < 0
}

// String returns the hex-encoded node identity.
func (n NodeID) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 0, len(n)*2)
	for _, b := range n {
		out = append(out, hextable[b>>4], hextable[b&0x0f])
	}
	return string(out)
}

// LightningNode is a vertex in the channel graph. It is created the moment
// it becomes an endpoint of some channel, and destroyed the moment it loses
// its last one; it may exist for a time with HaveNodeAnnouncement false, if
// only its identity (not its metadata) is known.
type LightningNode struct {
	// ID is the node's long-term identity public key.
	ID NodeID

	// Channels is the set of short channel IDs for every channel with
	// this node as an endpoint. Order carries no meaning; membership is
	// unique by construction (it is a map).
	Channels map[uint64]struct{}

	// HaveNodeAnnouncement indicates whether a node_announcement has
	// been applied to this node. If false, only ID and Channels are
	// meaningful.
	HaveNodeAnnouncement bool

	// Alias is the node's self-chosen display name.
	Alias lnwire.Alias

	// RGBColor is the node's self-chosen display color.
	RGBColor lnwire.RGB

	// Addresses are the node's most recently announced reachable
	// network addresses, in announced order.
	Addresses []net.Addr

	// LastAnnouncementTimestamp is the timestamp of the most recently
	// applied node_announcement. Monotonic per node: an incoming
	// announcement with a lesser-or-equal timestamp is rejected.
	LastAnnouncementTimestamp uint32

	// LastAnnouncementBytes are the raw bytes of the most recently
	// applied node_announcement, retained for rebroadcast.
	LastAnnouncementBytes []byte
}

// ChannelEdgePolicy is one direction's forwarding policy for a channel: the
// fee schedule and timelock the announcing endpoint applies to HTLCs it
// forwards outward along the channel.
type ChannelEdgePolicy struct {
	// BaseFee is charged per forwarded HTLC, in millisatoshi.
	BaseFee uint32

	// ProportionalFee is charged per forwarded HTLC amount, in
	// millionths. The wire value is stored as received; a value at or
	// above 2^24 forces Active to false (the overflow guard of §7).
	ProportionalFee uint32

	// Delay is the CLTV expiry delta this endpoint requires.
	Delay uint16

	// HtlcMinimumMsat is the smallest HTLC this endpoint forwards.
	HtlcMinimumMsat lnwire.MilliSatoshi

	// Active is false if the latest update set the disabled flag, or if
	// ProportionalFee overflowed. An inactive half-edge is invisible to
	// path-finding.
	Active bool

	// LastTimestamp is the timestamp of the last update applied to this
	// half-edge. Monotonic per direction.
	LastTimestamp uint32

	// UnroutableUntil is cleared by every successfully applied update,
	// and set by routing-failure handling; the half-edge is invisible
	// to path-finding while time.Now() is before it.
	UnroutableUntil time.Time

	// Flags is the raw wire flags field of the last applied update,
	// round-tripped for rebroadcast purposes.
	Flags uint16

	// UpdateBytes are the raw bytes of the last applied update, retained
	// for rebroadcast.
	UpdateBytes []byte
}

// routable reports whether this half-edge may currently be used by the path
// finder: active, and not within its temporary-failure cooldown window.
func (p *ChannelEdgePolicy) routable(now time.Time) bool {
	return p.Active && now.After(p.UnroutableUntil)
}

// ChannelEdgeInfo is a fully authenticated channel: the funding output it is
// backed by, its two endpoints in canonical order, and the two directional
// policies, one per endpoint.
type ChannelEdgeInfo struct {
	// SCID identifies the channel's funding output.
	SCID lnwire.ShortChannelID

	// Endpoints holds the two node identities, canonically ordered so
	// that Endpoints[0] < Endpoints[1] lexicographically.
	Endpoints [2]NodeID

	// Half holds the two directional policies; Half[i] describes the
	// edge originating from Endpoints[i].
	Half [2]*ChannelEdgePolicy

	// Public is true once a channel_announcement for this channel has
	// been verified against the chain.
	Public bool

	// Capacity is the funding output's value, set once Public is true.
	Capacity btcutil.Amount

	// AnnouncementBytes are the raw bytes of the verified
	// channel_announcement, retained for rebroadcast.
	AnnouncementBytes []byte
}

// DirectionOf returns the half-edge index (0 or 1) of id within the
// channel's endpoints, and whether id is an endpoint at all.
func (c *ChannelEdgeInfo) DirectionOf(id NodeID) (int, bool) {
	switch {
	case c.Endpoints[0] == id:
		return 0, true
	case c.Endpoints[1] == id:
		return 1, true
	default:
		return 0, false
	}
}

// OtherEndpoint returns the node id on the far side of the channel from id.
func (c *ChannelEdgeInfo) OtherEndpoint(id NodeID) NodeID {
	if c.Endpoints[0] == id {
		return c.Endpoints[1]
	}
	return c.Endpoints[0]
}

// ChannelGraph is the in-memory, mutex-guarded store of nodes and channels.
// Adjacency is by key (NodeID / SCID), not by pointer, so that destroying a
// channel can cascade into destroying an endpoint without chasing reference
// counts.
type ChannelGraph struct {
	// PruneTimeout seeds the LastTimestamp of newly created half-edges
	// (now - PruneTimeout/2). RoutePrune (policy engine) does not read
	// it; it uses the Engine's own PruneTimeout.
	PruneTimeout time.Duration

	mu         sync.RWMutex
	nodes      map[NodeID]*LightningNode
	channels   map[uint64]*ChannelEdgeInfo
	source     NodeID
	haveSource bool
}

// NewChannelGraph creates an empty graph store. pruneTimeout governs the
// newly-created-channel staleness seed (half pruneTimeout); RoutePrune's
// staleness threshold is configured separately on the policy engine.
func NewChannelGraph(pruneTimeout time.Duration) *ChannelGraph {
	return &ChannelGraph{
		PruneTimeout: pruneTimeout,
		nodes:        make(map[NodeID]*LightningNode),
		channels:     make(map[uint64]*ChannelEdgeInfo),
	}
}

// SetSourceNode designates id as the local node, the starting point for
// get_route queries.
func (g *ChannelGraph) SetSourceNode(id NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.source = id
	g.haveSource = true
}

// SourceNode returns the local node's identity, if one has been set.
func (g *ChannelGraph) SourceNode() (NodeID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.source, g.haveSource
}

// GetNode looks up a node by identity.
func (g *ChannelGraph) GetNode(id NodeID) (*LightningNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	return n, ok
}

// GetChannel looks up a channel by its short channel ID.
func (g *ChannelGraph) GetChannel(scid uint64) (*ChannelEdgeInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c, ok := g.channels[scid]
	return c, ok
}

// LookupNode is GetNode with an error in place of the ok bool, for callers
// that want to log or propagate the reason a lookup failed rather than just
// branch on it.
func (g *ChannelGraph) LookupNode(id NodeID) (*LightningNode, error) {
	n, ok := g.GetNode(id)
	if !ok {
		return nil, ErrGraphNodeNotFound
	}
	return n, nil
}

// LookupChannel is GetChannel with an error in place of the ok bool.
func (g *ChannelGraph) LookupChannel(scid uint64) (*ChannelEdgeInfo, error) {
	c, ok := g.GetChannel(scid)
	if !ok {
		return nil, ErrEdgeNotFound
	}
	return c, nil
}

// fetchOrCreateNode returns the node for id, creating an empty placeholder
// (HaveNodeAnnouncement false) if this is its first incident channel. Must
// be called with the write lock held.
func (g *ChannelGraph) fetchOrCreateNode(id NodeID) *LightningNode {
	if n, ok := g.nodes[id]; ok {
		return n
	}

	n := &LightningNode{
		ID:       id,
		Channels: make(map[uint64]struct{}),
	}
	g.nodes[id] = n
	return n
}

// NewChannel creates a channel between id1 and id2, canonicalizing their
// order, and links it into both endpoints. Both half-edges start inactive
// with LastTimestamp seeded to now-PruneTimeout/2, so that an endpoint which
// never sends a channel_update is pruned on the usual schedule rather than
// immediately or never. It is the caller's responsibility to ensure scid is
// not already present (§4.1 create-on-demand semantics apply to local
// private channels and chain-confirmed announcements alike).
func (g *ChannelGraph) NewChannel(scid lnwire.ShortChannelID, id1, id2 NodeID, now time.Time) *ChannelEdgeInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id2.Less(id1) {
		id1, id2 = id2, id1
	}

	seedTime := now.Add(-g.PruneTimeout / 2)
	edge := &ChannelEdgeInfo{
		SCID:      scid,
		Endpoints: [2]NodeID{id1, id2},
		Half: [2]*ChannelEdgePolicy{
			{LastTimestamp: uint32(seedTime.Unix())},
			{LastTimestamp: uint32(seedTime.Unix())},
		},
	}

	id := scid.ToUint64()
	g.channels[id] = edge

	n1 := g.fetchOrCreateNode(id1)
	n1.Channels[id] = struct{}{}
	n2 := g.fetchOrCreateNode(id2)
	n2.Channels[id] = struct{}{}

	log.Debugf("new channel scid=%d endpoints=%v/%v", id, id1, id2)

	return edge
}

// DestroyChannel removes a channel from the graph and from both of its
// endpoints. If an endpoint's channel set becomes empty, the endpoint is
// destroyed as well. It panics if the invariant that a channel is present
// in both endpoints' sets is violated — that is a programming error
// elsewhere in the graph store, not a recoverable condition.
func (g *ChannelGraph) DestroyChannel(scid uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	edge, ok := g.channels[scid]
	if !ok {
		return
	}
	delete(g.channels, scid)

	for _, id := range edge.Endpoints {
		node, ok := g.nodes[id]
		if !ok {
			panic("invariant violation: channel endpoint has no node entry")
		}
		if _, ok := node.Channels[scid]; !ok {
			panic("invariant violation: channel missing from endpoint's channel set")
		}
		delete(node.Channels, scid)

		if len(node.Channels) == 0 {
			delete(g.nodes, id)
			log.Debugf("destroyed node %v, no channels remain", id)
		}
	}

	log.Debugf("destroyed channel scid=%d", scid)
}

// ForEachChannel calls cb once for every channel in the graph. The callback
// must not mutate the graph; to prune, collect victims first and destroy
// them in a second pass (ForEachChannel itself iterates a live map and does
// not tolerate concurrent deletion).
func (g *ChannelGraph) ForEachChannel(cb func(*ChannelEdgeInfo) error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, edge := range g.channels {
		if err := cb(edge); err != nil {
			return err
		}
	}
	return nil
}

// ForEachNode calls cb once for every node in the graph.
func (g *ChannelGraph) ForEachNode(cb func(*LightningNode) error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, n := range g.nodes {
		if err := cb(n); err != nil {
			return err
		}
	}
	return nil
}

// NumNodes returns the number of nodes currently in the graph.
func (g *ChannelGraph) NumNodes() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// NumChannels returns the number of channels currently in the graph.
func (g *ChannelGraph) NumChannels() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.channels)
}

// View runs cb with the graph's read lock held, for callers (principally
// the path finder) that need a consistent snapshot across many lookups.
func (g *ChannelGraph) View(cb func()) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cb()
}

// Update runs cb with the graph's write lock held.
func (g *ChannelGraph) Update(cb func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb()
}
