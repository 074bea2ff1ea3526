package discovery

import (
	"sync"

	"github.com/petrkovac/lightning/channeldb"
	"github.com/petrkovac/lightning/lnwire"
)

// bufferedUpdate is a channel_update received for a channel that is still
// pending chain confirmation. Only the newest (by timestamp) is retained
// per direction.
type bufferedUpdate struct {
	upd       *lnwire.ChannelUpdate
	rawBytes  []byte
	timestamp uint32
}

// bufferedNodeAnn is a node_announcement received for a node id that has no
// graph entry yet, parked until the channel announcement that would create
// the node resolves. Only the newest (by timestamp) is retained.
type bufferedNodeAnn struct {
	ann       *lnwire.NodeAnnouncement
	rawBytes  []byte
	timestamp uint32
}

// pendingChannel is a channel_announcement that has passed parse and
// signature verification but is awaiting a chain-oracle answer.
type pendingChannel struct {
	ann      *lnwire.ChannelAnnouncement
	rawBytes []byte
	updates  [2]*bufferedUpdate
}

// nodeBucket is the "parking bucket" for node_announcements that arrive
// before their node exists in the graph. refs counts the number of pending
// channels keeping the bucket alive; the bucket is removed once refs drops
// to zero, at which point any orphaned node_announcement is again
// discardable rather than buffered.
type nodeBucket struct {
	buffered *bufferedNodeAnn
	refs     int
}

// PendingStore holds gossip that has been validated but not yet committed
// to the graph: channel announcements awaiting chain confirmation, their
// deferred per-direction updates, and node announcements for not-yet-real
// nodes.
type PendingStore struct {
	mu       sync.Mutex
	channels map[uint64]*pendingChannel
	nodes    map[channeldb.NodeID]*nodeBucket
}

// NewPendingStore creates an empty pending store.
func NewPendingStore() *PendingStore {
	return &PendingStore{
		channels: make(map[uint64]*pendingChannel),
		nodes:    make(map[channeldb.NodeID]*nodeBucket),
	}
}

// addChannel registers a newly validated channel announcement as pending,
// and opens (or bumps the refcount of) a parking bucket for each endpoint.
// Returns false if a pending entry for this SCID already exists, in which
// case the caller must discard the new announcement (first-wins).
func (p *PendingStore) addChannel(scid uint64, ann *lnwire.ChannelAnnouncement, raw []byte, n1, n2 channeldb.NodeID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.channels[scid]; ok {
		return false
	}

	p.channels[scid] = &pendingChannel{ann: ann, rawBytes: raw}
	p.openBucket(n1)
	p.openBucket(n2)
	return true
}

// openBucket must be called with the lock held.
func (p *PendingStore) openBucket(id channeldb.NodeID) {
	b, ok := p.nodes[id]
	if !ok {
		b = &nodeBucket{}
		p.nodes[id] = b
	}
	b.refs++
}

// closeBucket drops a pending channel's reference to id's parking bucket,
// removing the bucket once no pending channel references it. Must be
// called with the lock held.
func (p *PendingStore) closeBucket(id channeldb.NodeID) {
	b, ok := p.nodes[id]
	if !ok {
		return
	}
	b.refs--
	if b.refs <= 0 {
		delete(p.nodes, id)
	}
}

// getChannel returns the pending entry for scid, if any.
func (p *PendingStore) getChannel(scid uint64) (*pendingChannel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.channels[scid]
	return c, ok
}

// hasChannel reports whether a pending entry exists for scid.
func (p *PendingStore) hasChannel(scid uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.channels[scid]
	return ok
}

// bufferUpdate stashes upd as the pending entry's deferred update for its
// direction, keeping only the newer of the two by timestamp. Returns false
// if scid has no pending entry.
func (p *PendingStore) bufferUpdate(scid uint64, direction int, upd *lnwire.ChannelUpdate, raw []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.channels[scid]
	if !ok {
		return false
	}

	existing := c.updates[direction]
	if existing != nil && existing.timestamp >= upd.Timestamp {
		return true
	}
	c.updates[direction] = &bufferedUpdate{upd: upd, rawBytes: raw, timestamp: upd.Timestamp}
	return true
}

// bufferNodeAnn stashes ann in id's parking bucket if one is open, keeping
// only the newer of the two by timestamp. Returns false if no bucket is
// open for id (the announcement is an orphan and must be discarded by the
// caller).
func (p *PendingStore) bufferNodeAnn(id channeldb.NodeID, ann *lnwire.NodeAnnouncement, raw []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.nodes[id]
	if !ok {
		return false
	}

	if b.buffered != nil && b.buffered.timestamp >= ann.Timestamp {
		return true
	}
	b.buffered = &bufferedNodeAnn{ann: ann, rawBytes: raw, timestamp: ann.Timestamp}
	return true
}

// resolveChannel removes the pending entry for scid and closes both
// endpoints' parking buckets, returning the entry (if any existed) so the
// caller can replay its deferred updates and buffered node announcements.
func (p *PendingStore) resolveChannel(scid uint64, n1, n2 channeldb.NodeID) (*pendingChannel, []*bufferedNodeAnn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.channels[scid]
	if !ok {
		return nil, nil
	}
	delete(p.channels, scid)

	var buffered []*bufferedNodeAnn
	for _, id := range [2]channeldb.NodeID{n1, n2} {
		if b, ok := p.nodes[id]; ok && b.buffered != nil {
			buffered = append(buffered, b.buffered)
		}
		p.closeBucket(id)
	}

	return c, buffered
}
