// Package discovery implements the gossip ingest state machine: parsing,
// validating, and dispatching channel_announcement, channel_update, and
// node_announcement messages into the graph store, with a pending store
// buffering channels that await chain confirmation.
package discovery

import (
	"bytes"
	"crypto/sha256"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btclog"
	"github.com/petrkovac/lightning/channeldb"
	"github.com/petrkovac/lightning/lnwire"
)

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used for trace-level diagnostics
// (principally signature-verification failures, per the error taxonomy
// that otherwise discards silently).
func UseLogger(l btclog.Logger) {
	log = l
}

// ChainOracle is the narrow, asynchronous contract to the blockchain: given
// a candidate channel's short channel ID and its two funding keys, resolve
// whether the funding output is unspent and matches the expected 2-of-2
// script. The answer arrives later via AuthenticatedGossiper's
// HandlePendingChannelAnnouncement, not as a return value here.
type ChainOracle interface {
	QueryChannel(scid lnwire.ShortChannelID, bitcoinKey1, bitcoinKey2 *btcec.PublicKey)
}

// BroadcastStore is the narrow contract to the outbound gossip broadcaster.
// It enforces at most one live message per tag, returning whether this call
// replaced a previously live message under the same tag.
type BroadcastStore interface {
	ReplaceBroadcast(tag string, msgType lnwire.MessageType, payload []byte) (replaced bool, err error)
}

// Config bundles an AuthenticatedGossiper's fixed parameters.
type Config struct {
	// ChainHash is the genesis hash of the chain this instance gossips
	// for; announcements naming a different chain are discarded.
	ChainHash chainhash.Hash

	// KnownFeatures is the set of even feature bits this node
	// understands. An announcement setting an even bit outside this set
	// is rejected without further parsing.
	KnownFeatures map[uint16]struct{}

	// LocalNodeID is the node id of this instance, used to decide
	// whether a just-confirmed channel touches the local node.
	LocalNodeID channeldb.NodeID

	// PruneTimeout is not read by the gossiper; half-edge timestamp
	// seeding uses Graph's own PruneTimeout.
	PruneTimeout time.Duration

	// Graph is the verified, pruned channel graph this gossiper
	// maintains.
	Graph *channeldb.ChannelGraph

	// ChainOracle answers funding-output queries. May be nil in tests
	// that drive HandlePendingChannelAnnouncement directly.
	ChainOracle ChainOracle

	// Broadcaster receives every newly valid, newest gossip message.
	// May be nil, in which case broadcasting is skipped.
	Broadcaster BroadcastStore
}

// AuthenticatedGossiper is the ingest processor: it parses and
// cryptographically validates gossip messages, enforces the inter-message
// ordering and staleness rules, and applies accepted messages to the graph
// store.
type AuthenticatedGossiper struct {
	cfg     Config
	pending *PendingStore
}

// New creates an AuthenticatedGossiper over the given configuration.
func New(cfg Config) *AuthenticatedGossiper {
	return &AuthenticatedGossiper{
		cfg:     cfg,
		pending: NewPendingStore(),
	}
}

func decodeMessage(raw []byte) (lnwire.Message, error) {
	return lnwire.ReadMessage(bytes.NewReader(raw), 0)
}

// broadcast forwards payload to the configured broadcaster under tag,
// tolerating a nil broadcaster (useful in isolated tests).
func (g *AuthenticatedGossiper) broadcast(tag string, msgType lnwire.MessageType, payload []byte) {
	if g.cfg.Broadcaster == nil {
		return
	}
	if _, err := g.cfg.Broadcaster.ReplaceBroadcast(tag, msgType, payload); err != nil {
		log.Errorf("broadcast failed for %v %s: %v", msgType, tag, err)
	}
}

// HandleChannelAnnouncement implements 4.2.1: parse, validate, and park a
// channel_announcement as pending, query the configured chain oracle (if
// any) for it, and return its SCID. Returns (zero, false) on any rejection.
func (g *AuthenticatedGossiper) HandleChannelAnnouncement(raw []byte) (lnwire.ShortChannelID, bool) {
	msg, err := decodeMessage(raw)
	if err != nil {
		return lnwire.ShortChannelID{}, false
	}
	ann, ok := msg.(*lnwire.ChannelAnnouncement)
	if !ok {
		return lnwire.ShortChannelID{}, false
	}

	if len(unknownEvenBits(ann.Features, g.cfg.KnownFeatures)) > 0 {
		return lnwire.ShortChannelID{}, false
	}
	if ann.ChainHash != g.cfg.ChainHash {
		return lnwire.ShortChannelID{}, false
	}

	scid := ann.ShortChannelID.ToUint64()
	if _, ok := g.cfg.Graph.GetChannel(scid); ok {
		return lnwire.ShortChannelID{}, false
	}
	if g.pending.hasChannel(scid) {
		return lnwire.ShortChannelID{}, false
	}

	if err := validateChannelAnn(ann); err != nil {
		log.Tracef("rejecting channel_announcement %v: %v", ann.ShortChannelID, err)
		return lnwire.ShortChannelID{}, false
	}

	n1 := channeldb.NewNodeID(ann.NodeID1.SerializeCompressed())
	n2 := channeldb.NewNodeID(ann.NodeID2.SerializeCompressed())

	if !g.pending.addChannel(scid, ann, raw, n1, n2) {
		return lnwire.ShortChannelID{}, false
	}

	if g.cfg.ChainOracle != nil {
		g.cfg.ChainOracle.QueryChannel(ann.ShortChannelID, ann.BitcoinKey1, ann.BitcoinKey2)
	}

	return ann.ShortChannelID, true
}

// expectedFundingScript returns the P2WSH scriptPubKey (OP_0 <32-byte
// sha256(witness script)>) of the 2-of-2 multisig backing a channel, the
// funding keys taken in canonical (lexicographically sorted) order as
// BOLT7 requires. This is what a genuine on-chain output actually looks
// like, and what the chain oracle's outscript must equal exactly.
func expectedFundingScript(key1, key2 *btcec.PublicKey) []byte {
	k1 := key1.SerializeCompressed()
	k2 := key2.SerializeCompressed()
	if bytes.Compare(k2, k1) < 0 {
		k1, k2 = k2, k1
	}

	// OP_2 <key1> <key2> OP_2 OP_CHECKMULTISIG, the funding witness
	// script hashed into the P2WSH output below.
	witnessScript := make([]byte, 0, 2+34+34+2)
	witnessScript = append(witnessScript, 0x52) // OP_2
	witnessScript = append(witnessScript, 0x21)
	witnessScript = append(witnessScript, k1...)
	witnessScript = append(witnessScript, 0x21)
	witnessScript = append(witnessScript, k2...)
	witnessScript = append(witnessScript, 0x52) // OP_2
	witnessScript = append(witnessScript, 0xae) // OP_CHECKMULTISIG

	hash := sha256.Sum256(witnessScript)

	scriptPubKey := make([]byte, 0, 2+32)
	scriptPubKey = append(scriptPubKey, 0x00) // OP_0
	scriptPubKey = append(scriptPubKey, 0x20) // push 32 bytes
	scriptPubKey = append(scriptPubKey, hash[:]...)
	return scriptPubKey
}

// HandlePendingChannelAnnouncement implements 4.2.2: the chain oracle's
// answer to a previously returned SCID. Returns true iff either endpoint is
// the locally configured node.
func (g *AuthenticatedGossiper) HandlePendingChannelAnnouncement(scid lnwire.ShortChannelID, satoshis btcutil.Amount, outscript []byte) bool {
	id := scid.ToUint64()

	pc, ok := g.pending.getChannel(id)
	if !ok {
		return false
	}

	n1 := channeldb.NewNodeID(pc.ann.NodeID1.SerializeCompressed())
	n2 := channeldb.NewNodeID(pc.ann.NodeID2.SerializeCompressed())

	if len(outscript) == 0 {
		g.pending.resolveChannel(id, n1, n2)
		return false
	}

	expected := expectedFundingScript(pc.ann.BitcoinKey1, pc.ann.BitcoinKey2)
	if !bytes.Equal(outscript, expected) {
		g.pending.resolveChannel(id, n1, n2)
		return false
	}

	edge, ok := g.cfg.Graph.GetChannel(id)
	if !ok {
		edge = g.cfg.Graph.NewChannel(scid, n1, n2, time.Now())
	}
	edge.Public = true
	edge.Capacity = satoshis
	edge.AnnouncementBytes = pc.rawBytes

	g.broadcast(scidTag(scid), lnwire.MsgChannelAnnouncement, pc.rawBytes)

	resolved, bufferedNodes := g.pending.resolveChannel(id, n1, n2)
	if resolved != nil {
		for dir, upd := range resolved.updates {
			if upd == nil {
				continue
			}
			g.applyChannelUpdate(edge, dir, upd.upd, upd.rawBytes)
		}
	}
	for _, buffered := range bufferedNodes {
		g.applyNodeAnnouncement(buffered.ann, buffered.rawBytes)
	}

	return n1 == g.cfg.LocalNodeID || n2 == g.cfg.LocalNodeID
}

// scidTag renders a short channel ID as the broadcaster tag for its
// channel_announcement, per §6's "serialize SCIDs as 8-byte big-endian for
// broadcast tagging."
func scidTag(scid lnwire.ShortChannelID) string {
	v := scid.ToUint64()
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return string(b[:])
}

// HandleChannelUpdate implements 4.2.3.
func (g *AuthenticatedGossiper) HandleChannelUpdate(raw []byte) {
	msg, err := decodeMessage(raw)
	if err != nil {
		return
	}
	upd, ok := msg.(*lnwire.ChannelUpdate)
	if !ok {
		return
	}
	if upd.ChainHash != g.cfg.ChainHash {
		return
	}

	scid := upd.ShortChannelID.ToUint64()
	direction := upd.Direction()

	edge, known := g.cfg.Graph.GetChannel(scid)
	switch {
	case !known && g.pending.hasChannel(scid):
		g.pending.bufferUpdate(scid, direction, upd, raw)
		return
	case !known:
		return
	case !edge.Public:
		return
	}

	g.applyChannelUpdate(edge, direction, upd, raw)
}

// applyChannelUpdate performs the monotonicity check, signature
// verification, and policy write for one direction of a known, public
// channel.
func (g *AuthenticatedGossiper) applyChannelUpdate(edge *channeldb.ChannelEdgeInfo, direction int, upd *lnwire.ChannelUpdate, raw []byte) {
	half := edge.Half[direction]

	if upd.Timestamp <= half.LastTimestamp {
		return
	}

	senderKey := g.senderKeyFor(edge, direction)
	if err := validateChannelUpdateAnn(senderKey, upd); err != nil {
		log.Tracef("rejecting channel_update for %v dir %d: %v",
			upd.ShortChannelID, direction, err)
		return
	}

	half.BaseFee = upd.BaseFee
	half.ProportionalFee = upd.FeeProportionalMillionths
	half.Delay = upd.TimeLockDelta
	half.HtlcMinimumMsat = upd.HtlcMinimumMsat
	half.LastTimestamp = upd.Timestamp
	half.UnroutableUntil = time.Time{}
	half.Flags = upd.Flags
	half.Active = !upd.Disabled()
	if half.ProportionalFee >= 1<<24 {
		half.Active = false
	}
	half.UpdateBytes = raw

	g.broadcast(scidDirTag(edge.SCID, direction), lnwire.MsgChannelUpdate, raw)
}

// senderKeyFor resolves the public key that must have signed the update
// originating from edge's half-edge at the given direction index. The
// graph only stores the compressed NodeID bytes, so the point is
// reconstructed from them rather than looked up on the node record.
func (g *AuthenticatedGossiper) senderKeyFor(edge *channeldb.ChannelEdgeInfo, direction int) *btcec.PublicKey {
	id := edge.Endpoints[direction]
	key, err := btcec.ParsePubKey(id[:])
	if err != nil {
		return nil
	}
	return key
}

// scidDirTag renders a channel_update's broadcast tag: the SCID tag with a
// trailing u16 direction, per §6.
func scidDirTag(scid lnwire.ShortChannelID, direction int) string {
	tag := scidTag(scid)
	return tag + string([]byte{0, byte(direction)})
}

// HandleNodeAnnouncement implements 4.2.4.
func (g *AuthenticatedGossiper) HandleNodeAnnouncement(raw []byte) {
	msg, err := decodeMessage(raw)
	if err != nil {
		return
	}
	ann, ok := msg.(*lnwire.NodeAnnouncement)
	if !ok {
		return
	}

	if len(unknownEvenBits(ann.Features, g.cfg.KnownFeatures)) > 0 {
		return
	}
	if err := validateNodeAnn(ann); err != nil {
		log.Tracef("rejecting node_announcement: %v", err)
		return
	}

	id := channeldb.NewNodeID(ann.NodeID.SerializeCompressed())

	node, exists := g.cfg.Graph.GetNode(id)
	if !exists {
		if g.pending.bufferNodeAnn(id, ann, raw) {
			return
		}
		// No graph entry and no parking bucket: orphan, discard.
		return
	}

	if ann.Timestamp <= node.LastAnnouncementTimestamp {
		return
	}

	g.applyNodeAnnouncement(ann, raw)
}

// applyNodeAnnouncement writes a validated, non-stale node_announcement
// into the graph and broadcasts it. It assumes the node already exists in
// the graph (true for direct application, and for replay of buffered
// announcements after their channel has resolved).
func (g *AuthenticatedGossiper) applyNodeAnnouncement(ann *lnwire.NodeAnnouncement, raw []byte) {
	id := channeldb.NewNodeID(ann.NodeID.SerializeCompressed())
	node, ok := g.cfg.Graph.GetNode(id)
	if !ok {
		return
	}

	node.HaveNodeAnnouncement = true
	node.Alias = ann.Alias
	node.RGBColor = ann.RGBColor
	node.Addresses = ann.Addresses
	node.LastAnnouncementTimestamp = ann.Timestamp
	node.LastAnnouncementBytes = raw

	g.broadcast(string(ann.NodeID.SerializeCompressed()), lnwire.MsgNodeAnnouncement, raw)
}

// unknownEvenBits returns the unknown *even* bits set in fv, per the
// odd-is-optional convention: only even unknown bits are rejections.
func unknownEvenBits(fv *lnwire.RawFeatureVector, known map[uint16]struct{}) []uint16 {
	if fv == nil {
		return nil
	}
	return fv.UnknownEvenBits(known)
}
