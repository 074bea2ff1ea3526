package lnwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ChanUpdateFlag bits carried in a ChannelUpdate's Flags field.
const (
	// ChanUpdateDirection is set when this update describes the edge
	// originating from endpoint index 1 rather than endpoint index 0.
	ChanUpdateDirection uint16 = 1 << 0

	// ChanUpdateDisabled marks the advertising node's outgoing half of
	// the channel as temporarily unavailable for routing.
	ChanUpdateDisabled uint16 = 1 << 1
)

// ChannelUpdate announces (or updates) the forwarding policy one endpoint of
// a channel applies to HTLCs it forwards outward along that channel.
type ChannelUpdate struct {
	// Signature authenticates the update under the sending node's
	// identity key.
	Signature *ecdsa.Signature

	// ChainHash denotes the genesis hash of the chain this channel was
	// opened within.
	ChainHash chainhash.Hash

	// ShortChannelID identifies the channel this update applies to.
	ShortChannelID ShortChannelID

	// Timestamp orders updates for the same (channel, direction); a
	// receiver drops any update whose timestamp does not strictly
	// increase on the last one applied.
	Timestamp uint32

	// Flags packs the direction bit and the disabled bit.
	Flags uint16

	// TimeLockDelta is the number of blocks this node subtracts from an
	// incoming HTLC's expiry to obtain the expiry it sets on the
	// corresponding outgoing HTLC.
	TimeLockDelta uint16

	// HtlcMinimumMsat is the smallest HTLC this node will forward along
	// this direction of the channel.
	HtlcMinimumMsat MilliSatoshi

	// BaseFee is charged for any HTLC forwarded, regardless of amount.
	BaseFee uint32

	// FeeProportionalMillionths is charged per forwarded HTLC amount, in
	// millionths.
	FeeProportionalMillionths uint32
}

var _ Message = (*ChannelUpdate)(nil)

// Direction returns the index (0 or 1) of the endpoint that originates the
// half-edge this update describes.
func (u *ChannelUpdate) Direction() int {
	if u.Flags&ChanUpdateDirection != 0 {
		return 1
	}
	return 0
}

// Disabled reports whether the sender has flagged its outgoing half of the
// channel as unavailable.
func (u *ChannelUpdate) Disabled() bool {
	return u.Flags&ChanUpdateDisabled != 0
}

// DataToSign returns the serialization of every field the signature attests
// to (everything but the signature itself).
func (u *ChannelUpdate) DataToSign() ([]byte, error) {
	var w bytes.Buffer
	err := writeElements(&w,
		u.ChainHash,
		u.ShortChannelID,
		u.Timestamp,
		u.Flags,
		u.TimeLockDelta,
		u.HtlcMinimumMsat,
		u.BaseFee,
		u.FeeProportionalMillionths,
	)
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Decode deserializes a ChannelUpdate from r.
func (u *ChannelUpdate) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&u.Signature,
		&u.ChainHash,
		&u.ShortChannelID,
		&u.Timestamp,
		&u.Flags,
		&u.TimeLockDelta,
		&u.HtlcMinimumMsat,
		&u.BaseFee,
		&u.FeeProportionalMillionths,
	)
}

// Encode serializes the ChannelUpdate into w.
func (u *ChannelUpdate) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		u.Signature,
		u.ChainHash,
		u.ShortChannelID,
		u.Timestamp,
		u.Flags,
		u.TimeLockDelta,
		u.HtlcMinimumMsat,
		u.BaseFee,
		u.FeeProportionalMillionths,
	)
}

// MsgType returns the message's type.
func (u *ChannelUpdate) MsgType() MessageType {
	return MsgChannelUpdate
}

// MaxPayloadLength returns the maximum allowed payload size for this
// message: a one-byte signature length plus a DER signature of at most 72
// bytes, followed by 64 bytes of fixed-size fields.
func (u *ChannelUpdate) MaxPayloadLength(pver uint32) uint32 {
	return 1 + 72 + 64
}
