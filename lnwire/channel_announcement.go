package lnwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ChannelAnnouncement announces the existence of a channel between two
// nodes, binding the channel's funding output (identified by ShortChannelID)
// to the two nodes' identity keys and the two bitcoin keys used in the
// funding output's 2-of-2 multisig script. Four signatures, one from each of
// the four keys, attest to the announcement.
type ChannelAnnouncement struct {
	NodeSig1    *ecdsa.Signature
	NodeSig2    *ecdsa.Signature
	BitcoinSig1 *ecdsa.Signature
	BitcoinSig2 *ecdsa.Signature

	// Features is the feature bitfield advertised for this channel.
	Features *RawFeatureVector

	// ChainHash denotes the genesis hash of the chain this channel was
	// opened within.
	ChainHash chainhash.Hash

	// ShortChannelID identifies the channel's funding output.
	ShortChannelID ShortChannelID

	NodeID1     *btcec.PublicKey
	NodeID2     *btcec.PublicKey
	BitcoinKey1 *btcec.PublicKey
	BitcoinKey2 *btcec.PublicKey
}

var _ Message = (*ChannelAnnouncement)(nil)

// DataToSign returns the serialization of every field the four signatures
// attest to (everything but the signatures themselves).
func (a *ChannelAnnouncement) DataToSign() ([]byte, error) {
	var w bytes.Buffer
	err := writeElements(&w,
		a.Features,
		a.ChainHash,
		a.ShortChannelID,
		a.NodeID1,
		a.NodeID2,
		a.BitcoinKey1,
		a.BitcoinKey2,
	)
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Decode deserializes a ChannelAnnouncement from r.
func (a *ChannelAnnouncement) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&a.NodeSig1,
		&a.NodeSig2,
		&a.BitcoinSig1,
		&a.BitcoinSig2,
		&a.Features,
		&a.ChainHash,
		&a.ShortChannelID,
		&a.NodeID1,
		&a.NodeID2,
		&a.BitcoinKey1,
		&a.BitcoinKey2,
	)
}

// Encode serializes the ChannelAnnouncement into w.
func (a *ChannelAnnouncement) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		a.NodeSig1,
		a.NodeSig2,
		a.BitcoinSig1,
		a.BitcoinSig2,
		a.Features,
		a.ChainHash,
		a.ShortChannelID,
		a.NodeID1,
		a.NodeID2,
		a.BitcoinKey1,
		a.BitcoinKey2,
	)
}

// MsgType returns the message's type.
func (a *ChannelAnnouncement) MsgType() MessageType {
	return MsgChannelAnnouncement
}

// MaxPayloadLength returns the maximum allowed payload size for this
// message.
func (a *ChannelAnnouncement) MaxPayloadLength(pver uint32) uint32 {
	return 8192
}
