package lnwire

import (
	"bytes"
	"io"
	"net"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// NodeAnnouncement is used to announce the presence of a Lightning node and
// to advertise the metadata other nodes use when displaying or connecting to
// it: its alias, color, supported features, and reachable addresses.
type NodeAnnouncement struct {
	// Signature is a signature over the announcement under NodeID,
	// authenticating the remaining fields.
	Signature *ecdsa.Signature

	// Features is the set of protocol features this node supports.
	Features *RawFeatureVector

	// Timestamp allows ordering of announcements for the same node;
	// later announcements must carry a strictly greater timestamp.
	Timestamp uint32

	// NodeID is the node's long-term identity public key.
	NodeID *btcec.PublicKey

	// RGBColor is the node's chosen display color.
	RGBColor RGB

	// Alias is the node's human-chosen display name.
	Alias Alias

	// Addresses are the network addresses the node accepts incoming
	// connections on, in announced order.
	Addresses []net.Addr
}

var _ Message = (*NodeAnnouncement)(nil)

// DataToSign returns the byte serialization of every field that the
// Signature attests to.
func (a *NodeAnnouncement) DataToSign() ([]byte, error) {
	var w bytes.Buffer
	if err := writeElements(&w,
		a.Features,
		a.Timestamp,
		a.NodeID,
		a.RGBColor,
		a.Alias,
	); err != nil {
		return nil, err
	}

	addrBytes, err := encodeAddresses(a.Addresses)
	if err != nil {
		return nil, err
	}
	if err := writeElements(&w, uint16(len(addrBytes))); err != nil {
		return nil, err
	}
	if _, err := w.Write(addrBytes); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

// Decode deserializes a serialized NodeAnnouncement from r.
func (a *NodeAnnouncement) Decode(r io.Reader, pver uint32) error {
	if err := readElements(r,
		&a.Signature,
		&a.Features,
		&a.Timestamp,
		&a.NodeID,
		&a.RGBColor,
		&a.Alias,
	); err != nil {
		return err
	}

	var addrLen uint16
	if err := readElement(r, &addrLen); err != nil {
		return err
	}
	raw := make([]byte, addrLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return err
	}
	addrs, err := decodeAddresses(raw)
	if err != nil {
		return err
	}
	a.Addresses = addrs

	return nil
}

// Encode serializes the NodeAnnouncement into w.
func (a *NodeAnnouncement) Encode(w io.Writer, pver uint32) error {
	if err := writeElements(w,
		a.Signature,
		a.Features,
		a.Timestamp,
		a.NodeID,
		a.RGBColor,
		a.Alias,
	); err != nil {
		return err
	}

	addrBytes, err := encodeAddresses(a.Addresses)
	if err != nil {
		return err
	}
	if err := writeElement(w, uint16(len(addrBytes))); err != nil {
		return err
	}
	_, err = w.Write(addrBytes)
	return err
}

// MsgType returns the message's type.
func (a *NodeAnnouncement) MsgType() MessageType {
	return MsgNodeAnnouncement
}

// MaxPayloadLength returns the maximum allowed payload size for this
// message, accounting for a generous address list.
func (a *NodeAnnouncement) MaxPayloadLength(pver uint32) uint32 {
	return 8192
}
