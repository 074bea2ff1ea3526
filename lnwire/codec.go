package lnwire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// writeElement serializes a single element into w using the minimal,
// big-endian wire encoding for its concrete type. It mirrors the
// element-at-a-time codec lnd's gossip messages are built from.
func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint8:
		if _, err := w.Write([]byte{e}); err != nil {
			return err
		}
	case uint16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], e)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	case uint32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], e)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	case uint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], e)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	case ShortChannelID:
		return writeElement(w, e.ToUint64())
	case MilliSatoshi:
		return writeElement(w, uint64(e))
	case chainhash.Hash:
		if _, err := w.Write(e[:]); err != nil {
			return err
		}
	case RGB:
		if _, err := w.Write([]byte{e.Red, e.Green, e.Blue}); err != nil {
			return err
		}
	case Alias:
		if _, err := w.Write(e.data[:]); err != nil {
			return err
		}
	case *btcec.PublicKey:
		if e == nil {
			var empty [33]byte
			_, err := w.Write(empty[:])
			return err
		}
		if _, err := w.Write(e.SerializeCompressed()); err != nil {
			return err
		}
	case *ecdsa.Signature:
		var raw []byte
		if e != nil {
			raw = e.Serialize()
		}
		if len(raw) > 72 {
			return fmt.Errorf("signature too long to encode: %d bytes",
				len(raw))
		}
		if err := writeElement(w, uint8(len(raw))); err != nil {
			return err
		}
		if _, err := w.Write(raw); err != nil {
			return err
		}
	case *RawFeatureVector:
		raw := e.serialize()
		if err := writeElement(w, uint16(len(raw))); err != nil {
			return err
		}
		if _, err := w.Write(raw); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown type in writeElement: %T", e)
	}

	return nil
}

// writeElements serializes each element in order into w.
func writeElements(w io.Writer, elements ...interface{}) error {
	for _, e := range elements {
		if err := writeElement(w, e); err != nil {
			return err
		}
	}
	return nil
}

// readElement deserializes a single element from r into the target pointed
// to by element.
func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint8:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = b[0]
	case *uint16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint16(b[:])
	case *uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint32(b[:])
	case *uint64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint64(b[:])
	case *ShortChannelID:
		var v uint64
		if err := readElement(r, &v); err != nil {
			return err
		}
		*e = NewShortChanIDFromInt(v)
	case *MilliSatoshi:
		var v uint64
		if err := readElement(r, &v); err != nil {
			return err
		}
		*e = MilliSatoshi(v)
	case *chainhash.Hash:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return err
		}
	case *RGB:
		var b [3]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		e.Red, e.Green, e.Blue = b[0], b[1], b[2]
	case *Alias:
		if _, err := io.ReadFull(r, e.data[:]); err != nil {
			return err
		}
	case **btcec.PublicKey:
		var b [33]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		pub, err := btcec.ParsePubKey(b[:])
		if err != nil {
			return err
		}
		*e = pub
	case **ecdsa.Signature:
		var l uint8
		if err := readElement(r, &l); err != nil {
			return err
		}
		raw := make([]byte, l)
		if _, err := io.ReadFull(r, raw); err != nil {
			return err
		}
		if l == 0 {
			*e = nil
			return nil
		}
		sig, err := ecdsa.ParseDERSignature(raw)
		if err != nil {
			return err
		}
		*e = sig
	case **RawFeatureVector:
		var l uint16
		if err := readElement(r, &l); err != nil {
			return err
		}
		raw := make([]byte, l)
		if _, err := io.ReadFull(r, raw); err != nil {
			return err
		}
		*e = deserializeRawFeatureVector(raw)
	default:
		return fmt.Errorf("unknown type in readElement: %T", e)
	}

	return nil
}

// readElements deserializes each element in order from r.
func readElements(r io.Reader, elements ...interface{}) error {
	for _, e := range elements {
		if err := readElement(r, e); err != nil {
			return err
		}
	}
	return nil
}
