package discovery

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"
	"github.com/go-errors/errors"
	"github.com/petrkovac/lightning/lnwire"
)

// verifySig reports whether sig is a valid signature over dataHash under
// pubKey.
func verifySig(sig *ecdsa.Signature, dataHash []byte, pubKey *btcec.PublicKey) bool {
	if sig == nil || pubKey == nil {
		return false
	}
	return sig.Verify(dataHash, pubKey)
}

// validateChannelAnn checks that both node signatures cover the
// announcement digest, and that both bitcoin signatures cover the same
// digest under the announced funding keys. All four must verify: a node
// attests to owning its identity key, and a bitcoin key attests to having
// contributed to the funding output, over the exact same bytes.
func validateChannelAnn(a *lnwire.ChannelAnnouncement) error {
	data, err := a.DataToSign()
	if err != nil {
		return err
	}
	dataHash := chainhash.DoubleHashB(data)

	if !verifySig(a.BitcoinSig1, dataHash, a.BitcoinKey1) {
		return errors.New("can't verify first bitcoin signature")
	}
	if !verifySig(a.BitcoinSig2, dataHash, a.BitcoinKey2) {
		return errors.New("can't verify second bitcoin signature")
	}
	if !verifySig(a.NodeSig1, dataHash, a.NodeID1) {
		return errors.New("can't verify data in first node signature")
	}
	if !verifySig(a.NodeSig2, dataHash, a.NodeID2) {
		return errors.New("can't verify data in second node signature")
	}

	return nil
}

// validateNodeAnn checks that the attached signature covers the
// announcement digest under the announced node identity key.
func validateNodeAnn(a *lnwire.NodeAnnouncement) error {
	data, err := a.DataToSign()
	if err != nil {
		return err
	}
	dataHash := chainhash.DoubleHashB(data)

	if !verifySig(a.Signature, dataHash, a.NodeID) {
		return errors.New("signature on node announcement is invalid")
	}

	return nil
}

// validateChannelUpdateAnn checks that the attached signature covers the
// update digest under the sending node's identity key.
func validateChannelUpdateAnn(pubKey *btcec.PublicKey, a *lnwire.ChannelUpdate) error {
	data, err := a.DataToSign()
	if err != nil {
		return errors.Errorf("unable to reconstruct message: %v", err)
	}
	dataHash := chainhash.DoubleHashB(data)

	if !verifySig(a.Signature, dataHash, pubKey) {
		return errors.Errorf("invalid signature for channel update %v",
			spew.Sdump(a))
	}

	return nil
}
