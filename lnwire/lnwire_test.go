package lnwire

import (
	"bytes"
	"net"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func randKey(t *testing.T) (*btcec.PrivateKey, *btcec.PublicKey) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv, priv.PubKey()
}

func TestShortChannelIDPackUnpack(t *testing.T) {
	scid := ShortChannelID{BlockHeight: 1, TxIndex: 2, TxPosition: 3}
	require.Equal(t, scid, NewShortChanIDFromInt(scid.ToUint64()))
	require.Equal(t, uint64(0x0000010000020003), scid.ToUint64())
}

func TestRawFeatureVectorUnknownEvenBits(t *testing.T) {
	fv := NewRawFeatureVector(1, 2, 5)
	known := map[uint16]struct{}{2: {}}

	unknown := fv.UnknownEvenBits(known)
	require.Equal(t, []uint16{}, append([]uint16{}, unknown...))

	fv.Set(8)
	unknown = fv.UnknownEvenBits(known)
	require.Equal(t, []uint16{8}, unknown)
}

func TestRawFeatureVectorSerializeRoundTrip(t *testing.T) {
	fv := NewRawFeatureVector(0, 3, 17)
	raw := fv.serialize()
	fv2 := deserializeRawFeatureVector(raw)

	for _, bit := range []uint16{0, 3, 17} {
		require.True(t, fv2.IsSet(bit))
	}
	require.False(t, fv2.IsSet(1))
}

func TestAddressListEncodeDecode(t *testing.T) {
	addrs := []net.Addr{
		&net.TCPAddr{IP: net.ParseIP("1.2.3.4").To4(), Port: 9735},
		&net.TCPAddr{IP: net.ParseIP("2001:db8::1"), Port: 9736},
		&OnionAddr{OnionService: "abcdefghijklmnop.onion", Port: 9737},
	}

	raw, err := encodeAddresses(addrs)
	require.NoError(t, err)

	decoded, err := decodeAddresses(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	require.Equal(t, addrs[2].(*OnionAddr).OnionService,
		decoded[2].(*OnionAddr).OnionService)
}

func TestAddressListUnknownTypeTerminates(t *testing.T) {
	raw, err := encodeAddresses([]net.Addr{
		&net.TCPAddr{IP: net.ParseIP("1.2.3.4").To4(), Port: 1},
	})
	require.NoError(t, err)

	// Append an unrecognized type byte with trailing garbage; parsing
	// must stop there without error and without consuming the garbage.
	raw = append(raw, 0xFF, 0x01, 0x02)

	decoded, err := decodeAddresses(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
}

func TestNodeAnnouncementEncodeDecode(t *testing.T) {
	_, pub := randKey(t)

	na := &NodeAnnouncement{
		Features:  NewRawFeatureVector(1, 3),
		Timestamp: 1234,
		NodeID:    pub,
		RGBColor:  RGB{Red: 1, Green: 2, Blue: 3},
		Alias:     NewAlias("alice"),
		Addresses: []net.Addr{
			&net.TCPAddr{IP: net.ParseIP("10.0.0.1").To4(), Port: 9735},
		},
	}

	data, err := na.DataToSign()
	require.NoError(t, err)
	hash := chainhash.DoubleHashB(data)

	priv, _ := randKey(t)
	na.Signature = ecdsa.Sign(priv, hash)

	var buf bytes.Buffer
	require.NoError(t, na.Encode(&buf, 0))

	na2 := &NodeAnnouncement{}
	require.NoError(t, na2.Decode(&buf, 0))

	require.Equal(t, na.Timestamp, na2.Timestamp)
	require.Equal(t, na.Alias, na2.Alias)
	require.Equal(t, na.RGBColor, na2.RGBColor)
	require.True(t, na.NodeID.IsEqual(na2.NodeID))
	require.Equal(t, len(na.Addresses), len(na2.Addresses))
	require.True(t, na2.Signature.Verify(hash, priv.PubKey()))
}

func TestChannelUpdateDirectionAndDisabled(t *testing.T) {
	u := &ChannelUpdate{Flags: ChanUpdateDirection}
	require.Equal(t, 1, u.Direction())
	require.False(t, u.Disabled())

	u.Flags |= ChanUpdateDisabled
	require.True(t, u.Disabled())
}

func TestChannelUpdateEncodeDecode(t *testing.T) {
	priv, pub := randKey(t)

	u := &ChannelUpdate{
		ChainHash:                 chainhash.Hash{1, 2, 3},
		ShortChannelID:            ShortChannelID{BlockHeight: 10, TxIndex: 1, TxPosition: 0},
		Timestamp:                 100,
		Flags:                     0,
		TimeLockDelta:             10,
		HtlcMinimumMsat:           1000,
		BaseFee:                   1000,
		FeeProportionalMillionths: 100,
	}

	data, err := u.DataToSign()
	require.NoError(t, err)
	hash := chainhash.DoubleHashB(data)
	u.Signature = ecdsa.Sign(priv, hash)

	var buf bytes.Buffer
	require.NoError(t, u.Encode(&buf, 0))

	u2 := &ChannelUpdate{}
	require.NoError(t, u2.Decode(&buf, 0))

	require.Equal(t, u.ShortChannelID, u2.ShortChannelID)
	require.Equal(t, u.BaseFee, u2.BaseFee)
	require.Equal(t, u.FeeProportionalMillionths, u2.FeeProportionalMillionths)
	require.True(t, u2.Signature.Verify(hash, pub))
}
