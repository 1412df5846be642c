// Package hdkey derives the account-root extended public key of a freshly
// generated master seed.
package hdkey

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/tyler-smith/go-bip32"
)

// CurveSecp256k1 is the only curve wallets are derived on.
const CurveSecp256k1 = "secp256k1"

// serializedKeyLen is version(4) depth(1) fingerprint(4) child(4)
// chaincode(32) key(33) checksum(4).
const serializedKeyLen = 82

// Library is the set of BIP-32 primitives the Deriver sequences.
type Library interface {
	FromSeed(seed []byte, curve string) (*bip32.Key, error)
	Fingerprint(node *bip32.Key) (uint32, error)
	DeriveHardened(node *bip32.Key, index uint32) (*bip32.Key, error)
	FillPublic(node *bip32.Key) (*bip32.Key, error)
	SerializePublic(node *bip32.Key, fingerprint uint32, version [4]byte) (string, error)
}

// Bip32Library implements Library on go-bip32.
type Bip32Library struct{}

// FromSeed builds the root node of the key tree.
func (Bip32Library) FromSeed(seed []byte, curve string) (*bip32.Key, error) {
	if curve != CurveSecp256k1 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCurve, curve)
	}
	return bip32.NewMasterKey(seed)
}

// Fingerprint returns the first four bytes of Hash160 of the node's
// compressed public key.
func (Bip32Library) Fingerprint(node *bip32.Key) (uint32, error) {
	pub, err := compressedPubKey(node)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(btcutil.Hash160(pub)[:4]), nil
}

// DeriveHardened derives the private child at index' of node.
func (Bip32Library) DeriveHardened(node *bip32.Key, index uint32) (*bip32.Key, error) {
	if !node.IsPrivate {
		return nil, bip32.ErrHardnedChildPublicKey
	}
	if index >= bip32.FirstHardenedChild {
		return nil, fmt.Errorf("index %d already hardened", index)
	}
	return node.NewChildKey(bip32.FirstHardenedChild + index)
}

// FillPublic returns the public counterpart of node.
func (Bip32Library) FillPublic(node *bip32.Key) (*bip32.Key, error) {
	pub := node.PublicKey()
	if len(pub.Key) != btcec.PubKeyBytesLenCompressed {
		return nil, bip32.ErrInvalidPublicKey
	}
	return pub, nil
}

// SerializePublic base58check-encodes a public node under the given version
// prefix, recording fingerprint as the parent fingerprint.
func (Bip32Library) SerializePublic(node *bip32.Key, fingerprint uint32, version [4]byte) (string, error) {
	if node.IsPrivate {
		return "", errors.New("refusing to serialize a private node")
	}

	out := *node
	out.Version = version[:]
	out.FingerPrint = binary.BigEndian.AppendUint32(nil, fingerprint)

	raw, err := out.Serialize()
	if err != nil {
		return "", err
	}
	if len(raw) != serializedKeyLen {
		return "", fmt.Errorf("serialized key is %d bytes, want %d", len(raw), serializedKeyLen)
	}
	return base58.Encode(raw), nil
}

func compressedPubKey(node *bip32.Key) ([]byte, error) {
	if !node.IsPrivate {
		if len(node.Key) != btcec.PubKeyBytesLenCompressed {
			return nil, bip32.ErrInvalidPublicKey
		}
		return node.Key, nil
	}
	if len(node.Key) == 0 || len(node.Key) > btcec.PrivKeyBytesLen {
		return nil, bip32.ErrInvalidPrivateKey
	}
	priv, pub := btcec.PrivKeyFromBytes(node.Key)
	defer priv.Zero()
	return pub.SerializeCompressed(), nil
}
