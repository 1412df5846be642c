package hdkey

import (
	"fmt"
	"log/slog"

	"github.com/OKaluzny/wallet-init/pkg/models"
)

// BIP-32 bounds on master seed length.
const (
	MinSeedBytes = 16
	MaxSeedBytes = 64
)

// ExtendedPublicKey is the serialized account-root public key of a wallet.
type ExtendedPublicKey struct {
	// Serialized is the base58check xpub/tpub string.
	Serialized string
	// RootFingerprint identifies the master node; it is also the parent
	// fingerprint embedded in Serialized.
	RootFingerprint uint32
	// ChildIndex is the unhardened index that was derived hardened.
	ChildIndex uint32
}

// Deriver turns a master seed into the extended public key of its hardened
// first-level child. Seed length and curve are fixed at construction.
type Deriver struct {
	lib     Library
	curve   string
	seedLen int
	logger  *slog.Logger
}

// NewDeriver returns a Deriver for seeds of exactly seedLen bytes.
func NewDeriver(lib Library, curve string, seedLen int) (*Deriver, error) {
	if lib == nil {
		lib = Bip32Library{}
	}
	if curve != CurveSecp256k1 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCurve, curve)
	}
	if seedLen < MinSeedBytes || seedLen > MaxSeedBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSeedLength, seedLen)
	}
	return &Deriver{
		lib:     lib,
		curve:   curve,
		seedLen: seedLen,
		logger:  slog.Default().With("component", "hd_deriver"),
	}, nil
}

// SeedLen is the seed length this Deriver accepts.
func (d *Deriver) SeedLen() int {
	return d.seedLen
}

// Derive computes m/coin' for the network and serializes its public key.
// The root fingerprint is taken before deriving so the serialized parent
// fingerprint is the master's.
func (d *Deriver) Derive(seed []byte, network models.Network) (*ExtendedPublicKey, error) {
	params, err := ParamsFor(network)
	if err != nil {
		return nil, err
	}
	if len(seed) != d.seedLen {
		return nil, stepErr(StepSeedLength, fmt.Errorf("got %d bytes, want %d", len(seed), d.seedLen))
	}

	root, err := d.lib.FromSeed(seed, d.curve)
	if err != nil {
		return nil, stepErr(StepFromSeed, err)
	}
	defer clear(root.Key)

	fingerprint, err := d.lib.Fingerprint(root)
	if err != nil {
		return nil, stepErr(StepFingerprint, err)
	}

	child, err := d.lib.DeriveHardened(root, params.CoinIndex)
	if err != nil {
		return nil, stepErr(StepDeriveChild, err)
	}
	defer clear(child.Key)

	pub, err := d.lib.FillPublic(child)
	if err != nil {
		return nil, stepErr(StepFillPublic, err)
	}

	serialized, err := d.lib.SerializePublic(pub, fingerprint, params.PubKeyVersion)
	if err != nil {
		return nil, stepErr(StepSerialize, err)
	}

	d.logger.Debug("derived account root",
		"network", network,
		"child_index", params.CoinIndex,
		"root_fingerprint", fmt.Sprintf("%08x", fingerprint),
	)

	return &ExtendedPublicKey{
		Serialized:      serialized,
		RootFingerprint: fingerprint,
		ChildIndex:      params.CoinIndex,
	}, nil
}
