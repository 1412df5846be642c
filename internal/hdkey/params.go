package hdkey

import (
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/OKaluzny/wallet-init/pkg/models"
)

// NetworkParams are the per-network constants of account-root derivation.
type NetworkParams struct {
	Network models.Network
	// CoinIndex is the unhardened index of the first-level child; it is
	// always derived hardened.
	CoinIndex uint32
	// PubKeyVersion is the 4-byte extended public key prefix.
	PubKeyVersion [4]byte
}

var networkParams = map[models.Network]NetworkParams{
	models.NetworkMainnet: {
		Network:       models.NetworkMainnet,
		CoinIndex:     0,
		PubKeyVersion: chaincfg.MainNetParams.HDPublicKeyID,
	},
	models.NetworkTestnet: {
		Network:       models.NetworkTestnet,
		CoinIndex:     1,
		PubKeyVersion: chaincfg.TestNet3Params.HDPublicKeyID,
	},
}

// ParamsFor returns the derivation parameters of a network.
func ParamsFor(network models.Network) (NetworkParams, error) {
	p, ok := networkParams[network]
	if !ok {
		return NetworkParams{}, ErrUnknownNetwork
	}
	return p, nil
}
