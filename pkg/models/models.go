package models

import (
	"fmt"
	"time"
)

// Network selects the coin namespace and extended key version prefix.
type Network string

// Supported deployment networks.
const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// ParseNetwork converts a config or request string to a Network.
func ParseNetwork(s string) (Network, error) {
	switch Network(s) {
	case NetworkMainnet, NetworkTestnet:
		return Network(s), nil
	default:
		return "", fmt.Errorf("unknown network %q", s)
	}
}

// DeploymentMode selects the seed layout of an initialization.
// It is fixed per deployment, never chosen per request.
type DeploymentMode int

const (
	// ModeProduction draws a 64-byte master seed directly from mixed entropy.
	ModeProduction DeploymentMode = iota
	// ModeDevelopment draws 32 bytes of entropy, renders them as a BIP-39
	// mnemonic for debugging and derives the master seed from that mnemonic.
	ModeDevelopment
)

func (m DeploymentMode) String() string {
	switch m {
	case ModeProduction:
		return "production"
	case ModeDevelopment:
		return "development"
	default:
		return fmt.Sprintf("DeploymentMode(%d)", int(m))
	}
}

// ParseDeploymentMode converts a config string to a DeploymentMode.
func ParseDeploymentMode(s string) (DeploymentMode, error) {
	switch s {
	case "production", "prod":
		return ModeProduction, nil
	case "development", "dev":
		return ModeDevelopment, nil
	default:
		return 0, fmt.Errorf("unknown deployment mode %q", s)
	}
}

// Purpose binds a sealed envelope to the kind of secret inside it.
type Purpose string

// Envelope purposes.
const (
	PurposeMasterSeed Purpose = "master_seed"
	PurposePubKey     Purpose = "pub_key"
)

// SealedEnvelope is the only form in which wallet secrets leave the trust
// boundary. It is immutable once produced.
type SealedEnvelope struct {
	Version    uint8   `json:"version"`
	Purpose    Purpose `json:"purpose"`
	KeyID      string  `json:"key_id"`
	Nonce      []byte  `json:"nonce"`
	Ciphertext []byte  `json:"ciphertext"`
}

// InitRequest is what the host supplies for one wallet initialization.
type InitRequest struct {
	// HostEntropy must be exactly as long as the deployment's entropy size.
	HostEntropy []byte
	Network     Network
}

// InitResult holds the two envelopes produced by a successful initialization.
type InitResult struct {
	EncryptedMasterSeed *SealedEnvelope `json:"encrypted_master_seed"`
	EncryptedPubKey     *SealedEnvelope `json:"encrypted_pub_key"`
}

// WalletRecord is the host-side record persisted after initialization.
type WalletRecord struct {
	ID                  string          `json:"id"`
	Network             Network         `json:"network"`
	Mode                string          `json:"mode"`
	EncryptedMasterSeed *SealedEnvelope `json:"encrypted_master_seed"`
	EncryptedPubKey     *SealedEnvelope `json:"encrypted_pub_key"`
	CreatedAt           time.Time       `json:"created_at"`
}
