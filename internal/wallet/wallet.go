// Package wallet sequences the creation of a fresh wallet's secret material
// inside the trust boundary.
package wallet

import (
	"github.com/OKaluzny/wallet-init/internal/hdkey"
	"github.com/OKaluzny/wallet-init/pkg/models"
)

// EntropySource fills a buffer from the hardware RNG in one transaction.
type EntropySource interface {
	GenerateRandom(dst []byte) error
}

// Mixer folds host entropy into the seed buffer in place.
type Mixer interface {
	Mix(seed, hostEntropy []byte) error
}

// KeyDeriver derives the account-root extended public key from a seed.
type KeyDeriver interface {
	Derive(seed []byte, network models.Network) (*hdkey.ExtendedPublicKey, error)
}

// Sealer encrypts a secret for storage outside the trust boundary.
// The unsealing key never leaves the boundary.
type Sealer interface {
	Seal(purpose models.Purpose, plaintext []byte) (*models.SealedEnvelope, error)
}

// Observer is told about every state transition of an initialization.
// err is non-nil only for transitions into StateFailed.
type Observer interface {
	Transition(from, to State, err error)
}

type nopObserver struct{}

func (nopObserver) Transition(State, State, error) {}
