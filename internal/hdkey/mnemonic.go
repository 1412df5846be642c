package hdkey

import (
	"github.com/tyler-smith/go-bip39"
)

// DevEntropyBytes is the entropy size of development wallets: 24 words.
const DevEntropyBytes = 32

// MnemonicSeed renders entropy as a BIP-39 mnemonic and returns it with the
// 64-byte seed it stretches to under an empty passphrase. Only development
// deployments use this; the mnemonic is a printable backdoor to the seed.
func MnemonicSeed(entropy []byte) (string, []byte, error) {
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, stepErr(StepMnemonic, err)
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return "", nil, stepErr(StepMnemonic, err)
	}
	return mnemonic, seed, nil
}
