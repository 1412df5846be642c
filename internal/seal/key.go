package seal

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for passphrase-protected keys.
const (
	scryptN       = 1 << 15
	scryptR       = 8
	scryptP       = 1
	minSaltLength = 16
)

// KeyFromHex decodes a hex protection key.
func KeyFromHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		clear(key)
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}
	return key, nil
}

// KeyFromPassphrase stretches an operator passphrase into a protection key.
// The caller should clear passphrase after use.
func KeyFromPassphrase(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", ErrInvalidKey)
	}
	if len(salt) < minSaltLength {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes", ErrInvalidKey, minSaltLength)
	}
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
