// Package entropy combines hardware randomness with host-supplied entropy.
package entropy

import (
	"crypto/subtle"
	"errors"
	"fmt"
)

var (
	ErrNoHostEntropy = errors.New("entropy: host entropy missing")
	ErrEntropySize   = errors.New("entropy: host entropy size mismatch")
)

// SizeError reports host entropy whose length differs from the seed buffer.
type SizeError struct {
	Want int
	Got  int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("entropy: host entropy is %d bytes, want %d", e.Got, e.Want)
}

// Is matches ErrEntropySize.
func (e *SizeError) Is(target error) bool {
	return target == ErrEntropySize
}

// Mixer folds host entropy into a seed buffer in place. The result must stay
// unpredictable as long as either input is.
type Mixer interface {
	Mix(seed, hostEntropy []byte) error
}

// XORMixer combines equal-length buffers with bytewise XOR. It keeps no state.
type XORMixer struct{}

// NewXORMixer returns an XORMixer.
func NewXORMixer() XORMixer {
	return XORMixer{}
}

// Mix XORs hostEntropy into seed. On error seed is left untouched.
func (XORMixer) Mix(seed, hostEntropy []byte) error {
	if len(hostEntropy) == 0 {
		return ErrNoHostEntropy
	}
	if len(hostEntropy) != len(seed) {
		return &SizeError{Want: len(seed), Got: len(hostEntropy)}
	}
	subtle.XORBytes(seed, seed, hostEntropy)
	return nil
}
