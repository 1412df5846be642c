// Package seal encrypts wallet secrets into envelopes that only the trust
// boundary holding the protection key can open.
package seal

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/OKaluzny/wallet-init/pkg/models"
)

// EnvelopeVersion is the envelope format produced by AEADSealer.
const EnvelopeVersion uint8 = 1

// KeySize is the protection key length in bytes.
const KeySize = chacha20poly1305.KeySize

var (
	ErrSealFailed         = errors.New("seal: sealing failed")
	ErrInvalidKey         = errors.New("seal: invalid protection key")
	ErrKeyMismatch        = errors.New("seal: envelope sealed under a different key")
	ErrPurposeMismatch    = errors.New("seal: envelope purpose mismatch")
	ErrUnsupportedVersion = errors.New("seal: unsupported envelope version")
	ErrEnvelopeCorrupt    = errors.New("seal: envelope authentication failed")
)

// SealError reports a failure to seal one secret.
type SealError struct {
	Purpose models.Purpose
	Err     error
}

func (e *SealError) Error() string {
	return fmt.Sprintf("seal %s: %v", e.Purpose, e.Err)
}

func (e *SealError) Unwrap() error { return e.Err }

// Is matches ErrSealFailed.
func (e *SealError) Is(target error) bool {
	return target == ErrSealFailed
}

// Sealer protects a plaintext for storage outside the trust boundary.
type Sealer interface {
	Seal(purpose models.Purpose, plaintext []byte) (*models.SealedEnvelope, error)
}

// AEADSealer seals with XChaCha20-Poly1305 under per-purpose subkeys of a
// single protection key.
type AEADSealer struct {
	key    []byte
	keyID  string
	rand   io.Reader
	logger *slog.Logger
}

// Option configures an AEADSealer.
type Option func(*AEADSealer)

// WithRand sets the nonce source. Defaults to crypto/rand.
func WithRand(r io.Reader) Option {
	return func(s *AEADSealer) { s.rand = r }
}

// NewAEADSealer copies key and returns a sealer bound to it.
func NewAEADSealer(key []byte, opts ...Option) (*AEADSealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}
	s := &AEADSealer{
		key:    append([]byte(nil), key...),
		keyID:  KeyID(key),
		rand:   rand.Reader,
		logger: slog.Default().With("component", "sealer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// KeyID names a protection key without revealing it.
func KeyID(key []byte) string {
	sum := blake2b.Sum256(key)
	return hex.EncodeToString(sum[:8])
}

// KeyID returns the id of the sealer's protection key.
func (s *AEADSealer) KeyID() string {
	return s.keyID
}

// Seal encrypts plaintext into a fresh envelope.
func (s *AEADSealer) Seal(purpose models.Purpose, plaintext []byte) (*models.SealedEnvelope, error) {
	aead, err := s.aead(purpose)
	if err != nil {
		return nil, &SealError{Purpose: purpose, Err: err}
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(s.rand, nonce); err != nil {
		return nil, &SealError{Purpose: purpose, Err: fmt.Errorf("nonce: %w", err)}
	}

	env := &models.SealedEnvelope{
		Version: EnvelopeVersion,
		Purpose: purpose,
		KeyID:   s.keyID,
		Nonce:   nonce,
	}
	env.Ciphertext = aead.Seal(nil, nonce, plaintext, additionalData(env))

	s.logger.Debug("sealed", "purpose", purpose, "key_id", s.keyID, "size", len(plaintext))
	return env, nil
}

// Unseal opens an envelope sealed under the same protection key. It only
// makes sense inside the trust boundary.
func (s *AEADSealer) Unseal(purpose models.Purpose, env *models.SealedEnvelope) ([]byte, error) {
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if env.Purpose != purpose {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrPurposeMismatch, env.Purpose, purpose)
	}
	if subtle.ConstantTimeCompare([]byte(env.KeyID), []byte(s.keyID)) != 1 {
		return nil, ErrKeyMismatch
	}

	aead, err := s.aead(purpose)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrEnvelopeCorrupt
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, additionalData(env))
	if err != nil {
		return nil, ErrEnvelopeCorrupt
	}
	return plaintext, nil
}

func (s *AEADSealer) aead(purpose models.Purpose) (cipher.AEAD, error) {
	if purpose == "" {
		return nil, errors.New("empty purpose")
	}
	subkey := make([]byte, KeySize)
	defer clear(subkey)

	kdf := hkdf.New(sha256.New, s.key, nil, []byte("wallet-init/seal/"+string(purpose)))
	if _, err := io.ReadFull(kdf, subkey); err != nil {
		return nil, fmt.Errorf("derive subkey: %w", err)
	}
	return chacha20poly1305.NewX(subkey)
}

func additionalData(env *models.SealedEnvelope) []byte {
	ad := make([]byte, 0, 1+len(env.Purpose)+1+len(env.KeyID))
	ad = append(ad, env.Version)
	ad = append(ad, env.Purpose...)
	ad = append(ad, 0)
	ad = append(ad, env.KeyID...)
	return ad
}
