package hdkey

import (
	"errors"
	"fmt"
)

// ErrDerivation matches every failure of the derivation pipeline.
var ErrDerivation = errors.New("hdkey: derivation failed")

// Per-step sentinels. A DeriveError matches exactly one of these.
var (
	ErrInvalidSeedLength = errors.New("hdkey: invalid seed length")
	ErrFromSeed          = errors.New("hdkey: root node from seed failed")
	ErrFingerprint       = errors.New("hdkey: root fingerprint failed")
	ErrDeriveChild       = errors.New("hdkey: hardened child derivation failed")
	ErrFillPublic        = errors.New("hdkey: public key fill failed")
	ErrSerialize         = errors.New("hdkey: public key serialization failed")
	ErrMnemonic          = errors.New("hdkey: mnemonic seed failed")
)

var (
	ErrUnsupportedCurve = errors.New("hdkey: unsupported curve")
	ErrUnknownNetwork   = errors.New("hdkey: unknown network")
)

// Step names a stage of seed-to-xpub derivation.
type Step int

const (
	StepSeedLength Step = iota
	StepFromSeed
	StepFingerprint
	StepDeriveChild
	StepFillPublic
	StepSerialize
	StepMnemonic
)

var stepNames = [...]string{
	StepSeedLength:  "seed length",
	StepFromSeed:    "from seed",
	StepFingerprint: "fingerprint",
	StepDeriveChild: "derive hardened child",
	StepFillPublic:  "fill public key",
	StepSerialize:   "serialize public",
	StepMnemonic:    "mnemonic seed",
}

var stepErrors = [...]error{
	StepSeedLength:  ErrInvalidSeedLength,
	StepFromSeed:    ErrFromSeed,
	StepFingerprint: ErrFingerprint,
	StepDeriveChild: ErrDeriveChild,
	StepFillPublic:  ErrFillPublic,
	StepSerialize:   ErrSerialize,
	StepMnemonic:    ErrMnemonic,
}

func (s Step) String() string {
	if int(s) >= 0 && int(s) < len(stepNames) {
		return stepNames[s]
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// DeriveError records which derivation step failed and why.
type DeriveError struct {
	Step Step
	Err  error
}

func (e *DeriveError) Error() string {
	return fmt.Sprintf("hdkey: %s: %v", e.Step, e.Err)
}

func (e *DeriveError) Unwrap() error { return e.Err }

// Is matches ErrDerivation and the sentinel of the failed step.
func (e *DeriveError) Is(target error) bool {
	if target == ErrDerivation {
		return true
	}
	if int(e.Step) >= 0 && int(e.Step) < len(stepErrors) {
		return target == stepErrors[e.Step]
	}
	return false
}

func stepErr(step Step, err error) error {
	return &DeriveError{Step: step, Err: err}
}
