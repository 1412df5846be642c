package wallet

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/OKaluzny/wallet-init/internal/hdkey"
	"github.com/OKaluzny/wallet-init/pkg/models"
)

// Seed layout per deployment mode.
const (
	ProductionSeedBytes = 64
	// DevelopmentEntropyBytes is stretched to a 64-byte seed via BIP-39.
	DevelopmentEntropyBytes = hdkey.DevEntropyBytes
)

// MasterSeedBytes is the length of the seed handed to the deriver and
// sealer in every mode.
const MasterSeedBytes = 64

// Dependencies are the collaborators an Initializer sequences.
type Dependencies struct {
	Entropy EntropySource
	Mixer   Mixer
	Deriver KeyDeriver
	Sealer  Sealer
	// Observer is optional.
	Observer Observer
	// DevDisplay receives the mnemonic of development wallets.
	// Defaults to stderr; ignored in production.
	DevDisplay io.Writer
}

type seedLayout struct {
	entropyLen int
	mnemonic   bool
}

func layoutFor(mode models.DeploymentMode) (seedLayout, error) {
	switch mode {
	case models.ModeProduction:
		return seedLayout{entropyLen: ProductionSeedBytes}, nil
	case models.ModeDevelopment:
		return seedLayout{entropyLen: DevelopmentEntropyBytes, mnemonic: true}, nil
	default:
		return seedLayout{}, fmt.Errorf("unsupported deployment mode %s", mode)
	}
}

// Initializer creates wallets: hardware entropy, mixed with host entropy,
// becomes the master seed; the seed's account-root xpub is derived; both
// are sealed. Nothing else leaves Init.
type Initializer struct {
	deps   Dependencies
	mode   models.DeploymentMode
	layout seedLayout
	logger *slog.Logger
}

// NewInitializer binds the deployment mode once; it never changes per call.
func NewInitializer(mode models.DeploymentMode, deps Dependencies) (*Initializer, error) {
	if deps.Entropy == nil || deps.Mixer == nil || deps.Deriver == nil || deps.Sealer == nil {
		return nil, errors.New("wallet: entropy, mixer, deriver and sealer are required")
	}
	layout, err := layoutFor(mode)
	if err != nil {
		return nil, err
	}
	if sl, ok := deps.Deriver.(interface{ SeedLen() int }); ok && sl.SeedLen() != MasterSeedBytes {
		return nil, fmt.Errorf("wallet: deriver expects %d-byte seeds, want %d", sl.SeedLen(), MasterSeedBytes)
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.DevDisplay == nil {
		deps.DevDisplay = os.Stderr
	}
	return &Initializer{
		deps:   deps,
		mode:   mode,
		layout: layout,
		logger: slog.Default().With("component", "wallet_init", "mode", mode.String()),
	}, nil
}

// Mode returns the deployment mode the Initializer was built for.
func (i *Initializer) Mode() models.DeploymentMode {
	return i.mode
}

// EntropySize is the exact host entropy length Init expects.
func (i *Initializer) EntropySize() int {
	return i.layout.entropyLen
}

// Init runs one initialization. The first failing step aborts the run and
// its error is returned as is. The seed is wiped on every return path and
// no envelope is returned unless both were produced.
func (i *Initializer) Init(req models.InitRequest) (*models.InitResult, error) {
	r := run{init: i, state: StateStart}
	i.logger.Info("initializing wallet", "network", req.Network)

	if _, err := hdkey.ParamsFor(req.Network); err != nil {
		return nil, r.fail(err)
	}

	buf := make([]byte, i.layout.entropyLen)
	defer clear(buf)

	if err := i.deps.Entropy.GenerateRandom(buf); err != nil {
		return nil, r.fail(err)
	}
	r.advance(StateEntropyFetched)

	if err := i.deps.Mixer.Mix(buf, req.HostEntropy); err != nil {
		return nil, r.fail(err)
	}
	r.advance(StateEntropyMixed)

	seed := buf
	if i.layout.mnemonic {
		mnemonic, stretched, err := hdkey.MnemonicSeed(buf)
		if err != nil {
			return nil, r.fail(err)
		}
		defer clear(stretched)
		fmt.Fprintf(i.deps.DevDisplay, "development wallet mnemonic (never fund this wallet): %s\n", mnemonic)
		seed = stretched
		r.advance(StateMnemonicDerived)
	}

	xpub, err := i.deps.Deriver.Derive(seed, req.Network)
	if err != nil {
		return nil, r.fail(err)
	}
	r.advance(StateKeyDerived)

	sealedSeed, err := i.deps.Sealer.Seal(models.PurposeMasterSeed, seed)
	if err != nil {
		return nil, r.fail(err)
	}
	r.advance(StateSeedSealed)

	pubKey := []byte(xpub.Serialized)
	defer clear(pubKey)
	sealedPubKey, err := i.deps.Sealer.Seal(models.PurposePubKey, pubKey)
	if err != nil {
		return nil, r.fail(err)
	}
	r.advance(StateKeySealed)

	r.advance(StateDone)
	i.logger.Info("wallet initialized",
		"network", req.Network,
		"root_fingerprint", fmt.Sprintf("%08x", xpub.RootFingerprint),
		"key_id", sealedSeed.KeyID,
	)
	return &models.InitResult{
		EncryptedMasterSeed: sealedSeed,
		EncryptedPubKey:     sealedPubKey,
	}, nil
}

// run tracks the state of a single Init call.
type run struct {
	init  *Initializer
	state State
}

func (r *run) advance(to State) {
	r.init.deps.Observer.Transition(r.state, to, nil)
	r.init.logger.Debug("state transition", "from", r.state, "to", to)
	r.state = to
}

func (r *run) fail(err error) error {
	r.init.deps.Observer.Transition(r.state, StateFailed, err)
	r.init.logger.Error("wallet initialization failed", "state", r.state, "error", err)
	r.state = StateFailed
	return err
}
