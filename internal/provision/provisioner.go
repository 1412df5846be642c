// Package provision runs wallet initialization on behalf of host callers:
// one wallet per ID, retried on hardware transport failures and persisted
// once sealed.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/OKaluzny/wallet-init/internal/hsm"
	"github.com/OKaluzny/wallet-init/internal/storage"
	"github.com/OKaluzny/wallet-init/pkg/models"
)

// ErrNetworkConflict is returned when a wallet ID is reused for a different
// network.
var ErrNetworkConflict = errors.New("wallet id already provisioned for another network")

// Initializer is the device-side protocol the provisioner drives.
type Initializer interface {
	Init(req models.InitRequest) (*models.InitResult, error)
	Mode() models.DeploymentMode
}

// Config holds the retry policy.
type Config struct {
	MaxAttempts   int
	RetryInterval time.Duration
}

// DefaultConfig retries three times starting at half a second.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		RetryInterval: 500 * time.Millisecond,
	}
}

// Request asks for one wallet.
type Request struct {
	WalletID    string
	Network     models.Network
	HostEntropy []byte
}

// Provisioner creates wallets idempotently.
type Provisioner struct {
	mu          sync.Mutex
	initializer Initializer
	store       storage.WalletStore
	clock       clock.Clock
	logger      *slog.Logger
	cfg         Config
}

// NewProvisioner creates a provisioner. A nil clock uses the wall clock.
func NewProvisioner(cfg Config, initializer Initializer, store storage.WalletStore, clk clock.Clock) *Provisioner {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Provisioner{
		initializer: initializer,
		store:       store,
		clock:       clk,
		logger:      slog.Default().With("component", "provisioner"),
		cfg:         cfg,
	}
}

// Provision returns the wallet stored under req.WalletID, running the
// initialization first if no such wallet exists yet.
func (p *Provisioner) Provision(ctx context.Context, req Request) (*models.WalletRecord, error) {
	if req.WalletID == "" {
		return nil, storage.ErrEmptyID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.lookup(req)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		p.logger.Info("duplicate request, returning existing wallet",
			"wallet_id", req.WalletID,
			"created_at", existing.CreatedAt,
		)
		return existing, nil
	}

	result, err := p.initWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("provision wallet %q: %w", req.WalletID, err)
	}

	rec := &models.WalletRecord{
		ID:                  req.WalletID,
		Network:             req.Network,
		Mode:                p.initializer.Mode().String(),
		EncryptedMasterSeed: result.EncryptedMasterSeed,
		EncryptedPubKey:     result.EncryptedPubKey,
		CreatedAt:           p.clock.Now().UTC(),
	}
	if err := p.store.Put(rec); err != nil {
		return nil, fmt.Errorf("wallet store put: %w", err)
	}

	p.logger.Info("wallet provisioned",
		"wallet_id", rec.ID,
		"network", rec.Network,
		"mode", rec.Mode,
		"key_id", rec.EncryptedMasterSeed.KeyID,
	)
	return rec, nil
}

func (p *Provisioner) lookup(req Request) (*models.WalletRecord, error) {
	existing, err := p.store.Get(req.WalletID)
	if err != nil {
		return nil, fmt.Errorf("wallet store get: %w", err)
	}
	if existing != nil && existing.Network != req.Network {
		return nil, fmt.Errorf("wallet %q on %s: %w", req.WalletID, existing.Network, ErrNetworkConflict)
	}
	return existing, nil
}

// initWithRetry repeats the whole initialization when the hardware link
// failed. Any other failure, including a closed session, ends the call.
func (p *Provisioner) initWithRetry(ctx context.Context, req Request) (*models.InitResult, error) {
	initReq := models.InitRequest{
		HostEntropy: req.HostEntropy,
		Network:     req.Network,
	}

	var result *models.InitResult
	attempt := 0
	op := func() error {
		attempt++
		res, err := p.initializer.Init(initReq)
		if err == nil {
			result = res
			return nil
		}
		if errors.Is(err, hsm.ErrTransactFailed) && !errors.Is(err, hsm.ErrSessionClosed) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.RetryInterval
	policy := backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(p.cfg.MaxAttempts-1)),
		ctx,
	)

	notify := func(err error, next time.Duration) {
		p.logger.Warn("initialization attempt failed",
			"wallet_id", req.WalletID,
			"attempt", attempt,
			"max_attempts", p.cfg.MaxAttempts,
			"retry_in", next,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return result, nil
}
