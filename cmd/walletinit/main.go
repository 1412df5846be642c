package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/OKaluzny/wallet-init/internal/config"
	"github.com/OKaluzny/wallet-init/internal/entropy"
	"github.com/OKaluzny/wallet-init/internal/hdkey"
	"github.com/OKaluzny/wallet-init/internal/hsm"
	"github.com/OKaluzny/wallet-init/internal/metrics"
	"github.com/OKaluzny/wallet-init/internal/provision"
	"github.com/OKaluzny/wallet-init/internal/seal"
	"github.com/OKaluzny/wallet-init/internal/storage"
	"github.com/OKaluzny/wallet-init/internal/wallet"
	"github.com/OKaluzny/wallet-init/pkg/models"
)

type options struct {
	WalletID    string `long:"wallet-id" description:"Identifier the sealed wallet is stored under" required:"true"`
	HostEntropy string `long:"host-entropy" description:"Hex host entropy; generated locally when empty"`
	Network     string `long:"network" description:"Overrides WALLET_NETWORK" choice:"mainnet" choice:"testnet"`
	ShowXpub    bool   `long:"show-xpub" description:"Unseal and print the account extended public key"`
	Verbose     bool   `short:"v" long:"verbose" description:"Log state transitions"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if err := run(opts); err != nil {
		slog.Error("wallet init failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if opts.Network != "" {
		cfg.Network = opts.Network
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	mode, _ := cfg.DeploymentMode()
	network, _ := cfg.ParsedNetwork()

	key, err := cfg.ProtectionKeyBytes()
	if err != nil {
		return err
	}
	sealer, err := seal.NewAEADSealer(key)
	clear(key)
	if err != nil {
		return err
	}

	deriver, err := hdkey.NewDeriver(nil, cfg.Curve, wallet.MasterSeedBytes)
	if err != nil {
		return err
	}

	session := hsm.Open(hsm.NewSoftModule(nil), nil)
	defer session.Close()

	reg := prometheus.NewRegistry()
	initializer, err := wallet.NewInitializer(mode, wallet.Dependencies{
		Entropy:    hsm.NewEntropySource(session),
		Mixer:      entropy.NewXORMixer(),
		Deriver:    deriver,
		Sealer:     sealer,
		Observer:   metrics.NewCollector(reg),
		DevDisplay: os.Stderr,
	})
	if err != nil {
		return err
	}

	store, err := storage.OpenBoltWalletStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	hostEntropy, err := loadHostEntropy(opts.HostEntropy, initializer.EntropySize())
	if err != nil {
		return err
	}
	defer clear(hostEntropy)

	p := provision.NewProvisioner(
		provision.Config{
			MaxAttempts:   cfg.InitMaxAttempts,
			RetryInterval: cfg.RetryInterval,
		},
		initializer,
		store,
		nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ContextTimeout)
	defer cancel()

	rec, err := p.Provision(ctx, provision.Request{
		WalletID:    opts.WalletID,
		Network:     network,
		HostEntropy: hostEntropy,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile, reg); err != nil {
			slog.Warn("metrics textfile export failed", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return err
	}

	if opts.ShowXpub {
		xpub, err := sealer.Unseal(models.PurposePubKey, rec.EncryptedPubKey)
		if err != nil {
			return fmt.Errorf("unseal public key: %w", err)
		}
		fmt.Println(string(xpub))
	}
	return nil
}

func loadHostEntropy(hexEntropy string, size int) ([]byte, error) {
	if hexEntropy == "" {
		buf := make([]byte, size)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate host entropy: %w", err)
		}
		return buf, nil
	}
	buf, err := hex.DecodeString(hexEntropy)
	if err != nil {
		return nil, fmt.Errorf("decode host entropy: %w", err)
	}
	if len(buf) != size {
		return nil, fmt.Errorf("host entropy must be %d bytes, got %d", size, len(buf))
	}
	return buf, nil
}
