package storage

import (
	"errors"

	"github.com/OKaluzny/wallet-init/pkg/models"
)

var (
	// ErrWalletExists is returned by Put when a record with the same ID is
	// already stored. Records are write-once.
	ErrWalletExists = errors.New("wallet already exists")
	// ErrEmptyID is returned for records without an ID.
	ErrEmptyID = errors.New("wallet id is empty")
)

// WalletStore keeps the sealed output of completed initializations.
type WalletStore interface {
	// Get returns a previously stored wallet by ID, or nil if not found.
	Get(id string) (*models.WalletRecord, error)
	// Put stores a wallet record. It fails with ErrWalletExists if the ID
	// is taken.
	Put(rec *models.WalletRecord) error
	// List returns the IDs of all stored wallets.
	List() ([]string, error)
}
