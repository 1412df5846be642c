package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/OKaluzny/wallet-init/pkg/models"
)

var walletBucket = []byte("wallets")

const defaultDBTimeout = 2 * time.Second

// BoltWalletStore persists wallet records in a bbolt database, one JSON
// document per wallet ID.
type BoltWalletStore struct {
	db *bolt.DB
}

// OpenBoltWalletStore opens (or creates) the database at path.
func OpenBoltWalletStore(path string) (*BoltWalletStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: defaultDBTimeout})
	if err != nil {
		return nil, fmt.Errorf("open wallet db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(walletBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create wallet bucket: %w", err)
	}
	return &BoltWalletStore{db: db}, nil
}

func (s *BoltWalletStore) Get(id string) (*models.WalletRecord, error) {
	var rec *models.WalletRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(walletBucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		rec = &models.WalletRecord{}
		return json.Unmarshal(raw, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("read wallet %q: %w", id, err)
	}
	return rec, nil
}

func (s *BoltWalletStore) Put(rec *models.WalletRecord) error {
	if rec.ID == "" {
		return ErrEmptyID
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode wallet %q: %w", rec.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(walletBucket)
		if b.Get([]byte(rec.ID)) != nil {
			return ErrWalletExists
		}
		return b.Put([]byte(rec.ID), raw)
	})
}

func (s *BoltWalletStore) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(walletBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

func (s *BoltWalletStore) Close() error {
	return s.db.Close()
}
