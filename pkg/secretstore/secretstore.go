// Package secretstore keeps the sponsor credential encrypted at rest.
// Encryption is provided by Badger options (value log + key registry), not
// by this wrapper.
package secretstore

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

const (
	keySponsorMnemonic   = "sponsor/mnemonic"
	keySponsorPrivateKey = "sponsor/private_key"
)

// Store is a small encrypted-at-rest KV wrapper around Badger, scoped to
// the credentials the sponsor flow needs.
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 32 bytes; if nil, DB is opened without encryption (not recommended)
	ReadOnly      bool
}

func Open(opts OpenOptions) (*Store, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("secretstore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// Badger requires an index cache for encrypted workloads.
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SponsorMnemonic returns the stored sponsor mnemonic, if any.
func (s *Store) SponsorMnemonic() (string, bool, error) {
	return s.getString(keySponsorMnemonic)
}

// SetSponsorMnemonic stores the sponsor mnemonic.
func (s *Store) SetSponsorMnemonic(mnemonic string) error {
	return s.setString(keySponsorMnemonic, strings.TrimSpace(mnemonic))
}

// SponsorPrivateKey returns the stored sponsor private key, if any.
func (s *Store) SponsorPrivateKey() (string, bool, error) {
	return s.getString(keySponsorPrivateKey)
}

// SetSponsorPrivateKey stores the sponsor private key.
func (s *Store) SetSponsorPrivateKey(key string) error {
	return s.setString(keySponsorPrivateKey, strings.TrimSpace(key))
}

func (s *Store) getString(key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("secretstore: not opened")
	}
	var (
		out   string
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return out, found, nil
}

func (s *Store) setString(key, val string) error {
	if s == nil || s.db == nil {
		return errors.New("secretstore: not opened")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(val))
	})
}

// ParseKey expects 32 bytes (base64 or hex). Returns nil if input is empty.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	rawHex := strings.TrimPrefix(raw, "0x")
	if b, err := hex.DecodeString(rawHex); err == nil {
		if len(b) == 32 {
			return b, nil
		}
		return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("key must be base64(32 bytes) or hex(32 bytes)")
}
