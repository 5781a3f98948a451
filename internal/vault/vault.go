// Package vault stores encrypted secrets with the raw key kept in a
// different store from the IV and ciphertext.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/guided-traffic/secret-cipher/internal/backend"
	"github.com/guided-traffic/secret-cipher/internal/keystore"
	"github.com/guided-traffic/secret-cipher/internal/monitoring"
	"github.com/guided-traffic/secret-cipher/pkg/secretcipher"
)

// ErrNotFound is returned when either half of a secret is missing.
var ErrNotFound = errors.New("secret not found")

// RecordStore persists IV and ciphertext. *backend.Client satisfies it.
type RecordStore interface {
	SaveRecord(ctx context.Context, rec backend.Record) error
	FetchRecord(ctx context.Context, id string) (*backend.Record, error)
	DeleteRecord(ctx context.Context, id string) error
}

// Vault ties the cipher to its two stores.
type Vault struct {
	records RecordStore
	keys    keystore.Store
	cipher  *secretcipher.Cipher
	logger  *logrus.Entry
	now     func() time.Time
	newID   func() string
}

// New creates a Vault.
func New(records RecordStore, keys keystore.Store, cipher *secretcipher.Cipher) *Vault {
	return &Vault{
		records: records,
		keys:    keys,
		cipher:  cipher,
		logger:  logrus.WithField("component", "vault"),
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Put encrypts secret under a fresh key and returns the new secret's ID.
func (v *Vault) Put(ctx context.Context, secret string) (id string, err error) {
	defer func() { monitoring.RecordVaultOperation("put", err) }()

	key, err := v.cipher.GenerateKey(ctx)
	if err != nil {
		return "", err
	}
	bundle, err := v.cipher.Encrypt(ctx, secret, key)
	if err != nil {
		return "", err
	}

	id = v.newID()
	rec := backend.Record{
		ID:         id,
		IV:         bundle.IV,
		Ciphertext: bundle.Ciphertext,
		Engine:     v.cipher.Engine(),
		CreatedAt:  v.now().UTC(),
	}
	if err := v.records.SaveRecord(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to store secret record: %w", err)
	}

	if err := v.keys.PutKey(ctx, id, bundle.RawKey); err != nil {
		// Without its key the record is unreadable, so remove it.
		if delErr := v.records.DeleteRecord(context.WithoutCancel(ctx), id); delErr != nil {
			v.logger.WithError(delErr).WithField("id", id).Error("Failed to remove orphaned secret record")
		}
		return "", fmt.Errorf("failed to store secret key: %w", err)
	}

	v.logger.WithFields(logrus.Fields{
		"id":     id,
		"engine": rec.Engine,
	}).Info("Stored secret")
	return id, nil
}

// Get fetches both halves of a secret and decrypts it.
func (v *Vault) Get(ctx context.Context, id string) (secret string, err error) {
	defer func() { monitoring.RecordVaultOperation("get", err) }()

	rec, err := v.records.FetchRecord(ctx, id)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", fmt.Errorf("failed to fetch secret record: %w", err)
	}

	rawKey, err := v.keys.GetKey(ctx, id)
	if err != nil {
		if errors.Is(err, keystore.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: %s (key missing)", ErrNotFound, id)
		}
		return "", fmt.Errorf("failed to fetch secret key: %w", err)
	}

	return v.cipher.Decrypt(ctx, rec.Ciphertext, rec.IV, rawKey)
}

// Delete removes the key first so a partial failure never leaves a
// decryptable secret behind.
func (v *Vault) Delete(ctx context.Context, id string) (err error) {
	defer func() { monitoring.RecordVaultOperation("delete", err) }()

	if err := v.keys.DeleteKey(ctx, id); err != nil {
		return fmt.Errorf("failed to delete secret key: %w", err)
	}
	if err := v.records.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("failed to delete secret record: %w", err)
	}

	v.logger.WithField("id", id).Info("Deleted secret")
	return nil
}
