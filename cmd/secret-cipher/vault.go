package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guided-traffic/secret-cipher/internal/backend"
	"github.com/guided-traffic/secret-cipher/internal/config"
	"github.com/guided-traffic/secret-cipher/internal/keystore"
	"github.com/guided-traffic/secret-cipher/internal/vault"
	"github.com/guided-traffic/secret-cipher/pkg/secretcipher"
)

var (
	errNoVault        = errors.New("no secret backend is configured")
	errMemoryKeyStore = errors.New("the memory key store does not outlive a single command; use keystore.type s3")
)

// newKeyStore builds the configured key store.
func newKeyStore(ctx context.Context, cfg *config.Config) (keystore.Store, error) {
	switch cfg.KeyStore.Type {
	case "s3":
		return keystore.NewS3Store(ctx, keystore.S3Config{
			Bucket:         cfg.KeyStore.Bucket,
			Prefix:         cfg.KeyStore.Prefix,
			Endpoint:       cfg.KeyStore.Endpoint,
			Region:         cfg.KeyStore.Region,
			AccessKeyID:    cfg.KeyStore.AccessKeyID,
			SecretKey:      cfg.KeyStore.SecretKey,
			ForcePathStyle: cfg.KeyStore.ForcePathStyle,
		})
	default:
		return keystore.NewMemoryStore(), nil
	}
}

// newVault wires the backend client and key store. It returns nils without
// error when no backend URL is configured.
func newVault(ctx context.Context, cfg *config.Config, c *secretcipher.Cipher) (*vault.Vault, *backend.Client, error) {
	if !cfg.VaultEnabled() {
		return nil, nil, nil
	}

	records, err := backend.New(backend.Config{
		URL:     cfg.Backend.URL,
		AnonKey: cfg.Backend.AnonKey,
		Table:   cfg.Backend.Table,
		Timeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}

	keys, err := newKeyStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create key store: %w", err)
	}

	return vault.New(records, keys, c), records, nil
}

// vaultFromConfig loads the configuration and requires a vault whose keys
// persist between invocations. Memory-held keys only work inside serve.
func vaultFromConfig(cmd *cobra.Command) (*vault.Vault, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.VaultEnabled() {
		printHint(cmd.ErrOrStderr(), "Set %s and %s", code("backend.url"), code("backend.anon_key"))
		return nil, errNoVault
	}
	if cfg.KeyStore.Type == "memory" {
		printHint(cmd.ErrOrStderr(), "Set %s and %s", code("keystore.type: s3"), code("keystore.bucket"))
		return nil, errMemoryKeyStore
	}

	c, err := newCipher(cfg)
	if err != nil {
		return nil, err
	}

	v, _, err := newVault(cmd.Context(), cfg, c)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func newVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Store, read and delete secrets in the vault",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "put [secret]",
		Short: "Encrypt a secret and store it, printing its ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vaultFromConfig(cmd)
			if err != nil {
				return err
			}

			secret, err := secretArg(cmd, args)
			if err != nil {
				return err
			}

			id, err := v.Put(cmd.Context(), secret)
			if err != nil {
				return err
			}

			printSuccess(cmd.ErrOrStderr(), "Stored secret")
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Fetch and decrypt a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vaultFromConfig(cmd)
			if err != nil {
				return err
			}

			secret, err := v.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored secret and its key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vaultFromConfig(cmd)
			if err != nil {
				return err
			}

			if err := v.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			printSuccess(cmd.OutOrStdout(), "Deleted secret %s", args[0])
			return nil
		},
	})

	return cmd
}
