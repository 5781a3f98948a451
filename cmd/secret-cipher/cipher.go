package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guided-traffic/secret-cipher/pkg/secretcipher"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a base64 encoded AES-256 key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := newCipher(cfg)
			if err != nil {
				return err
			}

			key, err := c.GenerateKey(cmd.Context())
			if err != nil {
				return err
			}
			raw, err := key.Export()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(raw))
			return nil
		},
	}
}

func newEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [secret]",
		Short: "Encrypt a secret under a fresh key and print the bundle as JSON",
		Long: `Encrypt a secret under a freshly generated key. The secret is read from
standard input when no argument is given; a single trailing newline is
stripped. The output holds the IV, ciphertext and raw key; store the raw key
apart from the other two.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := newCipher(cfg)
			if err != nil {
				return err
			}

			secret, err := secretArg(cmd, args)
			if err != nil {
				return err
			}

			key, err := c.GenerateKey(cmd.Context())
			if err != nil {
				return err
			}
			bundle, err := c.Encrypt(cmd.Context(), secret, key)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(bundle)
		},
	}
}

func newDecryptCmd() *cobra.Command {
	var (
		ciphertext string
		iv         string
		rawKey     string
		bundlePath string
	)

	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a bundle and print the secret",
		Long: `Decrypt a secret from its base64 ciphertext, IV and raw key, given either
as flags or as a JSON bundle file (use "-" for standard input).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := newCipher(cfg)
			if err != nil {
				return err
			}

			bundle := &secretcipher.Bundle{IV: iv, Ciphertext: ciphertext, RawKey: rawKey}
			if bundlePath != "" {
				if bundle, err = readBundle(cmd, bundlePath); err != nil {
					return err
				}
			} else if ciphertext == "" || iv == "" || rawKey == "" {
				printHint(cmd.ErrOrStderr(), "Pass %s, %s and %s, or %s", code("--ciphertext"), code("--iv"), code("--key"), code("--bundle"))
				return errors.New("missing bundle fields")
			}

			secret, err := c.DecryptBundle(cmd.Context(), bundle)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}

	cmd.Flags().StringVar(&ciphertext, "ciphertext", "", "base64 ciphertext with the tag appended")
	cmd.Flags().StringVar(&iv, "iv", "", "base64 12-byte IV")
	cmd.Flags().StringVar(&rawKey, "key", "", "base64 32-byte raw key")
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "path to a JSON bundle, or - for standard input")
	cmd.MarkFlagsMutuallyExclusive("bundle", "ciphertext")
	cmd.MarkFlagsMutuallyExclusive("bundle", "iv")
	cmd.MarkFlagsMutuallyExclusive("bundle", "key")

	return cmd
}

// secretArg returns the positional secret, or standard input without its
// final newline.
func secretArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	data, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
	if err != nil {
		return "", fmt.Errorf("failed to read secret from stdin: %w", err)
	}
	s := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

func readBundle(cmd *cobra.Command, path string) (*secretcipher.Bundle, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open bundle: %w", err)
		}
		defer f.Close()
		r = f
	}

	var b secretcipher.Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: invalid bundle JSON: %w", secretcipher.ErrEncoding, err)
	}
	return &b, nil
}
