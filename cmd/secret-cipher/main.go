package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/guided-traffic/secret-cipher/internal/config"
	"github.com/guided-traffic/secret-cipher/internal/monitoring"
	"github.com/guided-traffic/secret-cipher/pkg/secretcipher"
)

var (
	// Build information injected at build time
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	cfgFile string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "secret-cipher",
		Short: "Secret Cipher encrypts secrets with AES-256-GCM",
		Long: `Secret Cipher encrypts opaque secret strings with AES-256-GCM under a
freshly generated 256-bit key and returns the IV, ciphertext and raw key as
base64 strings.

Bundles can be decrypted again with the same tool, served over HTTP with
"serve", or stored in the vault, which keeps the raw key in a key store
separate from the IV and ciphertext records.

Configuration is read from a YAML file (--config, or .secret-cipher.yaml in
the home directory, the working directory or ./config) and from environment
variables prefixed with SECRETCIPHER_.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to configuration file (YAML format)")

	root.AddCommand(
		newKeygenCmd(),
		newEncryptCmd(),
		newDecryptCmd(),
		newServeCmd(),
		newThemeCmd(),
		newVaultCmd(),
		newVersionCmd(),
	)
	return root
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	config.InitConfig(cfgFile)
}

// loadConfig loads the configuration and applies its logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetOutput(os.Stderr)

	return cfg, nil
}

// newCipher builds a Cipher on the configured engine, reporting to the
// monitoring registry.
func newCipher(cfg *config.Config) (*secretcipher.Cipher, error) {
	engine, err := secretcipher.EngineByName(cfg.Cipher.Engine)
	if err != nil {
		return nil, err
	}
	return secretcipher.New(
		secretcipher.WithEngine(engine),
		secretcipher.WithObserver(monitoring.ObserveCipher),
	), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "secret-cipher %s (commit %s, built %s)\n", version, commit, buildTime)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", failure, err)
		os.Exit(1)
	}
}
