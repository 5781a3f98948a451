package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/guided-traffic/secret-cipher/internal/config"
	"github.com/guided-traffic/secret-cipher/internal/theme"
)

// openThemeStore resolves the starting theme from the preference file, then
// the configured system preference.
func openThemeStore(cfg *config.Config) (*theme.Store, theme.Storage, error) {
	path, err := cfg.ThemeFile()
	if err != nil {
		return nil, nil, err
	}
	storage := theme.NewFileStorage(path)

	prefersDark := func() bool { return cfg.Theme.SystemPreference == string(theme.Dark) }
	return theme.NewStore(theme.Resolve(storage, prefersDark)), storage, nil
}

// persistChanges subscribes the file storage and a change log to store.
func persistChanges(store *theme.Store, storage theme.Storage) error {
	if _, err := store.Subscribe(theme.Persist(storage)); err != nil {
		return err
	}
	_, err := store.Subscribe(func(t theme.Theme) error {
		logrus.WithField("component", "theme").WithField("theme", t).Debug("Theme changed")
		return nil
	})
	return err
}

func newThemeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Read or change the persisted light/dark preference",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, _, err := openThemeStore(cfg)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), store.Get())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set <light|dark>",
		Short:     "Set and persist the theme",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(theme.Light), string(theme.Dark)},
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := theme.Parse(args[0])
			if err != nil {
				printHint(cmd.ErrOrStderr(), "Use %s or %s", code("light"), code("dark"))
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, storage, err := openThemeStore(cfg)
			if err != nil {
				return err
			}
			if err := persistChanges(store, storage); err != nil {
				return err
			}
			if err := store.Set(t); err != nil {
				return err
			}

			printSuccess(cmd.OutOrStdout(), "Theme set to %s", store.Get())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle",
		Short: "Switch between light and dark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, storage, err := openThemeStore(cfg)
			if err != nil {
				return err
			}
			if err := persistChanges(store, storage); err != nil {
				return err
			}

			t, err := store.Toggle()
			if err != nil {
				return err
			}

			printSuccess(cmd.OutOrStdout(), "Theme set to %s", t)
			return nil
		},
	})

	return cmd
}
