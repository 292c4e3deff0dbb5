package main

import (
	"fmt"

	"figlens/internal/config"
	"figlens/internal/store"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored Figma access token",
		Long: `The access token lives in the settings database, not the config file.
While no token is stored, comment lookups are skipped without any network traffic.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [token]",
		Short: "Store a personal access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := openSettings()
			if err != nil {
				return err
			}
			defer settings.Close()
			if err := settings.SaveToken(cmd.Context(), args[0]); err != nil {
				return err
			}
			logger.Info("token saved")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := openSettings()
			if err != nil {
				return err
			}
			defer settings.Close()
			token, err := settings.Token(cmd.Context())
			if err != nil {
				return err
			}
			if token == "" {
				return fmt.Errorf("no token stored")
			}
			fmt.Println(token)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := openSettings()
			if err != nil {
				return err
			}
			defer settings.Close()
			if err := settings.ClearToken(cmd.Context()); err != nil {
				return err
			}
			logger.Info("token cleared")
			return nil
		},
	})

	return cmd
}

// openSettings opens the settings database at the configured location,
// falling back to defaults when no config file exists yet.
func openSettings() (*store.SQLiteStore, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		cfg = config.Defaults()
	}
	return store.NewSQLiteStore(cfg.DBPath(), logger)
}
