package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"figlens/internal/config"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running daemon's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Warn("config not found, using defaults", "path", cfgPath)
				cfg = config.Defaults()
			}

			url := fmt.Sprintf("http://%s:%d/status", cfg.Panel.Host, cfg.Panel.Port)
			client := &http.Client{Timeout: 3 * time.Second}

			resp, err := client.Get(url)
			if err != nil {
				logger.Info("daemon not running", "url", url)
				return nil
			}
			defer resp.Body.Close()

			var status map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
			data, _ := json.MarshalIndent(status, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
}
