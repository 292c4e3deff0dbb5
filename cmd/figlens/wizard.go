package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"figlens/internal/config"
	"figlens/internal/store"

	"github.com/spf13/cobra"
)

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive setup: data dir → panel → access token → save config",
		Long:  "Guides you through the data directory, panel address, and Figma access token. Writes config to the path used by --config or default; the token goes into the settings database.",
		RunE:  runWizard,
	}
}

func runWizard(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Defaults()
	}

	reader := bufio.NewReader(os.Stdin)
	prompt := func(def string) (string, error) {
		if def != "" {
			fmt.Fprintf(os.Stdout, " [%s]: ", def)
		} else {
			fmt.Fprint(os.Stdout, ": ")
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		s := strings.TrimSpace(line)
		if s == "" && def != "" {
			return def, nil
		}
		return s, nil
	}

	// Step 1: Data directory
	fmt.Println("\n--- Step 1: Data directory ---")
	fmt.Fprint(os.Stdout, "Directory for the settings database and logs")
	dataDir, err := prompt(cfg.General.DataDir)
	if err != nil {
		return err
	}
	cfg.General.DataDir = config.ExpandPath(dataDir)
	if err := os.MkdirAll(cfg.General.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	fmt.Fprintf(os.Stdout, "  Using data dir: %s\n", cfg.General.DataDir)

	// Step 2: Panel
	fmt.Println("\n--- Step 2: Panel ---")
	fmt.Fprint(os.Stdout, "Enable the web panel? (y/n)")
	enable, err := prompt(yesNo(cfg.Panel.Enabled))
	if err != nil {
		return err
	}
	cfg.Panel.Enabled = enable == "y" || enable == "yes"
	if cfg.Panel.Enabled {
		fmt.Fprint(os.Stdout, "Panel port")
		portStr, err := prompt(strconv.Itoa(cfg.Panel.Port))
		if err != nil {
			return err
		}
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Panel.Port = port
		}
		fmt.Fprintf(os.Stdout, "  Panel on http://%s:%d\n", cfg.Panel.Host, cfg.Panel.Port)
	} else {
		fmt.Fprintln(os.Stdout, "  Panel disabled")
	}

	// Step 3: Access token
	fmt.Println("\n--- Step 3: Figma access token ---")
	fmt.Println("Without a token, comment lookups are skipped (no network calls).")
	fmt.Fprint(os.Stdout, "Personal access token (leave empty to skip)")
	token, err := prompt("")
	if err != nil {
		return err
	}
	if token != "" {
		settings, err := store.NewSQLiteStore(cfg.DBPath(), logger)
		if err != nil {
			return fmt.Errorf("settings store: %w", err)
		}
		if err := settings.SaveToken(cmd.Context(), token); err != nil {
			settings.Close()
			return fmt.Errorf("save token: %w", err)
		}
		settings.Close()
		fmt.Fprintln(os.Stdout, "  Token saved to settings database")
	} else {
		fmt.Fprintln(os.Stdout, "  Skipped (set later with 'figlens token set')")
	}

	// Save
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\nConfig saved to %s\n", cfgPath)
	fmt.Println("Next: run 'figlens serve' and connect the plugin.")
	return nil
}

func yesNo(v bool) string {
	if v {
		return "y"
	}
	return "n"
}
