package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"figlens/internal/config"
	"figlens/internal/serialize"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your FigLens installation",
		Long: `Verifies that FigLens's configuration, data directory, database, and
ports are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("FigLens Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'figlens init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}

			// 3. Data directory exists
			if info, err := os.Stat(cfg.General.DataDir); err != nil {
				printWarn("Data dir", fmt.Sprintf("not found: %s (created on first serve)", cfg.General.DataDir))
				warned++
			} else if !info.IsDir() {
				printFail("Data dir", fmt.Sprintf("not a directory: %s", cfg.General.DataDir))
				failed++
			} else {
				printPass("Data dir", cfg.General.DataDir)
				passed++
			}

			// 4. Database writable
			if err := checkDatabase(cfg.DBPath()); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", cfg.DBPath())
				passed++
			}

			// 5. Token stored
			if hasToken() {
				printPass("Figma token", "stored")
				passed++
			} else {
				printWarn("Figma token", "not stored (comment lookups disabled; run 'figlens token set')")
				warned++
			}

			// 6. Bridge port
			if err := checkPort(cfg.Bridge.Port); err != nil {
				printWarn("Bridge port", fmt.Sprintf("port %d may be in use: %v", cfg.Bridge.Port, err))
				warned++
			} else {
				printPass("Bridge port", fmt.Sprintf(":%d available", cfg.Bridge.Port))
				passed++
			}

			// 7. Panel port
			if cfg.Panel.Enabled {
				if err := checkPort(cfg.Panel.Port); err != nil {
					printWarn("Panel port", fmt.Sprintf("port %d may be in use: %v", cfg.Panel.Port, err))
					warned++
				} else {
					printPass("Panel port", fmt.Sprintf(":%d available", cfg.Panel.Port))
					passed++
				}
			}

			// 8. Category rules parse
			if cfg.Markup.RulesPath != "" {
				if _, err := serialize.LoadRules(cfg.Markup.RulesPath); err != nil {
					printFail("Category rules", err.Error())
					failed++
				} else {
					printPass("Category rules", cfg.Markup.RulesPath)
					passed++
				}
			}

			// 9. Chrome binary for previews
			if cfg.Preview.Enabled && cfg.Preview.ChromePath != "" {
				if _, err := os.Stat(cfg.Preview.ChromePath); err != nil {
					printFail("Chrome binary", fmt.Sprintf("not found: %s", cfg.Preview.ChromePath))
					failed++
				} else {
					printPass("Chrome binary", cfg.Preview.ChromePath)
					passed++
				}
			}

			// 10. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running FigLens.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nFigLens should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! FigLens is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func hasToken() bool {
	settings, err := openSettings()
	if err != nil {
		return false
	}
	defer settings.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	token, err := settings.Token(ctx)
	return err == nil && token != ""
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
