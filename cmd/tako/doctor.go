package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"tako/internal/channel"
	"tako/internal/config"
	"tako/internal/provider"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the tako installation",
		Long: `Verifies that the configuration, lock store, outcome database,
generation backend and delivery channel are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("tako doctor v%s\n\n", version)

			var passed, failed, warned int
			pass := func(check, detail string) { printPass(check, detail); passed++ }
			fail := func(check, detail string) { printFail(check, detail); failed++ }
			warn := func(check, detail string) { printWarn(check, detail); warned++ }

			if _, err := os.Stat(cfgPath); err != nil {
				fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'tako init' to create a default configuration.\n")
				return nil
			}
			pass("Config file", cfgPath)

			cfg, err := config.Load(cfgPath)
			if err != nil {
				fail("Config validation", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			pass("Config validation", "valid")

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			// Lock store: open it the same way serve does.
			a := &app{cfg: cfg, logger: logger, factory: provider.NewFactory(cfg, logger)}
			if err := a.openLocks(ctx); err != nil {
				fail("Lock store", err.Error())
			} else if cfg.Lock.Backend == "memory" || cfg.Lock.Backend == "" {
				warn("Lock store", "memory (single instance only)")
			} else {
				pass("Lock store", cfg.Lock.Backend)
			}
			a.Close()

			if cfg.Outcomes.Enabled {
				dbPath := config.ExpandPath(cfg.Outcomes.DBPath)
				if err := checkDatabase(dbPath); err != nil {
					fail("Outcome database", err.Error())
				} else {
					pass("Outcome database", dbPath)
				}
			}

			if gen, err := a.factory.Generator(ctx); err != nil {
				fail("Generation", err.Error())
			} else if gen.Name() == "mock" {
				warn("Generation", "mock backend (scripted replies)")
			} else {
				pass("Generation", gen.Name())
			}

			if s, err := channel.NewSender(cfg.Delivery, logger); err != nil {
				fail("Delivery", err.Error())
			} else if s.Name() == "log" {
				warn("Delivery", "log backend (messages are not sent)")
			} else {
				pass("Delivery", s.Name())
			}

			if tg := cfg.Notify.Telegram; tg.Enabled {
				if _, err := channel.NewTelegramNotifier(channel.TelegramConfig{Token: tg.Token, ChatID: tg.ChatID, Logger: logger}); err != nil {
					fail("Telegram", err.Error())
				} else {
					pass("Telegram", strconv.FormatInt(tg.ChatID, 10))
				}
			}

			port := cfg.Server.Port
			if port == 0 {
				port = 8080
			}
			if err := checkPort(cfg.Server.Host, port); err != nil {
				warn("Webhook port", fmt.Sprintf("port %d may be in use: %v", port, err))
			} else {
				pass("Webhook port", fmt.Sprintf(":%d available", port))
			}

			fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")
	return nil
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return ln.Close()
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-18s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-18s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-18s %s\n", check, detail)
}
