package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tako/internal/lock"
)

func lockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Operate the configured per-user lock store",
	}

	var ttl time.Duration
	acquire := &cobra.Command{
		Use:   "acquire [user]",
		Short: "Take the lock for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				ok, err := a.locks.Acquire(ctx, args[0], ttl)
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(cmd.OutOrStdout(), "acquired %s for %s\n", args[0], ttl)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is locked\n", args[0])
				}
				return nil
			})
		},
	}
	acquire.Flags().DurationVar(&ttl, "ttl", lock.DefaultTTL, "lock time to live")
	cmd.AddCommand(acquire)

	cmd.AddCommand(&cobra.Command{
		Use:   "release [user]",
		Short: "Delete the lock for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				a.locks.Release(ctx, args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Purge expired locks once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if a.purger == nil {
					return fmt.Errorf("lock backend %s expires records natively", a.cfg.Lock.Backend)
				}
				n, err := a.purger.PurgeExpired(ctx, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired lock(s)\n", n)
				return nil
			})
		},
	})

	return cmd
}

// withApp loads the config, builds the app and runs fn with it.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres lock schema",
	}

	dsn := func() (string, error) {
		cfg, err := loadConfig()
		if err != nil {
			return "", err
		}
		if cfg.Lock.PostgresDSN == "" {
			return "", fmt.Errorf("lock.postgresDsn is not set")
		}
		return cfg.Lock.PostgresDSN, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dsn()
			if err != nil {
				return err
			}
			v, err := lock.MigrateUp(d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dsn()
			if err != nil {
				return err
			}
			if err := lock.MigrateDown(d, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d step(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dsn()
			if err != nil {
				return err
			}
			v, dirty, ok, err := lock.SchemaVersion(d)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	})

	return cmd
}
