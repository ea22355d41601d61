package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tako/internal/config"
	"tako/internal/domain"
	"tako/internal/outcome"
)

func outcomesCmd() *cobra.Command {
	var (
		limit  int
		user   string
		tier   string
		asJSON bool
		counts bool
	)
	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "List recorded dispatch outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Outcomes.Enabled {
				logger.Warn("outcomes.enabled is false; showing whatever was recorded earlier")
			}
			store, err := outcome.NewSQLiteStore(config.ExpandPath(cfg.Outcomes.DBPath), logger)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := context.Background()
			out := cmd.OutOrStdout()

			if counts {
				c, err := store.TierCounts(ctx)
				if err != nil {
					return err
				}
				for _, t := range []domain.Tier{domain.TierAutoSend, domain.TierHumanReview, domain.TierHumanOnly} {
					fmt.Fprintf(out, "%-13s %d\n", t, c[t])
				}
				return nil
			}

			list, err := store.List(ctx, outcome.ListFilter{UserID: user, Tier: domain.Tier(tier), Limit: limit})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tUSER\tINTENT\tTONE\tTIER\tCONF\tAGENT\tSENT")
			for _, o := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%t\n",
					o.CreatedAt.Format(time.DateTime), o.UserID, o.Intent, o.Tone, o.Tier, o.Confidence, o.Agent, o.FinalSent)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of outcomes")
	cmd.Flags().StringVar(&user, "user", "", "only outcomes for this user id")
	cmd.Flags().StringVar(&tier, "tier", "", "only outcomes with this escalation tier")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&counts, "counts", false, "print counts per tier")
	return cmd
}
