package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfoster/retain/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		now := time.Now()

		agg := stats.New(cfg.LearnerID, st.States(), st.Cards(), st.Reviews(), time.Local)

		streak, err := agg.Streak(ctx, now)
		if err != nil {
			return fmt.Errorf("compute streak: %w", err)
		}
		today, err := agg.ReviewedToday(ctx, now)
		if err != nil {
			return fmt.Errorf("count today's reviews: %w", err)
		}
		fmt.Fprintf(out, "Streak: %d day(s)   Reviewed today: %d\n\n", streak, today)

		decks, err := st.Cards().Decks(ctx)
		if err != nil {
			return fmt.Errorf("list decks: %w", err)
		}
		if len(decks) == 0 {
			fmt.Fprintln(out, "No decks yet.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DECK\tCARDS\tNEW\tLEARNING\tREVIEW\tRELEARNING\tDUE\tMASTERY")
		for _, d := range decks {
			ds, err := agg.Deck(ctx, d.ID, now)
			if err != nil {
				return fmt.Errorf("stats for deck %s: %w", d.ID, err)
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%.0f%%\n",
				d.Name, ds.Total, ds.New, ds.Learning, ds.Review, ds.Relearning, ds.Due, ds.Ratio*100)
		}
		return w.Flush()
	},
}
