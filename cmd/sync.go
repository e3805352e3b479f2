package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfoster/retain/internal/remote"
	"github.com/jfoster/retain/internal/session"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Retry pending remote reconciliations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !cfg.RemoteEnabled() {
			return fmt.Errorf("no remote scheduler configured (set remote.base_url)")
		}
		log := newLogger(cfg)

		st, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		syncer := &session.Syncer{
			LearnerID: cfg.LearnerID,
			States:    st.States(),
			Pending:   st.Pending(),
			Remote:    remote.New(cfg.RemoteClientConfig(), log),
			Log:       log,
		}
		report, err := syncer.Run(cmd.Context(), limit)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Attempted %d: %d reconciled, %d dropped, %d still pending.\n",
			report.Attempted, report.Reconciled, report.Dropped, report.Failed)
		return nil
	},
}

func init() {
	syncCmd.Flags().Int("limit", 100, "Maximum pending reviews to retry in one pass")
}
