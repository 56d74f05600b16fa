package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"greenplay-service/internal/app"
)

// NewRecomputeCmd rebuilds every user's totalPoints and per-game subtotals
// from the score and activity ledgers.
func NewRecomputeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild point totals and game subtotals from the ledgers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			rt, err := openRuntime(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			drifts, err := app.NewLedgerService(rt.store).Recompute(ctx)
			if err != nil {
				return err
			}
			for _, d := range drifts {
				log.WithFields(logrus.Fields{
					"user_id": d.UserID,
					"stored":  d.Stored,
					"ledger":  d.Ledger,
					"stats":   d.StatsRepaired,
				}).Warn("aggregates corrected")
			}
			log.WithField("corrected", len(drifts)).Info("recompute finished")
			return nil
		},
	}
}
