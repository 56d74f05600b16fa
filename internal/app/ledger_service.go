package app

import (
	"context"

	"greenplay-service/internal/domain"
)

// LedgerService rebuilds aggregates from the score and activity ledgers.
type LedgerService struct {
	store Store
}

func NewLedgerService(store Store) *LedgerService {
	return &LedgerService{store: store}
}

// Drift is a user whose stored aggregates disagreed with the ledger.
// Stored and Ledger are totalPoints; StatsRepaired marks rebuilt per-game
// counters.
type Drift struct {
	UserID        int64 `json:"userId"`
	Stored        int   `json:"stored"`
	Ledger        int   `json:"ledger"`
	StatsRepaired bool  `json:"statsRepaired,omitempty"`
}

// Recompute replays every user's ledger and overwrites totalPoints and the
// per-game subtotals where they drifted. Each user is fixed in its own
// transaction.
func (s *LedgerService) Recompute(ctx context.Context) ([]Drift, error) {
	ids, err := s.store.UserIDs(ctx)
	if err != nil {
		return nil, err
	}
	var drifts []Drift
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return drifts, err
		}
		var drift Drift
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			user, err := tx.LockUser(ctx, id)
			if err != nil {
				return err
			}
			stats, err := tx.LockStats(ctx, id)
			if err != nil {
				return err
			}
			total, err := tx.LedgerTotal(ctx, id)
			if err != nil {
				return err
			}
			tallies, err := tx.GameTallies(ctx, id)
			if err != nil {
				return err
			}

			drift = Drift{UserID: id, Stored: user.TotalPoints, Ledger: total}
			if total != user.TotalPoints {
				if err := tx.SetTotalPoints(ctx, id, total); err != nil {
					return err
				}
			}
			if rebuilt, changed := replayStats(stats, tallies); changed {
				drift.StatsRepaired = true
				return tx.SaveStats(ctx, rebuilt)
			}
			return nil
		})
		if err != nil && !domain.IsNotFound(err) {
			return drifts, err
		}
		if err == nil && (drift.Stored != drift.Ledger || drift.StatsRepaired) {
			drifts = append(drifts, drift)
		}
	}
	return drifts, nil
}

// replayStats overwrites the per-game counters with the ledger tallies and
// reports whether anything changed. Streak fields are left alone.
func replayStats(stats domain.UserStats, tallies map[domain.GameType]GameTally) (domain.UserStats, bool) {
	out := stats.Clone()
	changed := false
	for _, g := range domain.GameTypes {
		t := tallies[g]
		if out.GamesPlayed[g] != t.Games || out.Points[g] != t.Points {
			out.GamesPlayed[g] = t.Games
			out.Points[g] = t.Points
			changed = true
		}
	}
	return out, changed
}
