package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/playperu/questhunt/internal/quest"
)

type ReconcileReport struct {
	Attempted int
	Resolved  int
	Failed    int
	Parked    int
}

// Reconcile replays up to limit pending credits through the ledger. Event
// keys make a replay of an already applied credit a no-op.
func (e *Engine) Reconcile(ctx context.Context, limit int) (ReconcileReport, error) {
	var report ReconcileReport
	if e.pending == nil {
		return report, nil
	}

	credits, err := e.pending.ListPendingCredits(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("listing pending credits: %w", err)
	}

	for _, c := range credits {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Attempted++

		if err := e.replay(ctx, c); err != nil {
			if e.hopeless(c, err) {
				report.Parked++
				e.logger.Error("parking pending credit",
					"id", c.ID, "kind", string(c.Kind), "player_id", c.PlayerID, "team_id", c.TeamID,
					"attempts", c.Attempts+1, "error", err)
				if err := e.pending.ParkPendingCredit(ctx, c.ID, err.Error()); err != nil {
					return report, fmt.Errorf("parking pending credit %d: %w", c.ID, err)
				}
				continue
			}
			report.Failed++
			e.logger.Warn("pending credit still failing",
				"id", c.ID, "kind", string(c.Kind), "player_id", c.PlayerID,
				"attempts", c.Attempts+1, "error", err)
			if err := e.pending.MarkPendingAttempt(ctx, c.ID, err.Error()); err != nil {
				return report, fmt.Errorf("marking pending credit %d: %w", c.ID, err)
			}
			continue
		}

		if err := e.pending.ResolvePendingCredit(ctx, c.ID); err != nil {
			return report, fmt.Errorf("resolving pending credit %d: %w", c.ID, err)
		}
		report.Resolved++
	}

	if report.Attempted > 0 {
		e.logger.Info("reconciled pending credits",
			"attempted", report.Attempted, "resolved", report.Resolved,
			"failed", report.Failed, "parked", report.Parked)
	}
	return report, nil
}

// hopeless reports whether a failed credit should leave the retry queue.
// Team IDs are never reused, so a bonus for a deleted team cannot land. A
// missing profile may still be created and is retried until the cap.
func (e *Engine) hopeless(c quest.PendingCredit, err error) bool {
	if c.Attempts+1 >= e.cfg.MaxPendingAttempts {
		return true
	}
	return c.Kind == quest.CreditTeamBonus && errors.Is(err, quest.ErrTeamNotFound)
}

func (e *Engine) replay(ctx context.Context, c quest.PendingCredit) error {
	switch c.Kind {
	case quest.CreditXP:
		return e.ledger.CreditXP(ctx, c.PlayerID, c.Amount, c.EventKey)
	case quest.CreditCoins:
		return e.ledger.CreditCoins(ctx, c.PlayerID, c.Amount, c.EventKey)
	case quest.CreditTeamBonus:
		// The bonus goes to the roster at replay time. The row only exists
		// when the roster could not be read at completion.
		members, err := e.teams.TeamMembers(ctx, c.TeamID)
		if err != nil {
			return err
		}
		// Members whose credit fails get their own pending entry.
		e.creditMembers(ctx, c.QuestID, c.TeamID, members, c.Amount)
		return nil
	}
	return fmt.Errorf("unknown credit kind %q", c.Kind)
}
