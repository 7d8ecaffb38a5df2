// Package engine tracks per-team discovery of clues and completion of
// quests, and pays out the rewards those transitions earn.
//
// Every decisive state change goes through one conditional write in the
// ProgressStore, so concurrent reports for the same (clue, team) or
// (quest, team) produce exactly one winner and exactly one reward.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/questhunt/internal/geo"
	"github.com/playperu/questhunt/internal/quest"
)

type Config struct {
	// ProximityRadius is the distance in meters within which a player
	// discovers a location clue.
	ProximityRadius float64
	// CompletionBonus is the coin amount every team member receives when
	// the team completes a quest.
	CompletionBonus int
	// MaxRetries bounds how often a conflicting conditional write is retried.
	MaxRetries int
	// BonusWorkers bounds concurrent ledger calls while paying a bonus.
	BonusWorkers int
	// MaxPendingAttempts is how often reconciliation replays a credit
	// before parking it.
	MaxPendingAttempts int
}

func DefaultConfig() Config {
	return Config{
		ProximityRadius: 50,
		CompletionBonus: 50,
		MaxRetries:      3,
		BonusWorkers:    4,

		MaxPendingAttempts: 10,
	}
}

type Engine struct {
	store   ProgressStore
	ledger  RewardLedger
	teams   TeamDirectory
	pending PendingCredits
	logger  *slog.Logger
	cfg     Config
}

// New wires the engine to its collaborators. pending may be nil, in which
// case failed credits are only logged.
func New(store ProgressStore, ledger RewardLedger, teams TeamDirectory, pending PendingCredits, logger *slog.Logger, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.ProximityRadius <= 0 {
		cfg.ProximityRadius = def.ProximityRadius
	}
	if cfg.CompletionBonus < 0 {
		cfg.CompletionBonus = 0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BonusWorkers <= 0 {
		cfg.BonusWorkers = def.BonusWorkers
	}
	if cfg.MaxPendingAttempts <= 0 {
		cfg.MaxPendingAttempts = def.MaxPendingAttempts
	}
	return &Engine{
		store:   store,
		ledger:  ledger,
		teams:   teams,
		pending: pending,
		logger:  logger,
		cfg:     cfg,
	}
}

type EvidenceKind int

const (
	EvidenceProximity EvidenceKind = iota + 1
	EvidencePuzzle
)

func (k EvidenceKind) String() string {
	switch k {
	case EvidenceProximity:
		return "proximity"
	case EvidencePuzzle:
		return "puzzle"
	}
	return "unknown"
}

// Evidence is what the caller offers as proof that a clue was satisfied.
// Puzzle answers are validated by the caller before reporting.
type Evidence struct {
	Kind     EvidenceKind
	Position geo.Point
}

func Proximity(p geo.Point) Evidence {
	return Evidence{Kind: EvidenceProximity, Position: p}
}

func PuzzleSolved() Evidence {
	return Evidence{Kind: EvidencePuzzle}
}

type DiscoveryResult struct {
	ClueID            int64
	QuestID           int64
	AlreadyDiscovered bool
	QuestNowComplete  bool
	XPAwarded         int
	// RewardErr is set when the XP credit failed after the discovery was
	// committed. It wraps quest.ErrRewardDeferred.
	RewardErr error
	// CompletionErr is set when evaluating the quest failed after the
	// discovery was committed. The next report or replay for the quest
	// re-runs the evaluation.
	CompletionErr error
}

// ReportClueEvent records that playerID, on teamID, satisfied clueID.
//
// Re-reporting an already discovered clue succeeds with AlreadyDiscovered
// set and no reward, whatever the evidence. Only the caller whose
// conditional write flips the clue is credited XP and drives the completion
// cascade; replays re-run the cascade, which is a no-op unless an earlier
// attempt failed part way. Once the clue is recorded as discovered, later
// failures are reported in the result and never as an error.
func (e *Engine) ReportClueEvent(ctx context.Context, clueID int64, playerID, teamID string, ev Evidence) (DiscoveryResult, error) {
	clue, err := e.store.GetClue(ctx, clueID)
	if err != nil {
		return DiscoveryResult{}, fmt.Errorf("loading clue %d: %w", clueID, err)
	}
	q, err := e.store.GetQuest(ctx, clue.QuestID)
	if err != nil {
		return DiscoveryResult{}, fmt.Errorf("loading quest %d: %w", clue.QuestID, err)
	}

	res := DiscoveryResult{ClueID: clue.ID, QuestID: q.ID}
	log := e.logger.With("clue_id", clue.ID, "quest_id", q.ID, "team_id", teamID, "player_id", playerID)

	cp, found, err := e.store.GetClueProgress(ctx, clueID, teamID)
	if err != nil {
		return res, fmt.Errorf("loading clue progress: %w", err)
	}
	if found && cp.Discovered {
		res.AlreadyDiscovered = true
		log.Debug("clue already discovered")
		e.cascade(ctx, log, &res, teamID, playerID)
		return res, nil
	}

	if err := e.checkEvidence(clue, ev); err != nil {
		return res, err
	}

	won := false
	err = e.retry(ctx, func() error {
		var err error
		won, err = e.store.CASSetClueDiscovered(ctx, clueID, teamID, playerID)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("marking clue %d discovered: %w", clueID, err)
	}
	if !won {
		res.AlreadyDiscovered = true
		log.Debug("clue discovered concurrently by a teammate")
		e.cascade(ctx, log, &res, teamID, playerID)
		return res, nil
	}

	log.Info("clue discovered", "evidence", ev.Kind.String())

	// The flip is durable; the follow-up must not be abandoned with the request.
	ctx = context.WithoutCancel(ctx)

	if q.RewardPoints > 0 {
		key := clueXPKey(clue.ID, teamID)
		if err := e.ledger.CreditXP(ctx, playerID, q.RewardPoints, key); err != nil {
			res.RewardErr = e.deferCredit(ctx, quest.PendingCredit{
				Kind:     quest.CreditXP,
				PlayerID: playerID,
				TeamID:   teamID,
				QuestID:  q.ID,
				Amount:   q.RewardPoints,
				EventKey: key,
			}, err)
		} else {
			res.XPAwarded = q.RewardPoints
		}
	}

	e.cascade(ctx, log, &res, teamID, playerID)
	return res, nil
}

// cascade evaluates completion of res.QuestID and records the outcome in res.
func (e *Engine) cascade(ctx context.Context, log *slog.Logger, res *DiscoveryResult, teamID, playerID string) {
	complete, err := e.EvaluateQuestCompletion(ctx, res.QuestID, teamID, playerID)
	if err != nil {
		log.Warn("quest evaluation failed after discovery, will retry on next report", "error", err)
		res.CompletionErr = fmt.Errorf("evaluating quest %d: %w", res.QuestID, err)
		return
	}
	res.QuestNowComplete = complete
}

func (e *Engine) checkEvidence(clue quest.Clue, ev Evidence) error {
	switch {
	case clue.Type == quest.ClueTypeLocation && ev.Kind == EvidenceProximity:
		if !geo.WithinRadius(clue.Target, ev.Position, e.cfg.ProximityRadius) {
			return fmt.Errorf("clue %d is %.0f m away: %w", clue.ID, geo.Distance(clue.Target, ev.Position), quest.ErrOutOfRange)
		}
		return nil
	case clue.Type.IsPuzzle() && ev.Kind == EvidencePuzzle:
		return nil
	}
	return fmt.Errorf("%s evidence for %s clue %d: %w", ev.Kind, clue.Type, clue.ID, quest.ErrEvidenceMismatch)
}

// EvaluateQuestCompletion completes questID for teamID if every clue of the
// quest is discovered, paying the completion bonus exactly once. It reports
// whether the quest is complete. A quest without clues is never completed.
func (e *Engine) EvaluateQuestCompletion(ctx context.Context, questID int64, teamID, playerID string) (bool, error) {
	if _, err := e.store.GetQuest(ctx, questID); err != nil {
		return false, fmt.Errorf("loading quest %d: %w", questID, err)
	}

	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		complete, again, err := e.evaluateOnce(ctx, questID, teamID, playerID)
		if errors.Is(err, quest.ErrStorageConflict) {
			again = true
		} else if err != nil {
			return false, err
		}
		if !again {
			return complete, nil
		}
		e.logger.Debug("quest progress changed concurrently, re-evaluating",
			"quest_id", questID, "team_id", teamID, "attempt", attempt+1)
	}
	return false, fmt.Errorf("completing quest %d for team %s: %w", questID, teamID, quest.ErrStorageConflict)
}

// evaluateOnce reads progress and attempts at most one status transition.
// again reports that the transition lost to a concurrent writer and the
// caller should re-read.
func (e *Engine) evaluateOnce(ctx context.Context, questID int64, teamID, playerID string) (complete, again bool, err error) {
	progress, found, err := e.store.GetQuestProgress(ctx, questID, teamID)
	if err != nil {
		return false, false, fmt.Errorf("loading quest progress: %w", err)
	}
	if !found {
		progress = quest.NotStarted(questID, teamID)
	}
	if progress.Status == quest.StatusCompleted {
		return true, false, nil
	}

	clues, err := e.store.ListCluesForQuest(ctx, questID)
	if err != nil {
		return false, false, fmt.Errorf("listing clues: %w", err)
	}
	if len(clues) == 0 {
		e.logger.Warn("quest has no clues and cannot be completed", "quest_id", questID, "team_id", teamID)
		return false, false, nil
	}

	rows, err := e.store.ListClueProgress(ctx, questID, teamID)
	if err != nil {
		return false, false, fmt.Errorf("listing clue progress: %w", err)
	}

	if !allDiscovered(clues, rows) {
		if progress.Status != quest.StatusNotStarted {
			return false, false, nil
		}
		ok, err := e.store.CASQuestStatus(ctx, questID, teamID, quest.StatusNotStarted, quest.StatusInProgress, playerID)
		if err != nil {
			return false, false, fmt.Errorf("starting quest: %w", err)
		}
		if ok {
			e.logger.Info("quest started", "quest_id", questID, "team_id", teamID, "player_id", playerID)
		}
		return false, !ok, nil
	}

	ok, err := e.store.CASQuestStatus(ctx, questID, teamID, progress.Status, quest.StatusCompleted, playerID)
	if err != nil {
		return false, false, fmt.Errorf("completing quest: %w", err)
	}
	if !ok {
		return false, true, nil
	}

	e.logger.Info("quest completed", "quest_id", questID, "team_id", teamID, "player_id", playerID)
	e.payCompletionBonus(context.WithoutCancel(ctx), questID, teamID)
	return true, false, nil
}

func allDiscovered(clues []quest.Clue, rows []quest.ClueProgress) bool {
	discovered := make(map[int64]bool, len(rows))
	for _, r := range rows {
		if r.Discovered {
			discovered[r.ClueID] = true
		}
	}
	for _, c := range clues {
		if !discovered[c.ID] {
			return false
		}
	}
	return true
}

func (e *Engine) payCompletionBonus(ctx context.Context, questID int64, teamID string) {
	if e.cfg.CompletionBonus == 0 {
		return
	}
	members, err := e.teams.TeamMembers(ctx, teamID)
	if err != nil {
		e.deferCredit(ctx, quest.PendingCredit{
			Kind:     quest.CreditTeamBonus,
			TeamID:   teamID,
			QuestID:  questID,
			Amount:   e.cfg.CompletionBonus,
			EventKey: bonusKey(questID, teamID),
		}, err)
		return
	}
	e.creditMembers(ctx, questID, teamID, members, e.cfg.CompletionBonus)
}

// creditMembers pays amount coins to every member. Failures are recorded
// per member and never abort the others. It returns the failure count.
func (e *Engine) creditMembers(ctx context.Context, questID int64, teamID string, members []string, amount int) int {
	key := bonusKey(questID, teamID)

	var g errgroup.Group
	g.SetLimit(e.cfg.BonusWorkers)
	var failed atomic.Int32

	for _, m := range members {
		g.Go(func() error {
			if err := e.ledger.CreditCoins(ctx, m, amount, key); err != nil {
				failed.Add(1)
				e.deferCredit(ctx, quest.PendingCredit{
					Kind:     quest.CreditCoins,
					PlayerID: m,
					TeamID:   teamID,
					QuestID:  questID,
					Amount:   amount,
					EventKey: key,
				}, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("completion bonus paid",
		"quest_id", questID, "team_id", teamID,
		"members", len(members), "failed", failed.Load(), "amount", amount)
	return int(failed.Load())
}

func (e *Engine) deferCredit(ctx context.Context, c quest.PendingCredit, cause error) error {
	e.logger.Error("reward credit failed",
		"kind", string(c.Kind), "player_id", c.PlayerID, "team_id", c.TeamID,
		"quest_id", c.QuestID, "amount", c.Amount, "event_key", c.EventKey, "error", cause)

	if e.pending != nil {
		c.LastError = cause.Error()
		if err := e.pending.AddPendingCredit(ctx, c); err != nil {
			e.logger.Error("recording pending credit", "event_key", c.EventKey, "error", err)
		}
	}
	return fmt.Errorf("%w: %w", quest.ErrRewardDeferred, cause)
}

// retry runs op until it stops failing with a storage conflict, at most
// MaxRetries times.
func (e *Engine) retry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if err = op(); !errors.Is(err, quest.ErrStorageConflict) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 5 * time.Millisecond):
		}
	}
	return err
}

func clueXPKey(clueID int64, teamID string) string {
	return fmt.Sprintf("xp:clue:%d:team:%s", clueID, teamID)
}

func bonusKey(questID int64, teamID string) string {
	return fmt.Sprintf("bonus:quest:%d:team:%s", questID, teamID)
}
