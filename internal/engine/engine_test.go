package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/playperu/questhunt/internal/engine"
	"github.com/playperu/questhunt/internal/geo"
	"github.com/playperu/questhunt/internal/memstore"
	"github.com/playperu/questhunt/internal/quest"
)

const teamID = "team-incas"

type fixture struct {
	store *memstore.Store
	eng   *engine.Engine
	quest quest.Quest
	clues []quest.Clue
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture builds a quest with the given clue types at increasing
// latitudes, and a two-member team whose profiles exist.
func newFixture(t *testing.T, types ...quest.ClueType) *fixture {
	t.Helper()
	st := memstore.New()

	clues := make([]quest.Clue, len(types))
	for i, typ := range types {
		clues[i] = quest.Clue{
			SequenceNumber: i + 1,
			Text:           "clue",
			Target:         geo.Point{Lat: float64(i), Lng: 0},
			Type:           typ,
		}
		switch typ {
		case quest.ClueTypeTextRiddle:
			clues[i].PuzzleData = "What has keys but no locks?|piano"
		case quest.ClueTypeMathSimple:
			clues[i].PuzzleData = "5|ADD|3|8"
		}
	}
	q, clues := st.AddQuest(quest.Quest{
		Title:        "Plaza de Armas",
		Difficulty:   2,
		RewardPoints: 10,
		Type:         quest.QuestTypeExplore,
	}, clues)

	st.AddProfile(quest.PlayerProfile{FirebaseUID: "alice", Username: "alice", Stamina: quest.DefaultStamina})
	st.AddProfile(quest.PlayerProfile{FirebaseUID: "bob", Username: "bob", Stamina: quest.DefaultStamina})
	st.AddTeam(quest.Team{ID: teamID, Name: "Incas", LeaderPlayerID: "alice", MemberIDs: []string{"bob"}})

	eng := engine.New(st, st, st, st, discardLogger(), engine.DefaultConfig())
	return &fixture{store: st, eng: eng, quest: q, clues: clues}
}

func (f *fixture) at(i int) engine.Evidence {
	return engine.Proximity(f.clues[i].Target)
}

func (f *fixture) status(t *testing.T) quest.Status {
	t.Helper()
	qp, found, err := f.store.GetQuestProgress(context.Background(), f.quest.ID, teamID)
	if err != nil {
		t.Fatalf("GetQuestProgress: %v", err)
	}
	if !found {
		return quest.StatusNotStarted
	}
	return qp.Status
}

func creditsOf(credits []memstore.Credit, kind quest.CreditKind) []memstore.Credit {
	var out []memstore.Credit
	for _, c := range credits {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func TestOutOfOrderCompletion(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation, quest.ClueTypeLocation)
	ctx := context.Background()

	res, err := f.eng.ReportClueEvent(ctx, f.clues[1].ID, "alice", teamID, f.at(1))
	if err != nil {
		t.Fatalf("report C2: %v", err)
	}
	if res.QuestNowComplete || res.AlreadyDiscovered {
		t.Fatalf("after C2: %+v", res)
	}
	if res.XPAwarded != f.quest.RewardPoints {
		t.Errorf("xp awarded = %d, want %d", res.XPAwarded, f.quest.RewardPoints)
	}
	if got := f.status(t); got != quest.StatusInProgress {
		t.Errorf("status after C2 = %s, want IN_PROGRESS", got)
	}

	next, ok, err := f.eng.NextUndiscoveredClue(ctx, f.quest.ID, teamID)
	if err != nil {
		t.Fatalf("NextUndiscoveredClue: %v", err)
	}
	if !ok || next.ID != f.clues[0].ID {
		t.Fatalf("next = %d (ok=%v), want %d", next.ID, ok, f.clues[0].ID)
	}

	res, err = f.eng.ReportClueEvent(ctx, f.clues[0].ID, "bob", teamID, f.at(0))
	if err != nil {
		t.Fatalf("report C1: %v", err)
	}
	if !res.QuestNowComplete {
		t.Fatalf("after C1: quest not complete: %+v", res)
	}
	if got := f.status(t); got != quest.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got)
	}

	for _, id := range []string{"alice", "bob"} {
		p, _ := f.store.Profile(id)
		if p.Coins != engine.DefaultConfig().CompletionBonus {
			t.Errorf("%s coins = %d, want %d", id, p.Coins, engine.DefaultConfig().CompletionBonus)
		}
		if p.IndividualXP != f.quest.RewardPoints {
			t.Errorf("%s xp = %d, want %d", id, p.IndividualXP, f.quest.RewardPoints)
		}
	}

	if _, ok, _ := f.eng.NextUndiscoveredClue(ctx, f.quest.ID, teamID); ok {
		t.Error("next clue reported after completion")
	}
}

func TestConcurrentDiscoveryCreditsOnce(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation, quest.ClueTypeLocation)
	ctx := context.Background()

	const reporters = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := range reporters {
		player := "alice"
		if i%2 == 1 {
			player = "bob"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.eng.ReportClueEvent(ctx, f.clues[0].ID, player, teamID, f.at(0))
			if err != nil {
				t.Errorf("report: %v", err)
				return
			}
			if !res.AlreadyDiscovered {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want 1", winners)
	}
	if xp := creditsOf(f.store.Credits(), quest.CreditXP); len(xp) != 1 {
		t.Errorf("xp credits = %d, want 1", len(xp))
	}
}

func TestConcurrentCompletionPaysBonusOnce(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation, quest.ClueTypeLocation, quest.ClueTypeLocation)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range f.clues {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.eng.ReportClueEvent(ctx, f.clues[i].ID, "alice", teamID, f.at(i)); err != nil {
				t.Errorf("report clue %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	if got := f.status(t); got != quest.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got)
	}
	if coins := creditsOf(f.store.Credits(), quest.CreditCoins); len(coins) != 2 {
		t.Errorf("bonus credits = %d, want 2 (one per member)", len(coins))
	}
}

func TestReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation, quest.ClueTypeLocation)
	ctx := context.Background()

	first, err := f.eng.ReportClueEvent(ctx, f.clues[0].ID, "alice", teamID, f.at(0))
	if err != nil {
		t.Fatalf("first report: %v", err)
	}
	if first.AlreadyDiscovered {
		t.Fatal("first report marked as replay")
	}

	replays := []struct {
		name string
		ev   engine.Evidence
	}{
		{"same spot", f.at(0)},
		{"far away", f.at(1)},
		{"puzzle evidence", engine.PuzzleSolved()},
	}
	for _, rp := range replays {
		res, err := f.eng.ReportClueEvent(ctx, f.clues[0].ID, "bob", teamID, rp.ev)
		if err != nil {
			t.Fatalf("replay %s: %v", rp.name, err)
		}
		if !res.AlreadyDiscovered || res.XPAwarded != 0 {
			t.Errorf("replay %s result = %+v", rp.name, res)
		}
	}

	cp, _, _ := f.store.GetClueProgress(ctx, f.clues[0].ID, teamID)
	if cp.DiscoveredBy != "alice" {
		t.Errorf("discovered by = %q, want alice", cp.DiscoveredBy)
	}
	if xp := creditsOf(f.store.Credits(), quest.CreditXP); len(xp) != 1 {
		t.Errorf("xp credits = %d, want 1", len(xp))
	}
}

func TestProgressIsPerTeam(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation)
	ctx := context.Background()
	f.store.AddProfile(quest.PlayerProfile{FirebaseUID: "carla"})
	f.store.AddTeam(quest.Team{ID: "team-moche", Name: "Moche", LeaderPlayerID: "carla"})

	if _, err := f.eng.ReportClueEvent(ctx, f.clues[0].ID, "alice", teamID, f.at(0)); err != nil {
		t.Fatalf("report: %v", err)
	}
	res, err := f.eng.ReportClueEvent(ctx, f.clues[0].ID, "carla", "team-moche", f.at(0))
	if err != nil {
		t.Fatalf("report other team: %v", err)
	}
	if res.AlreadyDiscovered {
		t.Error("discovery leaked across teams")
	}
}

func TestEvidenceChecks(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation, quest.ClueTypeMathSimple)
	ctx := context.Background()
	far := geo.Point{Lat: 10, Lng: 10}

	tests := []struct {
		name    string
		clue    int
		ev      engine.Evidence
		wantErr error
	}{
		{"location out of range", 0, engine.Proximity(far), quest.ErrOutOfRange},
		{"location with puzzle evidence", 0, engine.PuzzleSolved(), quest.ErrEvidenceMismatch},
		{"puzzle with proximity", 1, engine.Proximity(f.clues[1].Target), quest.ErrEvidenceMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.ReportClueEvent(ctx, f.clues[tt.clue].ID, "alice", teamID, tt.ev)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := f.status(t); got != quest.StatusNotStarted {
		t.Errorf("rejected evidence changed status to %s", got)
	}

	res, err := f.eng.ReportClueEvent(ctx, f.clues[1].ID, "alice", teamID, engine.PuzzleSolved())
	if err != nil {
		t.Fatalf("solved puzzle: %v", err)
	}
	if res.AlreadyDiscovered {
		t.Error("solved puzzle reported as replay")
	}
}

func TestUnknownClue(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation)
	_, err := f.eng.ReportClueEvent(context.Background(), 999, "alice", teamID, engine.PuzzleSolved())
	if !errors.Is(err, quest.ErrClueNotFound) {
		t.Fatalf("err = %v, want ErrClueNotFound", err)
	}
}

func TestZeroClueQuestNeverCompletes(t *testing.T) {
	st := memstore.New()
	q, _ := st.AddQuest(quest.Quest{Title: "empty", Type: quest.QuestTypeRiddle, Difficulty: 1}, nil)
	eng := engine.New(st, st, st, st, discardLogger(), engine.DefaultConfig())

	complete, err := eng.EvaluateQuestCompletion(context.Background(), q.ID, teamID, "alice")
	if err != nil {
		t.Fatalf("EvaluateQuestCompletion: %v", err)
	}
	if complete {
		t.Error("zero-clue quest completed")
	}
	if _, found, _ := st.GetQuestProgress(context.Background(), q.ID, teamID); found {
		t.Error("zero-clue quest left NOT_STARTED")
	}
}

func TestEvaluateUnknownQuest(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation)
	_, err := f.eng.EvaluateQuestCompletion(context.Background(), 404, teamID, "alice")
	if !errors.Is(err, quest.ErrQuestNotFound) {
		t.Fatalf("err = %v, want ErrQuestNotFound", err)
	}
}

func TestStatusNeverRegresses(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation)
	ctx := context.Background()

	if _, err := f.eng.ReportClueEvent(ctx, f.clues[0].ID, "alice", teamID, f.at(0)); err != nil {
		t.Fatalf("report: %v", err)
	}
	if got := f.status(t); got != quest.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got)
	}

	for _, to := range []quest.Status{quest.StatusNotStarted, quest.StatusInProgress} {
		ok, err := f.store.CASQuestStatus(ctx, f.quest.ID, teamID, quest.StatusCompleted, to, "bob")
		if err == nil && ok {
			t.Errorf("COMPLETED -> %s accepted", to)
		}
	}
	ok, err := f.store.CASQuestStatus(ctx, f.quest.ID, teamID, quest.StatusNotStarted, quest.StatusInProgress, "bob")
	if err != nil || ok {
		t.Errorf("stale NOT_STARTED CAS = %v, %v; want false, nil", ok, err)
	}

	complete, err := f.eng.EvaluateQuestCompletion(ctx, f.quest.ID, teamID, "bob")
	if err != nil || !complete {
		t.Errorf("re-evaluate = %v, %v; want true, nil", complete, err)
	}
	if coins := creditsOf(f.store.Credits(), quest.CreditCoins); len(coins) != 2 {
		t.Errorf("bonus credits = %d, want 2", len(coins))
	}
}

func TestMissingProfileDefersReward(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation, quest.ClueTypeLocation)
	ctx := context.Background()

	res, err := f.eng.ReportClueEvent(ctx, f.clues[0].ID, "ghost", teamID, f.at(0))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if res.AlreadyDiscovered {
		t.Fatal("discovery not committed")
	}
	if !errors.Is(res.RewardErr, quest.ErrRewardDeferred) || !errors.Is(res.RewardErr, quest.ErrProfileNotFound) {
		t.Fatalf("RewardErr = %v", res.RewardErr)
	}
	if quest.Classify(res.RewardErr) != quest.ClassDependentFailure {
		t.Errorf("class = %v, want DependentFailure", quest.Classify(res.RewardErr))
	}

	pending, _ := f.store.ListPendingCredits(ctx, 10)
	if len(pending) != 1 || pending[0].Kind != quest.CreditXP || pending[0].PlayerID != "ghost" {
		t.Fatalf("pending = %+v", pending)
	}

	report, err := f.eng.Reconcile(ctx, 10)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Failed != 1 || report.Resolved != 0 {
		t.Errorf("first reconcile = %+v", report)
	}
	pending, _ = f.store.ListPendingCredits(ctx, 10)
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("pending after failed replay = %+v", pending)
	}

	f.store.AddProfile(quest.PlayerProfile{FirebaseUID: "ghost"})
	report, err = f.eng.Reconcile(ctx, 10)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Resolved != 1 {
		t.Errorf("second reconcile = %+v", report)
	}
	if p, _ := f.store.Profile("ghost"); p.IndividualXP != f.quest.RewardPoints {
		t.Errorf("ghost xp = %d, want %d", p.IndividualXP, f.quest.RewardPoints)
	}

	// A second replay of the same event key is absorbed by the ledger.
	if _, err := f.eng.Reconcile(ctx, 10); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if xp := creditsOf(f.store.Credits(), quest.CreditXP); len(xp) != 1 {
		t.Errorf("xp credits = %d, want 1", len(xp))
	}
}

func TestMissingTeamDefersBonus(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation)
	ctx := context.Background()

	res, err := f.eng.ReportClueEvent(ctx, f.clues[0].ID, "alice", "team-gone", f.at(0))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !res.QuestNowComplete {
		t.Fatal("quest not complete")
	}
	pending, _ := f.store.ListPendingCredits(ctx, 10)
	if len(pending) != 1 || pending[0].Kind != quest.CreditTeamBonus {
		t.Fatalf("pending = %+v", pending)
	}

	f.store.AddTeam(quest.Team{ID: "team-gone", Name: "Gone", LeaderPlayerID: "bob"})
	report, err := f.eng.Reconcile(ctx, 10)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Resolved != 1 {
		t.Errorf("reconcile = %+v", report)
	}
	if p, _ := f.store.Profile("bob"); p.Coins != engine.DefaultConfig().CompletionBonus {
		t.Errorf("bob coins = %d", p.Coins)
	}
}

func TestQuestSnapshot(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation, quest.ClueTypeTextRiddle, quest.ClueTypeLocation)
	ctx := context.Background()

	if _, err := f.eng.ReportClueEvent(ctx, f.clues[1].ID, "bob", teamID, engine.PuzzleSolved()); err != nil {
		t.Fatalf("report: %v", err)
	}

	snap, err := f.eng.QuestSnapshot(ctx, f.quest.ID, teamID)
	if err != nil {
		t.Fatalf("QuestSnapshot: %v", err)
	}
	if snap.Progress.Status != quest.StatusInProgress {
		t.Errorf("status = %s", snap.Progress.Status)
	}
	if snap.Discovered != 1 || len(snap.Clues) != 3 {
		t.Errorf("discovered %d of %d", snap.Discovered, len(snap.Clues))
	}
	if !snap.Clues[1].Discovered || snap.Clues[1].DiscoveredBy != "bob" {
		t.Errorf("clue 2 state = %+v", snap.Clues[1])
	}
	if snap.CompletionPending {
		t.Error("completion pending with clues left")
	}
	if next, ok := snap.Next(); !ok || next.SequenceNumber != 1 {
		t.Errorf("next = %+v, %v", next, ok)
	}

	if _, err := f.eng.QuestSnapshot(ctx, 404, teamID); !errors.Is(err, quest.ErrQuestNotFound) {
		t.Errorf("unknown quest err = %v", err)
	}
}

func TestCompletionPendingWindow(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation)
	ctx := context.Background()

	// Flip the clue directly, as if the cascade had not run yet.
	if ok, err := f.store.CASSetClueDiscovered(ctx, f.clues[0].ID, teamID, "alice"); err != nil || !ok {
		t.Fatalf("CASSetClueDiscovered = %v, %v", ok, err)
	}
	snap, err := f.eng.QuestSnapshot(ctx, f.quest.ID, teamID)
	if err != nil {
		t.Fatalf("QuestSnapshot: %v", err)
	}
	if !snap.CompletionPending {
		t.Fatal("completion not pending")
	}

	// A replay heals the interrupted cascade.
	res, err := f.eng.ReportClueEvent(ctx, f.clues[0].ID, "bob", teamID, f.at(0))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !res.AlreadyDiscovered || !res.QuestNowComplete {
		t.Errorf("replay result = %+v", res)
	}
	snap, _ = f.eng.QuestSnapshot(ctx, f.quest.ID, teamID)
	if snap.CompletionPending || snap.Progress.Status != quest.StatusCompleted {
		t.Errorf("after replay: pending=%v status=%s", snap.CompletionPending, snap.Progress.Status)
	}
}

func TestActiveQuests(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation, quest.ClueTypeLocation)
	ctx := context.Background()
	done, doneClues := f.store.AddQuest(quest.Quest{Title: "short", Type: quest.QuestTypeExplore, Difficulty: 1},
		[]quest.Clue{{SequenceNumber: 1, Type: quest.ClueTypeLocation}})

	if _, err := f.eng.ReportClueEvent(ctx, doneClues[0].ID, "alice", teamID, engine.Proximity(doneClues[0].Target)); err != nil {
		t.Fatalf("report: %v", err)
	}
	if _, err := f.eng.ReportClueEvent(ctx, f.clues[0].ID, "alice", teamID, f.at(0)); err != nil {
		t.Fatalf("report: %v", err)
	}

	active, err := f.eng.ActiveQuests(ctx, teamID)
	if err != nil {
		t.Fatalf("ActiveQuests: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active = %d quests, want 1", len(active))
	}
	got := active[0]
	if got.Quest.ID == done.ID {
		t.Error("completed quest listed as active")
	}
	if got.Status != quest.StatusInProgress || got.Discovered != 1 || got.Total != 2 {
		t.Errorf("summary = %+v", got)
	}
}

func TestReconcileWithoutPendingStore(t *testing.T) {
	st := memstore.New()
	eng := engine.New(st, st, st, nil, discardLogger(), engine.DefaultConfig())
	report, err := eng.Reconcile(context.Background(), 10)
	if err != nil || report.Attempted != 0 {
		t.Errorf("Reconcile = %+v, %v", report, err)
	}
}

// contendedStore loses every quest status write to a simulated lock.
type contendedStore struct {
	*memstore.Store
}

func (contendedStore) CASQuestStatus(context.Context, int64, string, quest.Status, quest.Status, string) (bool, error) {
	return false, quest.ErrStorageConflict
}

func TestCompletionFailureKeepsDiscovery(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation)
	ctx := context.Background()

	busy := engine.New(contendedStore{f.store}, f.store, f.store, f.store, discardLogger(), engine.DefaultConfig())
	res, err := busy.ReportClueEvent(ctx, f.clues[0].ID, "alice", teamID, f.at(0))
	if err != nil {
		t.Fatalf("report after durable flip failed: %v", err)
	}
	if res.AlreadyDiscovered || res.XPAwarded != 10 || res.QuestNowComplete {
		t.Fatalf("result = %+v", res)
	}
	if !errors.Is(res.CompletionErr, quest.ErrStorageConflict) {
		t.Fatalf("CompletionErr = %v, want ErrStorageConflict", res.CompletionErr)
	}
	if got := f.status(t); got != quest.StatusNotStarted {
		t.Fatalf("status = %s", got)
	}

	// A teammate's replay heals the quest.
	res, err = f.eng.ReportClueEvent(ctx, f.clues[0].ID, "bob", teamID, f.at(0))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !res.AlreadyDiscovered || !res.QuestNowComplete || res.CompletionErr != nil {
		t.Errorf("replay result = %+v", res)
	}
	if got := f.status(t); got != quest.StatusCompleted {
		t.Errorf("status after replay = %s", got)
	}
}

func TestReconcileParksBonusForMissingTeam(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation)
	ctx := context.Background()

	for _, c := range []quest.PendingCredit{
		{Kind: quest.CreditTeamBonus, TeamID: "team-disbanded", QuestID: f.quest.ID, Amount: 50, EventKey: "bonus:disbanded"},
		{Kind: quest.CreditCoins, PlayerID: "alice", TeamID: teamID, QuestID: f.quest.ID, Amount: 50, EventKey: "bonus:alice"},
	} {
		if err := f.store.AddPendingCredit(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	report, err := f.eng.Reconcile(ctx, 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Parked != 1 || report.Failed != 0 {
		t.Fatalf("first reconcile = %+v", report)
	}
	report, err = f.eng.Reconcile(ctx, 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Resolved != 1 {
		t.Fatalf("second reconcile = %+v", report)
	}
	if p, _ := f.store.Profile("alice"); p.Coins != 50 {
		t.Errorf("alice coins = %d, want 50", p.Coins)
	}

	parked := f.store.Parked()
	if len(parked) != 1 || parked[0].Kind != quest.CreditTeamBonus || !strings.Contains(parked[0].LastError, "team not found") {
		t.Errorf("parked = %+v", parked)
	}
	if pending, _ := f.store.ListPendingCredits(ctx, 0); len(pending) != 0 {
		t.Errorf("pending = %+v", pending)
	}
}

func TestReconcileRetriesFailingCreditBehindNewOnes(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation)
	ctx := context.Background()
	cfg := engine.DefaultConfig()
	cfg.MaxPendingAttempts = 3
	eng := engine.New(f.store, f.store, f.store, f.store, discardLogger(), cfg)

	for _, c := range []quest.PendingCredit{
		{Kind: quest.CreditCoins, PlayerID: "ghost", Amount: 5, EventKey: "coins:ghost"},
		{Kind: quest.CreditCoins, PlayerID: "alice", Amount: 5, EventKey: "coins:alice"},
	} {
		if err := f.store.AddPendingCredit(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	want := []engine.ReconcileReport{
		{Attempted: 1, Failed: 1},
		{Attempted: 1, Resolved: 1},
		{Attempted: 1, Failed: 1},
		{Attempted: 1, Parked: 1},
		{},
	}
	for i, w := range want {
		got, err := eng.Reconcile(ctx, 1)
		if err != nil {
			t.Fatalf("Reconcile %d: %v", i, err)
		}
		if got != w {
			t.Errorf("Reconcile %d = %+v, want %+v", i, got, w)
		}
	}
	if p, _ := f.store.Profile("alice"); p.Coins != 5 {
		t.Errorf("alice coins = %d, want 5", p.Coins)
	}
	if parked := f.store.Parked(); len(parked) != 1 || parked[0].PlayerID != "ghost" || parked[0].Attempts != 3 {
		t.Errorf("parked = %+v", parked)
	}
}

func TestTeamBonusReplayPaysCurrentRoster(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation)
	ctx := context.Background()

	if err := f.store.AddPendingCredit(ctx, quest.PendingCredit{
		Kind: quest.CreditTeamBonus, TeamID: teamID, QuestID: f.quest.ID, Amount: 50, EventKey: "bonus:roster",
	}); err != nil {
		t.Fatal(err)
	}
	// alice left and carla joined before the replay.
	f.store.AddProfile(quest.PlayerProfile{FirebaseUID: "carla"})
	f.store.AddTeam(quest.Team{ID: teamID, Name: "Incas", LeaderPlayerID: "bob", MemberIDs: []string{"carla"}})

	report, err := f.eng.Reconcile(ctx, 10)
	if err != nil || report.Resolved != 1 {
		t.Fatalf("Reconcile = %+v, %v", report, err)
	}
	for player, want := range map[string]int{"alice": 0, "bob": 50, "carla": 50} {
		if p, _ := f.store.Profile(player); p.Coins != want {
			t.Errorf("%s coins = %d, want %d", player, p.Coins, want)
		}
	}
}

func TestCompletedQuests(t *testing.T) {
	f := newFixture(t, quest.ClueTypeLocation, quest.ClueTypeLocation)
	ctx := context.Background()
	done, doneClues := f.store.AddQuest(quest.Quest{Title: "short", Type: quest.QuestTypeExplore, Difficulty: 1},
		[]quest.Clue{{SequenceNumber: 1, Type: quest.ClueTypeLocation}})

	if _, err := f.eng.ReportClueEvent(ctx, doneClues[0].ID, "bob", teamID, engine.Proximity(doneClues[0].Target)); err != nil {
		t.Fatalf("report: %v", err)
	}
	if _, err := f.eng.ReportClueEvent(ctx, f.clues[0].ID, "alice", teamID, f.at(0)); err != nil {
		t.Fatalf("report: %v", err)
	}

	completed, err := f.eng.CompletedQuests(ctx, teamID)
	if err != nil {
		t.Fatalf("CompletedQuests: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("completed = %d quests, want 1", len(completed))
	}
	got := completed[0]
	if got.Quest.ID != done.ID || got.Status != quest.StatusCompleted || got.Discovered != 1 || got.Total != 1 {
		t.Errorf("summary = %+v", got)
	}
	if got.CompletedBy != "bob" || got.CompletedAt.IsZero() {
		t.Errorf("completed by %q at %v", got.CompletedBy, got.CompletedAt)
	}

	other, err := f.eng.CompletedQuests(ctx, "team-other")
	if err != nil || len(other) != 0 {
		t.Errorf("other team completed = %+v, %v", other, err)
	}
}
