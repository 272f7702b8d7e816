package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"arena-platform/backend/internal/bracket"
	"arena-platform/backend/internal/events"
	"arena-platform/backend/internal/locks"
	"arena-platform/backend/internal/models"
)

// fakeStore keeps tournaments in memory. Load returns a decoded copy
// of the stored snapshot, matching the real store's isolation.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]string)}
}

func (s *fakeStore) Create(ctx context.Context, t *bracket.Tournament, creatorID *string, startTime *time.Time) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[t.ID] = string(raw)
	return nil
}

func (s *fakeStore) Load(ctx context.Context, id string) (*bracket.Tournament, error) {
	s.mu.Lock()
	raw, ok := s.rows[id]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("tournament not found")
	}
	var t bracket.Tournament
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *fakeStore) Save(ctx context.Context, t *bracket.Tournament) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[t.ID]; !ok {
		return errors.New("tournament not found")
	}
	s.rows[t.ID] = string(raw)
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*models.TournamentRecord, error) {
	t, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.TournamentRecord{ID: t.ID, Name: t.Name, Status: string(t.Status)}, nil
}

func (s *fakeStore) List(ctx context.Context, status string) ([]models.TournamentRecord, error) {
	return nil, nil
}

func (s *fakeStore) DueForSeeding(ctx context.Context, now time.Time) ([]string, error) {
	return nil, nil
}

func (s *fakeStore) Active(ctx context.Context) ([]models.TournamentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []models.TournamentRecord
	for id, raw := range s.rows {
		var t bracket.Tournament
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, err
		}
		if t.Status == bracket.StatusSeeded || t.Status == bracket.StatusInProgress {
			records = append(records, models.TournamentRecord{ID: id, Status: string(t.Status), Bracket: raw})
		}
	}
	return records, nil
}

// captureBus records published events in order
type captureBus struct {
	mu     sync.Mutex
	events []events.Event
	seqs   map[string]uint64
}

func newCaptureBus() *captureBus {
	return &captureBus{seqs: make(map[string]uint64)}
}

func (b *captureBus) Publish(roomID string, typ events.Type, payload interface{}) events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seqs[roomID]++
	ev := events.Event{Room: roomID, Seq: b.seqs[roomID], Type: typ, Payload: payload, At: time.Now().UTC()}
	b.events = append(b.events, ev)
	return ev
}

func (b *captureBus) inRoom(roomID string, typ events.Type) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, ev := range b.events {
		if ev.Room == roomID && ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func setup(t *testing.T) (*Coordinator, *fakeStore, *captureBus) {
	t.Helper()
	store := newFakeStore()
	bus := newCaptureBus()
	coord := New(&bracket.Engine{}, store, locks.NewLocalManager(), bus)
	return coord, store, bus
}

func createSeeded(t *testing.T, coord *Coordinator, participants []string) string {
	t.Helper()
	ctx := context.Background()
	tournament, err := coord.CreateTournament(ctx, models.CreateTournamentRequest{
		Name:   "Cup",
		Format: string(bracket.FormatSingleElimination),
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create tournament: %v", err)
	}
	for _, p := range participants {
		if err := coord.RegisterParticipant(ctx, tournament.ID, p); err != nil {
			t.Fatalf("Failed to register %s: %v", p, err)
		}
	}
	if err := coord.SeedTournament(ctx, tournament.ID); err != nil {
		t.Fatalf("Failed to seed tournament: %v", err)
	}
	return tournament.ID
}

// matchWith finds the match containing both participants
func matchWith(t *testing.T, snapshot *bracket.Tournament, a, b string) *bracket.Match {
	t.Helper()
	for _, m := range snapshot.Matches {
		if m.HasParticipant(a) && m.HasParticipant(b) {
			return m
		}
	}
	t.Fatalf("No match pairing %s and %s", a, b)
	return nil
}

func TestFourPlayerRunPublishesThreeMatchUpdates(t *testing.T) {
	coord, _, bus := setup(t)
	ctx := context.Background()

	id := createSeeded(t, coord, []string{"A", "B", "C", "D"})
	snapshot, err := coord.GetBracketSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get snapshot: %v", err)
	}

	m1 := matchWith(t, snapshot, "A", "D")
	m2 := matchWith(t, snapshot, "B", "C")

	if err := coord.ReportMatchResult(ctx, id, m1.ID, "A", "2-0"); err != nil {
		t.Fatalf("Failed to report first result: %v", err)
	}
	if err := coord.ReportMatchResult(ctx, id, m2.ID, "B", "2-1"); err != nil {
		t.Fatalf("Failed to report second result: %v", err)
	}

	snapshot, _ = coord.GetBracketSnapshot(ctx, id)
	final := matchWith(t, snapshot, "A", "B")
	if final.Status != bracket.MatchReady {
		t.Fatalf("Final should be ready once both slots fill, got %s", final.Status)
	}

	if err := coord.ReportMatchResult(ctx, id, final.ID, "A", "2-0"); err != nil {
		t.Fatalf("Failed to report final result: %v", err)
	}

	snapshot, _ = coord.GetBracketSnapshot(ctx, id)
	if snapshot.Status != bracket.StatusCompleted {
		t.Errorf("Expected completed tournament, got %s", snapshot.Status)
	}
	if snapshot.WinnerID != "A" {
		t.Errorf("Expected winner A, got %s", snapshot.WinnerID)
	}

	room := events.TournamentRoom(id)
	updates := bus.inRoom(room, events.TypeMatchUpdated)
	if len(updates) != 3 {
		t.Fatalf("Expected exactly 3 match_updated events in the tournament room, got %d", len(updates))
	}
	order := []string{m1.ID, m2.ID, final.ID}
	for i, ev := range updates {
		update := ev.Payload.(MatchUpdate)
		if update.MatchID != order[i] {
			t.Errorf("Event %d: expected match %s, got %s", i, order[i], update.MatchID)
		}
	}

	// completion is announced in the tournament room
	changes := bus.inRoom(room, events.TypeTournamentStateChanged)
	last := changes[len(changes)-1].Payload.(StateChange)
	if last.Status != string(bracket.StatusCompleted) {
		t.Errorf("Expected final state change to completed, got %s", last.Status)
	}
}

func TestDuplicateReportFailsLoudly(t *testing.T) {
	coord, _, _ := setup(t)
	ctx := context.Background()

	id := createSeeded(t, coord, []string{"A", "B"})
	snapshot, _ := coord.GetBracketSnapshot(ctx, id)
	m := matchWith(t, snapshot, "A", "B")

	if err := coord.ReportMatchResult(ctx, id, m.ID, "A", "2-0"); err != nil {
		t.Fatalf("Failed to report result: %v", err)
	}
	err := coord.ReportMatchResult(ctx, id, m.ID, "B", "0-2")
	if !errors.Is(err, bracket.ErrMatchAlreadyFinal) {
		t.Fatalf("Expected ErrMatchAlreadyFinal, got %v", err)
	}

	// state unchanged
	snapshot, _ = coord.GetBracketSnapshot(ctx, id)
	if snapshot.Match(m.ID).WinnerID != "A" {
		t.Error("Duplicate report must not change the recorded winner")
	}
}

func TestConcurrentReportsOnDifferentMatches(t *testing.T) {
	coord, _, _ := setup(t)
	ctx := context.Background()

	participants := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	id := createSeeded(t, coord, participants)
	snapshot, _ := coord.GetBracketSnapshot(ctx, id)

	var round1 []*bracket.Match
	for _, m := range snapshot.Matches {
		if m.Round == 1 && m.Status == bracket.MatchReady {
			round1 = append(round1, m)
		}
	}
	if len(round1) != 4 {
		t.Fatalf("Expected 4 ready round 1 matches, got %d", len(round1))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(round1))
	for i, m := range round1 {
		wg.Add(1)
		go func(i int, m *bracket.Match) {
			defer wg.Done()
			errs[i] = coord.ReportMatchResult(ctx, id, m.ID, m.Slots[0], "2-0")
		}(i, m)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Concurrent report %d failed: %v", i, err)
		}
	}

	snapshot, _ = coord.GetBracketSnapshot(ctx, id)
	if err := validateBracket(snapshot); err != nil {
		t.Fatalf("Bracket corrupted by concurrent reports: %v", err)
	}
	for _, m := range snapshot.Matches {
		if m.Round == 2 && !m.Filled() {
			t.Errorf("Round 2 match %s missing a propagated winner", m.ID)
		}
		if m.Round == 2 && m.Status != bracket.MatchReady {
			t.Errorf("Round 2 match %s should be ready, got %s", m.ID, m.Status)
		}
	}
}

func TestMutationFailsWithLockTimeout(t *testing.T) {
	store := newFakeStore()
	manager := locks.NewLocalManager()
	coord := New(&bracket.Engine{}, store, manager, newCaptureBus())
	ctx := context.Background()

	tournament, err := coord.CreateTournament(ctx, models.CreateTournamentRequest{
		Name:   "Held",
		Format: string(bracket.FormatSingleElimination),
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create tournament: %v", err)
	}

	// hold the tournament's lock from outside
	held, err := manager.Acquire(ctx, locks.TournamentKey(tournament.ID), 0)
	if err != nil {
		t.Fatalf("Failed to grab lock: %v", err)
	}
	defer held.Release(ctx)

	timeoutCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	err = coord.RegisterParticipant(timeoutCtx, tournament.ID, "A")
	if !errors.Is(err, locks.ErrLockTimeout) {
		t.Fatalf("Expected ErrLockTimeout, got %v", err)
	}
}

func TestRecoveryValidatesActiveTournaments(t *testing.T) {
	coord, store, _ := setup(t)
	ctx := context.Background()

	createSeeded(t, coord, []string{"A", "B", "C", "D"})

	// a corrupt row must be skipped, not fatal
	store.mu.Lock()
	store.rows["broken"] = `{"id":"broken","status":"seeded","matches":[{"id":"m1","winner_advances_to":"missing"}]}`
	store.mu.Unlock()

	recovered, err := coord.RecoverActiveTournaments(ctx)
	if err != nil {
		t.Fatalf("Recovery failed: %v", err)
	}
	if recovered != 1 {
		t.Errorf("Expected 1 validated tournament, got %d", recovered)
	}
}

func TestCreateRejectsUnknownFormat(t *testing.T) {
	coord, _, _ := setup(t)
	_, err := coord.CreateTournament(context.Background(), models.CreateTournamentRequest{
		Name:   "Bad",
		Format: "double_elimination",
	}, nil)
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("Expected ErrInvalidFormat, got %v", err)
	}
}
