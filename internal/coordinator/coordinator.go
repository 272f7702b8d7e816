package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"arena-platform/backend/internal/bracket"
	"arena-platform/backend/internal/events"
	"arena-platform/backend/internal/locks"
	"arena-platform/backend/internal/models"
)

// ErrInvalidFormat occurs when a create request names an unknown bracket format
var ErrInvalidFormat = errors.New("invalid tournament format")

// Store is the persistence collaborator. Load and Save are an atomic
// read/replace per tournament id.
type Store interface {
	Create(ctx context.Context, t *bracket.Tournament, creatorID *string, startTime *time.Time) error
	Load(ctx context.Context, id string) (*bracket.Tournament, error)
	Save(ctx context.Context, t *bracket.Tournament) error
	Get(ctx context.Context, id string) (*models.TournamentRecord, error)
	List(ctx context.Context, status string) ([]models.TournamentRecord, error)
	DueForSeeding(ctx context.Context, now time.Time) ([]string, error)
	Active(ctx context.Context) ([]models.TournamentRecord, error)
}

// Publisher is the event bus surface the coordinator needs.
type Publisher interface {
	Publish(roomID string, typ events.Type, payload interface{}) events.Event
}

// Coordinator is the sole writer of tournament state. Every mutation
// runs under the tournament's lock: load, apply the engine transition,
// save, publish the derived events. Mutations on different tournaments
// proceed in parallel; two on the same tournament never overlap.
type Coordinator struct {
	engine *bracket.Engine
	store  Store
	locks  locks.Manager
	bus    Publisher

	lockTTL time.Duration
}

// New creates a coordinator
func New(engine *bracket.Engine, store Store, lockManager locks.Manager, bus Publisher) *Coordinator {
	return &Coordinator{
		engine:  engine,
		store:   store,
		locks:   lockManager,
		bus:     bus,
		lockTTL: locks.DefaultLockTTL,
	}
}

// MatchUpdate is the payload of a match_updated event: the match that
// was acted on plus every match the engine changed as a consequence.
type MatchUpdate struct {
	TournamentID string           `json:"tournament_id"`
	MatchID      string           `json:"match_id"`
	Status       string           `json:"status"`
	WinnerID     string           `json:"winner_id,omitempty"`
	Changed      []*bracket.Match `json:"changed"`
}

// StateChange is the payload of a tournament_state_changed event.
type StateChange struct {
	TournamentID string `json:"tournament_id"`
	Status       string `json:"status"`
	WinnerID     string `json:"winner_id,omitempty"`
}

// ParticipantChange is the payload of a participant_joined event.
type ParticipantChange struct {
	TournamentID  string `json:"tournament_id"`
	ParticipantID string `json:"participant_id"`
	Count         int    `json:"count"`
}

// CreateTournament registers a new open tournament and announces it in
// the lobby.
func (c *Coordinator) CreateTournament(ctx context.Context, req models.CreateTournamentRequest, creatorID *string) (*bracket.Tournament, error) {
	format := bracket.Format(req.Format)
	if format != bracket.FormatSingleElimination && format != bracket.FormatGroupStage {
		return nil, ErrInvalidFormat
	}

	t := bracket.NewTournament(uuid.New().String(), req.Name, format)
	if err := c.store.Create(ctx, t, creatorID, req.StartTime); err != nil {
		return nil, err
	}

	log.Printf("[COORD] Created tournament %s (%s, format=%s)", t.ID, t.Name, t.Format)
	c.bus.Publish(events.LobbyRoom, events.TypeTournamentStateChanged, StateChange{
		TournamentID: t.ID,
		Status:       string(t.Status),
	})
	return t, nil
}

// RegisterParticipant adds a participant to an open tournament.
func (c *Coordinator) RegisterParticipant(ctx context.Context, tournamentID, participantID string) error {
	return c.mutate(ctx, tournamentID, func(t *bracket.Tournament) (func(), error) {
		if err := c.engine.Register(t, participantID); err != nil {
			return nil, err
		}
		count := len(t.Participants)
		return func() {
			c.bus.Publish(events.TournamentRoom(tournamentID), events.TypeParticipantJoined, ParticipantChange{
				TournamentID:  tournamentID,
				ParticipantID: participantID,
				Count:         count,
			})
		}, nil
	})
}

// UnregisterParticipant removes a participant before seeding.
func (c *Coordinator) UnregisterParticipant(ctx context.Context, tournamentID, participantID string) error {
	return c.mutate(ctx, tournamentID, func(t *bracket.Tournament) (func(), error) {
		return nil, c.engine.Unregister(t, participantID)
	})
}

// SeedTournament builds the bracket and freezes the participant list.
func (c *Coordinator) SeedTournament(ctx context.Context, tournamentID string) error {
	return c.mutate(ctx, tournamentID, func(t *bracket.Tournament) (func(), error) {
		if _, err := c.engine.Seed(t); err != nil {
			return nil, err
		}
		log.Printf("[COORD] Seeded tournament %s: %d participants, %d matches", t.ID, len(t.Participants), len(t.Matches))
		return func() { c.publishStateChange(t) }, nil
	})
}

// StartMatch moves a ready match in progress.
func (c *Coordinator) StartMatch(ctx context.Context, tournamentID, matchID string) error {
	return c.mutate(ctx, tournamentID, func(t *bracket.Tournament) (func(), error) {
		m, err := c.engine.StartMatch(t, matchID)
		if err != nil {
			return nil, err
		}
		return func() { c.publishMatchUpdate(t, m, []*bracket.Match{m}) }, nil
	})
}

// ReportMatchResult applies a result submission. On success one
// match_updated event goes to the tournament room carrying the full
// changed-match list, and one to each changed match's room. Engine
// errors surface to the caller unchanged; a duplicate report on a
// final match fails, it is never treated as idempotent success.
func (c *Coordinator) ReportMatchResult(ctx context.Context, tournamentID, matchID, winnerID, score string) error {
	return c.mutate(ctx, tournamentID, func(t *bracket.Tournament) (func(), error) {
		before := t.Status
		changed, err := c.engine.ReportResult(t, matchID, winnerID, score)
		if err != nil {
			return nil, err
		}
		return func() { c.publishResult(t, before, matchID, changed) }, nil
	})
}

// ConfirmMatchResult finalizes a reported result under the
// confirmation policy.
func (c *Coordinator) ConfirmMatchResult(ctx context.Context, tournamentID, matchID string) error {
	return c.mutate(ctx, tournamentID, func(t *bracket.Tournament) (func(), error) {
		before := t.Status
		changed, err := c.engine.ConfirmResult(t, matchID)
		if err != nil {
			return nil, err
		}
		return func() { c.publishResult(t, before, matchID, changed) }, nil
	})
}

// DisputeMatchResult opens a dispute on a reported result.
func (c *Coordinator) DisputeMatchResult(ctx context.Context, tournamentID, matchID, reason string) error {
	return c.mutate(ctx, tournamentID, func(t *bracket.Tournament) (func(), error) {
		m, err := c.engine.DisputeResult(t, matchID, reason)
		if err != nil {
			return nil, err
		}
		log.Printf("[COORD] Dispute opened on match %s in tournament %s: %s", matchID, tournamentID, reason)
		return func() { c.publishMatchUpdate(t, m, []*bracket.Match{m}) }, nil
	})
}

// ResolveMatchDispute settles a dispute, returning the match to
// Reported with the corrected winner.
func (c *Coordinator) ResolveMatchDispute(ctx context.Context, tournamentID, matchID, winnerID, score string) error {
	return c.mutate(ctx, tournamentID, func(t *bracket.Tournament) (func(), error) {
		m, err := c.engine.ResolveDispute(t, matchID, winnerID, score)
		if err != nil {
			return nil, err
		}
		return func() { c.publishMatchUpdate(t, m, []*bracket.Match{m}) }, nil
	})
}

// GetBracketSnapshot returns the current bracket state. This is the
// resync backstop: a client that saw a queue_overflow marker refetches
// here. Reads skip the tournament lock, a stored row is always a
// consistent snapshot.
func (c *Coordinator) GetBracketSnapshot(ctx context.Context, tournamentID string) (*bracket.Tournament, error) {
	return c.store.Load(ctx, tournamentID)
}

// Standings computes the ranking table for a group stage tournament.
func (c *Coordinator) Standings(ctx context.Context, tournamentID string) ([]bracket.Standing, error) {
	t, err := c.store.Load(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return bracket.Standings(t), nil
}

// ListTournaments returns stored tournament rows
func (c *Coordinator) ListTournaments(ctx context.Context, status string) ([]models.TournamentRecord, error) {
	return c.store.List(ctx, status)
}

// GetTournament returns one stored tournament row
func (c *Coordinator) GetTournament(ctx context.Context, tournamentID string) (*models.TournamentRecord, error) {
	return c.store.Get(ctx, tournamentID)
}

// mutate is the single-writer entry point: take the tournament lock,
// load, apply, save, then publish. The publish callback returned by op
// runs only after a successful save and while the lock is still held,
// so publish order across mutations matches apply order.
func (c *Coordinator) mutate(ctx context.Context, tournamentID string, op func(*bracket.Tournament) (func(), error)) error {
	lock, err := c.locks.Acquire(ctx, locks.TournamentKey(tournamentID), c.lockTTL)
	if err != nil {
		return fmt.Errorf("tournament %s: %w", tournamentID, err)
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			log.Printf("[COORD] Failed to release lock for tournament %s: %v", tournamentID, err)
		}
	}()

	t, err := c.store.Load(ctx, tournamentID)
	if err != nil {
		return err
	}

	publish, err := op(t)
	if err != nil {
		return err
	}

	if err := c.store.Save(ctx, t); err != nil {
		return err
	}

	if publish != nil {
		publish()
	}
	return nil
}

// publishResult emits the events for one applied result: a single
// match_updated to the tournament room, match_updated to each changed
// match's own room, and tournament_state_changed when the tournament
// status moved.
func (c *Coordinator) publishResult(t *bracket.Tournament, before bracket.TournamentStatus, matchID string, changed []*bracket.Match) {
	m := t.Match(matchID)
	c.publishMatchUpdate(t, m, changed)
	if t.Status != before {
		c.publishStateChange(t)
	}
}

func (c *Coordinator) publishMatchUpdate(t *bracket.Tournament, m *bracket.Match, changed []*bracket.Match) {
	update := MatchUpdate{
		TournamentID: t.ID,
		MatchID:      m.ID,
		Status:       string(m.Status),
		WinnerID:     m.WinnerID,
		Changed:      changed,
	}
	c.bus.Publish(events.TournamentRoom(t.ID), events.TypeMatchUpdated, update)
	for _, cm := range changed {
		c.bus.Publish(events.MatchRoom(cm.ID), events.TypeMatchUpdated, update)
	}
}

func (c *Coordinator) publishStateChange(t *bracket.Tournament) {
	change := StateChange{
		TournamentID: t.ID,
		Status:       string(t.Status),
		WinnerID:     t.WinnerID,
	}
	c.bus.Publish(events.TournamentRoom(t.ID), events.TypeTournamentStateChanged, change)
	c.bus.Publish(events.LobbyRoom, events.TypeTournamentStateChanged, change)
}
