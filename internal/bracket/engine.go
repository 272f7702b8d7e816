package bracket

import "time"

// Engine owns the tournament and match state machines. It is pure
// in-memory logic: callers (the coordinator) serialize access per
// tournament and handle persistence and event emission from the
// changed-match lists returned here.
type Engine struct {
	// RequireConfirmation keeps reported results in Reported until
	// ConfirmResult is called. When false (the default), ReportResult
	// finalizes and propagates immediately.
	RequireConfirmation bool
}

// NewEngine creates an engine with immediate finalization.
func NewEngine() *Engine {
	return &Engine{}
}

// Register appends a participant. Fails once the tournament is seeded:
// the participant list is frozen from that point on.
func (e *Engine) Register(t *Tournament, participantID string) error {
	switch t.Status {
	case StatusOpen:
	case StatusCancelled:
		return ErrTournamentCancelled
	case StatusCompleted:
		return ErrTournamentCompleted
	default:
		return ErrParticipantsFrozen
	}
	if t.IsRegistered(participantID) {
		return ErrAlreadyRegistered
	}
	t.Participants = append(t.Participants, participantID)
	return nil
}

// Unregister removes a participant before seeding.
func (e *Engine) Unregister(t *Tournament, participantID string) error {
	if t.Status != StatusOpen {
		return ErrParticipantsFrozen
	}
	for i, p := range t.Participants {
		if p == participantID {
			t.Participants = append(t.Participants[:i], t.Participants[i+1:]...)
			return nil
		}
	}
	return ErrNotRegistered
}

// Seed constructs the bracket topology for the tournament's registered
// participants and freezes the participant list. Returns every match
// created, byes already resolved.
func (e *Engine) Seed(t *Tournament) ([]*Match, error) {
	if t.Status != StatusOpen {
		return nil, ErrInvalidSeedState
	}
	if len(t.Participants) < 2 {
		return nil, ErrTooFewParticipants
	}

	var matches []*Match
	switch t.Format {
	case FormatSingleElimination:
		matches = buildSingleElim(t)
	case FormatGroupStage:
		matches = buildRoundRobin(t)
	default:
		return nil, ErrUnknownFormat
	}

	now := time.Now().UTC()
	t.Status = StatusSeeded
	t.SeededAt = &now
	return matches, nil
}

// StartMatch moves a Ready match to InProgress.
func (e *Engine) StartMatch(t *Tournament, matchID string) (*Match, error) {
	m := t.Match(matchID)
	if m == nil {
		return nil, ErrMatchNotFound
	}
	if m.Status != MatchReady {
		return nil, ErrMatchNotReady
	}
	m.Status = MatchInProgress
	if t.Status == StatusSeeded {
		t.Status = StatusInProgress
	}
	return m, nil
}

// ReportResult records a result for a Ready or InProgress match. The
// winner must occupy one of the two filled slots. On immediate
// finalization the winner propagates into the downstream slot, the
// downstream match becomes Ready once both its slots are filled, and
// reporting the terminal match completes the tournament. The returned
// slice lists every match whose state changed, in causal order, for
// event emission. A result on a Final match is always rejected:
// results are immutable once final and disputes are the only
// correction path.
func (e *Engine) ReportResult(t *Tournament, matchID, winnerID, score string) ([]*Match, error) {
	if t.Status != StatusSeeded && t.Status != StatusInProgress {
		if t.Status == StatusCompleted {
			// Final matches stay immutable after the bracket closes:
			// a duplicate report is rejected as already-final, not as
			// a tournament-level error.
			if m := t.Match(matchID); m != nil && m.Status == MatchFinal {
				return nil, ErrMatchAlreadyFinal
			}
			return nil, ErrTournamentCompleted
		}
		return nil, ErrTournamentNotStarted
	}

	m := t.Match(matchID)
	if m == nil {
		return nil, ErrMatchNotFound
	}
	switch m.Status {
	case MatchFinal:
		return nil, ErrMatchAlreadyFinal
	case MatchReady, MatchInProgress:
	default:
		return nil, ErrMatchNotReady
	}
	if !m.HasParticipant(winnerID) {
		return nil, ErrInvalidWinner
	}

	m.WinnerID = winnerID
	m.Score = score
	if t.Status == StatusSeeded {
		t.Status = StatusInProgress
	}

	if e.RequireConfirmation {
		m.Status = MatchReported
		return []*Match{m}, nil
	}
	return e.finalize(t, m), nil
}

// ConfirmResult finalizes a Reported match and propagates its winner.
// Only meaningful when RequireConfirmation is set.
func (e *Engine) ConfirmResult(t *Tournament, matchID string) ([]*Match, error) {
	m := t.Match(matchID)
	if m == nil {
		return nil, ErrMatchNotFound
	}
	if m.Status == MatchFinal {
		return nil, ErrMatchAlreadyFinal
	}
	if m.Status != MatchReported {
		return nil, ErrMatchNotReported
	}
	return e.finalize(t, m), nil
}

// DisputeResult moves a Reported match to Disputed, blocking downstream
// propagation until an arbitration outcome resolves it.
func (e *Engine) DisputeResult(t *Tournament, matchID, reason string) (*Match, error) {
	m := t.Match(matchID)
	if m == nil {
		return nil, ErrMatchNotFound
	}
	if m.Status == MatchFinal {
		return nil, ErrMatchAlreadyFinal
	}
	if m.Status != MatchReported {
		return nil, ErrMatchNotReported
	}
	m.Status = MatchDisputed
	m.DisputeReason = reason
	return m, nil
}

// ResolveDispute records the arbitration outcome and returns the match
// to Reported. The winner may be corrected; it must still occupy one
// of the match slots.
func (e *Engine) ResolveDispute(t *Tournament, matchID, winnerID, score string) (*Match, error) {
	m := t.Match(matchID)
	if m == nil {
		return nil, ErrMatchNotFound
	}
	if m.Status != MatchDisputed {
		return nil, ErrMatchNotDisputed
	}
	if !m.HasParticipant(winnerID) {
		return nil, ErrInvalidWinner
	}
	m.WinnerID = winnerID
	m.Score = score
	m.Status = MatchReported
	m.DisputeReason = ""
	return m, nil
}

// finalize marks the match Final and applies its consequences. For
// single elimination the winner fills the downstream slot and may make
// that match Ready; the terminal match completes the tournament. For a
// group stage the tournament completes when every match is Final. The
// caller observes all transitions at once: the downstream match is
// never visible with an unfilled slot while its upstream is Final.
func (e *Engine) finalize(t *Tournament, m *Match) []*Match {
	m.Status = MatchFinal
	changed := []*Match{m}

	switch t.Format {
	case FormatSingleElimination:
		if m.WinnerAdvancesTo == "" {
			e.complete(t, m.WinnerID)
			return changed
		}
		next := t.Match(m.WinnerAdvancesTo)
		if next == nil {
			return changed
		}
		next.Slots[m.AdvanceSlot] = m.WinnerID
		if next.Status == MatchPending && next.Filled() {
			next.Status = MatchReady
			changed = append(changed, next)
		}

	case FormatGroupStage:
		for _, other := range t.Matches {
			if other.Status != MatchFinal {
				return changed
			}
		}
		standings := Standings(t)
		winner := ""
		if len(standings) > 0 {
			winner = standings[0].ParticipantID
		}
		e.complete(t, winner)
	}

	return changed
}

func (e *Engine) complete(t *Tournament, winnerID string) {
	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.WinnerID = winnerID
	t.CompletedAt = &now
}
