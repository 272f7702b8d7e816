package bracket

import "time"

// TournamentStatus represents the lifecycle state of a tournament
type TournamentStatus string

const (
	StatusOpen       TournamentStatus = "open"
	StatusSeeded     TournamentStatus = "seeded"
	StatusInProgress TournamentStatus = "in_progress"
	StatusCompleted  TournamentStatus = "completed"
	StatusCancelled  TournamentStatus = "cancelled"
)

// Format selects the bracket topology built by Seed
type Format string

const (
	FormatSingleElimination Format = "single_elimination"
	FormatGroupStage        Format = "group_stage"
)

// MatchStatus represents the state machine position of a match.
// Pending -> Ready -> InProgress -> Reported -> Final, with
// Reported <-> Disputed as the only cycle. Final is terminal.
type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchReady      MatchStatus = "ready"
	MatchInProgress MatchStatus = "in_progress"
	MatchReported   MatchStatus = "reported"
	MatchDisputed   MatchStatus = "disputed"
	MatchFinal      MatchStatus = "final"
)

// Match is one node of the bracket. Downstream linkage is a forward
// reference only (WinnerAdvancesTo + AdvanceSlot); there are no
// back-pointers, so discovery of the next match is always a lookup.
type Match struct {
	ID           string      `json:"id"`
	TournamentID string      `json:"tournament_id"`
	Round        int         `json:"round"`
	Order        int         `json:"order"`
	Slots        [2]string   `json:"slots"` // participant ids, "" while unfilled
	WinnerID     string      `json:"winner_id,omitempty"`
	Score        string      `json:"score,omitempty"`
	Status       MatchStatus `json:"status"`
	IsBye        bool        `json:"is_bye,omitempty"`
	DisputeReason string     `json:"dispute_reason,omitempty"`

	// WinnerAdvancesTo is the id of the match the winner feeds into,
	// empty for the terminal match. AdvanceSlot is the slot index (0 or 1)
	// the winner occupies there.
	WinnerAdvancesTo string `json:"winner_advances_to,omitempty"`
	AdvanceSlot      int    `json:"advance_slot,omitempty"`
}

// HasParticipant reports whether id occupies one of the match slots.
func (m *Match) HasParticipant(id string) bool {
	return id != "" && (m.Slots[0] == id || m.Slots[1] == id)
}

// Filled reports whether both slots are occupied.
func (m *Match) Filled() bool {
	return m.Slots[0] != "" && m.Slots[1] != ""
}

// Tournament is the unit of ownership: all bracket state for one
// tournament lives here and is serialized as a single document.
type Tournament struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Format       Format           `json:"format"`
	Status       TournamentStatus `json:"status"`
	Participants []string         `json:"participants"`
	Matches      []*Match         `json:"matches"`
	WinnerID     string           `json:"winner_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	SeededAt     *time.Time       `json:"seeded_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`

	index map[string]*Match
}

// NewTournament creates an empty tournament accepting registrations.
func NewTournament(id, name string, format Format) *Tournament {
	return &Tournament{
		ID:        id,
		Name:      name,
		Format:    format,
		Status:    StatusOpen,
		CreatedAt: time.Now().UTC(),
	}
}

// Match returns the match with the given id, or nil.
// The lookup index is built lazily so that tournaments deserialized
// from storage work without an explicit rebuild step.
func (t *Tournament) Match(id string) *Match {
	if t.index == nil || len(t.index) != len(t.Matches) {
		t.index = make(map[string]*Match, len(t.Matches))
		for _, m := range t.Matches {
			t.index[m.ID] = m
		}
	}
	return t.index[id]
}

// Terminal returns the tournament's terminal match (single elimination
// only), the one with no downstream link.
func (t *Tournament) Terminal() *Match {
	for _, m := range t.Matches {
		if m.WinnerAdvancesTo == "" {
			return m
		}
	}
	return nil
}

// IsRegistered reports whether the participant id is on the list.
func (t *Tournament) IsRegistered(participantID string) bool {
	for _, p := range t.Participants {
		if p == participantID {
			return true
		}
	}
	return false
}

// CloneMatches returns value copies of all matches, ordered by round
// then order, for snapshot responses.
func (t *Tournament) CloneMatches() []Match {
	out := make([]Match, len(t.Matches))
	for i, m := range t.Matches {
		out[i] = *m
	}
	return out
}
