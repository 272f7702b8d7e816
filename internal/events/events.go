package events

import "time"

// Type identifies the kind of room event.
type Type string

const (
	TypeMatchUpdated           Type = "match_updated"
	TypeTournamentStateChanged Type = "tournament_state_changed"
	TypeParticipantJoined      Type = "participant_joined"
	TypeChatMessage            Type = "new_message"
	TypeQueueOverflow          Type = "queue_overflow"
)

// Critical events are never dropped ahead of non-critical ones when a
// subscriber's queue overflows. Chat and presence are best-effort;
// tournament state transitions are not.
func (t Type) Critical() bool {
	switch t {
	case TypeMatchUpdated, TypeTournamentStateChanged, TypeQueueOverflow:
		return true
	}
	return false
}

// Event is one room-scoped message. Seq is assigned by the bus and is
// strictly increasing and gap-free within a room for the room's
// current lifetime.
type Event struct {
	Room    string      `json:"room"`
	Seq     uint64      `json:"seq"`
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Room id conventions. Tournaments and individual matches each get a
// room; the lobby is a plain tag.

func TournamentRoom(tournamentID string) string { return "tournament:" + tournamentID }

func MatchRoom(matchID string) string { return "match:" + matchID }

const LobbyRoom = "lobby"
