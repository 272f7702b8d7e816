package bracket

import "errors"

// Bracket engine errors
var (
	// Seeding errors
	ErrInvalidSeedState   = errors.New("tournament is not open for seeding")
	ErrTooFewParticipants = errors.New("at least 2 participants are required")
	ErrUnknownFormat      = errors.New("unknown tournament format")

	// Registration errors
	ErrTournamentNotOpen  = errors.New("tournament is not open for registration")
	ErrParticipantsFrozen = errors.New("participant list is frozen once seeded")
	ErrAlreadyRegistered  = errors.New("participant is already registered")
	ErrNotRegistered      = errors.New("participant is not registered")

	// Result errors
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchNotReady     = errors.New("match is not ready for a result")
	ErrInvalidWinner     = errors.New("winner is not a participant of this match")
	ErrMatchAlreadyFinal = errors.New("match result is already final")
	ErrMatchNotReported  = errors.New("match has no reported result")
	ErrMatchNotDisputed  = errors.New("match is not disputed")

	// Tournament state errors
	ErrTournamentNotStarted = errors.New("tournament has not been seeded")
	ErrTournamentCompleted  = errors.New("tournament has already completed")
	ErrTournamentCancelled  = errors.New("tournament has been cancelled")
)
