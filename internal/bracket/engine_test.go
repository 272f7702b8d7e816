package bracket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchesInRound(tour *Tournament, round int) []*Match {
	var out []*Match
	for _, m := range tour.Matches {
		if m.Round == round {
			out = append(out, m)
		}
	}
	return out
}

func TestRegisterFrozenAfterSeed(t *testing.T) {
	e, tour := seeded(t, FormatSingleElimination, 4)

	err := e.Register(tour, "latecomer")
	assert.ErrorIs(t, err, ErrParticipantsFrozen)
	assert.Len(t, tour.Participants, 4)

	err = e.Unregister(tour, "p0")
	assert.ErrorIs(t, err, ErrParticipantsFrozen)
}

func TestRegisterDuplicate(t *testing.T) {
	e := NewEngine()
	tour := NewTournament("t1", "test", FormatSingleElimination)
	require.NoError(t, e.Register(tour, "a"))
	assert.ErrorIs(t, e.Register(tour, "a"), ErrAlreadyRegistered)
}

func TestFourPlayerRunThrough(t *testing.T) {
	e, tour := seeded(t, FormatSingleElimination, 4)

	round1 := matchesInRound(tour, 1)
	require.Len(t, round1, 2)
	final := tour.Terminal()
	require.NotNil(t, final)
	assert.Equal(t, MatchPending, final.Status)

	// first semifinal: winner lands in the final, final still pending
	changed, err := e.ReportResult(tour, round1[0].ID, round1[0].Slots[0], "2-0")
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, MatchFinal, round1[0].Status)
	assert.Equal(t, StatusInProgress, tour.Status)
	assert.Equal(t, round1[0].Slots[0], final.Slots[round1[0].AdvanceSlot])
	assert.Equal(t, MatchPending, final.Status)

	// second semifinal: final fills and becomes Ready in the same step
	changed, err = e.ReportResult(tour, round1[1].ID, round1[1].Slots[1], "2-1")
	require.NoError(t, err)
	require.Len(t, changed, 2)
	assert.Same(t, round1[1], changed[0])
	assert.Same(t, final, changed[1])
	assert.Equal(t, MatchReady, final.Status)
	assert.True(t, final.Filled())

	// terminal result completes the tournament
	winner := final.Slots[0]
	changed, err = e.ReportResult(tour, final.ID, winner, "2-0")
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, MatchFinal, final.Status)
	assert.Equal(t, StatusCompleted, tour.Status)
	assert.Equal(t, winner, tour.WinnerID)
	require.NotNil(t, tour.CompletedAt)
}

func TestReportResultOnFinalFails(t *testing.T) {
	e, tour := seeded(t, FormatSingleElimination, 4)
	m := matchesInRound(tour, 1)[0]

	_, err := e.ReportResult(tour, m.ID, m.Slots[0], "2-0")
	require.NoError(t, err)

	before := *m
	_, err = e.ReportResult(tour, m.ID, m.Slots[1], "0-2")
	assert.ErrorIs(t, err, ErrMatchAlreadyFinal)
	assert.Equal(t, before, *m, "state must be unchanged after a rejected report")
}

func TestDuplicateReportAfterCompletion(t *testing.T) {
	e, tour := seeded(t, FormatSingleElimination, 2)
	m := tour.Terminal()

	_, err := e.ReportResult(tour, m.ID, m.Slots[0], "2-0")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, tour.Status)

	_, err = e.ReportResult(tour, m.ID, m.Slots[1], "0-2")
	assert.ErrorIs(t, err, ErrMatchAlreadyFinal)
	assert.Equal(t, m.Slots[0], m.WinnerID, "winner must be unchanged after a rejected report")
}

func TestReportResultValidation(t *testing.T) {
	e, tour := seeded(t, FormatSingleElimination, 4)
	m := matchesInRound(tour, 1)[0]
	final := tour.Terminal()

	_, err := e.ReportResult(tour, "nope", "x", "")
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, err = e.ReportResult(tour, m.ID, "outsider", "2-0")
	assert.ErrorIs(t, err, ErrInvalidWinner)

	_, err = e.ReportResult(tour, final.ID, "p0", "2-0")
	assert.ErrorIs(t, err, ErrMatchNotReady)
}

func TestReportResultBeforeSeed(t *testing.T) {
	e := NewEngine()
	tour := NewTournament("t1", "test", FormatSingleElimination)
	_, err := e.ReportResult(tour, "m", "w", "")
	assert.ErrorIs(t, err, ErrTournamentNotStarted)
}

func TestStartMatch(t *testing.T) {
	e, tour := seeded(t, FormatSingleElimination, 4)
	m := matchesInRound(tour, 1)[0]

	started, err := e.StartMatch(tour, m.ID)
	require.NoError(t, err)
	assert.Equal(t, MatchInProgress, started.Status)
	assert.Equal(t, StatusInProgress, tour.Status)

	_, err = e.StartMatch(tour, m.ID)
	assert.ErrorIs(t, err, ErrMatchNotReady)

	// in-progress matches still accept results
	_, err = e.ReportResult(tour, m.ID, m.Slots[0], "2-0")
	assert.NoError(t, err)
}

func TestConfirmationFlow(t *testing.T) {
	e := &Engine{RequireConfirmation: true}
	tour := NewTournament("t1", "test", FormatSingleElimination)
	for _, p := range []string{"a", "b", "c", "d"} {
		require.NoError(t, e.Register(tour, p))
	}
	_, err := e.Seed(tour)
	require.NoError(t, err)

	m := matchesInRound(tour, 1)[0]
	final := tour.Terminal()

	changed, err := e.ReportResult(tour, m.ID, m.Slots[0], "2-1")
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, MatchReported, m.Status)
	// no propagation while merely reported
	assert.Empty(t, final.Slots[m.AdvanceSlot])

	// dispute blocks, resolution can correct the winner
	_, err = e.DisputeResult(tour, m.ID, "score entered backwards")
	require.NoError(t, err)
	assert.Equal(t, MatchDisputed, m.Status)

	_, err = e.ConfirmResult(tour, m.ID)
	assert.ErrorIs(t, err, ErrMatchNotReported)

	_, err = e.ResolveDispute(tour, m.ID, m.Slots[1], "1-2")
	require.NoError(t, err)
	assert.Equal(t, MatchReported, m.Status)
	assert.Equal(t, m.Slots[1], m.WinnerID)
	assert.Empty(t, m.DisputeReason)

	changed, err = e.ConfirmResult(tour, m.ID)
	require.NoError(t, err)
	assert.Equal(t, MatchFinal, m.Status)
	assert.Equal(t, m.Slots[1], final.Slots[m.AdvanceSlot])
	_ = changed

	_, err = e.DisputeResult(tour, m.ID, "too late")
	assert.ErrorIs(t, err, ErrMatchAlreadyFinal)
}

func TestDisputeRequiresReportedState(t *testing.T) {
	e, tour := seeded(t, FormatSingleElimination, 4)
	m := matchesInRound(tour, 1)[0]

	_, err := e.DisputeResult(tour, m.ID, "nothing to dispute")
	assert.ErrorIs(t, err, ErrMatchNotReported)

	_, err = e.ResolveDispute(tour, m.ID, m.Slots[0], "")
	assert.ErrorIs(t, err, ErrMatchNotDisputed)
}

func TestGroupStageCompletion(t *testing.T) {
	e, tour := seeded(t, FormatGroupStage, 3)
	require.Len(t, tour.Matches, 3)

	// p0 wins both its matches, p1 beats p2
	for _, m := range tour.Matches {
		winner := m.Slots[0]
		if !m.HasParticipant("p0") {
			if m.HasParticipant("p1") {
				winner = "p1"
			}
		} else {
			winner = "p0"
		}
		_, err := e.ReportResult(tour, m.ID, winner, "2-0")
		require.NoError(t, err)
	}

	assert.Equal(t, StatusCompleted, tour.Status)
	assert.Equal(t, "p0", tour.WinnerID)

	standings := Standings(tour)
	require.Len(t, standings, 3)
	assert.Equal(t, "p0", standings[0].ParticipantID)
	assert.Equal(t, 2, standings[0].Wins)
	assert.Equal(t, "p1", standings[1].ParticipantID)
	assert.Equal(t, "p2", standings[2].ParticipantID)
	assert.Equal(t, 2, standings[2].Losses)
}

func TestStandingsHeadToHeadTiebreak(t *testing.T) {
	e, tour := seeded(t, FormatGroupStage, 4)

	// arrange a 2-win tie between p0 and p1 where p1 beat p0
	outcomes := map[[2]string]string{
		{"p0", "p1"}: "p1",
		{"p0", "p2"}: "p0",
		{"p0", "p3"}: "p0",
		{"p1", "p2"}: "p1",
		{"p1", "p3"}: "p3",
		{"p2", "p3"}: "p2",
	}
	for _, m := range tour.Matches {
		a, b := m.Slots[0], m.Slots[1]
		if a > b {
			a, b = b, a
		}
		_, err := e.ReportResult(tour, m.ID, outcomes[[2]string{a, b}], "2-1")
		require.NoError(t, err)
	}

	standings := Standings(tour)
	require.Len(t, standings, 4)
	assert.Equal(t, "p1", standings[0].ParticipantID, "head-to-head winner ranks first")
	assert.Equal(t, "p0", standings[1].ParticipantID)
	assert.Equal(t, "p1", tour.WinnerID)
}

func TestStandingsCyclicTieKeepsSeedingOrder(t *testing.T) {
	e, tour := seeded(t, FormatGroupStage, 4)

	// p0 beat p1, p1 beat p2, p2 beat p0; everyone beat p3
	outcomes := map[[2]string]string{
		{"p0", "p1"}: "p0",
		{"p1", "p2"}: "p1",
		{"p0", "p2"}: "p2",
		{"p0", "p3"}: "p0",
		{"p1", "p3"}: "p1",
		{"p2", "p3"}: "p2",
	}
	for _, m := range tour.Matches {
		a, b := m.Slots[0], m.Slots[1]
		if a > b {
			a, b = b, a
		}
		_, err := e.ReportResult(tour, m.ID, outcomes[[2]string{a, b}], "2-1")
		require.NoError(t, err)
	}

	standings := Standings(tour)
	require.Len(t, standings, 4)
	for i, want := range []string{"p0", "p1", "p2", "p3"} {
		assert.Equal(t, want, standings[i].ParticipantID, "cyclic tie falls back to seeding order")
	}
}
