package bracket

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// calcBracketSize returns the nearest power of 2, rounding up, so an
// input of 5 yields 8 and so on.
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// generateRound1Pairs produces the classic seed pairing for a bracket
// of the given size: seed 0 meets the worst seed, the two halves of the
// draw keep the top seeds apart until the final.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	seeds := []int{0}
	for len(seeds) < bracketSize {
		var next []int
		currentCount := len(seeds) * 2
		for _, seed := range seeds {
			next = append(next, seed)
			next = append(next, (currentCount-1)-seed)
		}
		seeds = next
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(seeds); i += 2 {
		pairs = append(pairs, [2]int{seeds[i], seeds[i+1]})
	}
	return pairs
}

// buildSingleElim constructs the full single-elimination tree for the
// tournament's participants. Construction runs from the terminal match
// backwards so each match can record its forward link at creation.
// Matches with a single occupant are byes and resolve immediately.
func buildSingleElim(t *Tournament) []*Match {
	size := calcBracketSize(len(t.Participants))
	totalRounds := int(math.Log2(float64(size)))

	var matches []*Match
	nextRoundIDs := make(map[int]string)

	for r := totalRounds; r >= 1; r-- {
		matchesInRound := 1 << (totalRounds - r)
		currentRoundIDs := make(map[int]string)

		for i := 0; i < matchesInRound; i++ {
			order := i + 1
			m := &Match{
				ID:           uuid.New().String(),
				TournamentID: t.ID,
				Round:        r,
				Order:        order,
				Status:       MatchPending,
			}

			if r < totalRounds {
				m.WinnerAdvancesTo = nextRoundIDs[(order+1)/2]
				if order%2 != 0 {
					m.AdvanceSlot = 0
				} else {
					m.AdvanceSlot = 1
				}
			}

			matches = append(matches, m)
			currentRoundIDs[order] = m.ID
		}
		nextRoundIDs = currentRoundIDs
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Round != matches[j].Round {
			return matches[i].Round < matches[j].Round
		}
		return matches[i].Order < matches[j].Order
	})

	t.Matches = matches
	t.index = nil

	// Fill round 1 from the seed pairing; seeds beyond the participant
	// count stay empty and become byes.
	pairs := generateRound1Pairs(size)
	round1 := make([]*Match, 0, size/2)
	for _, m := range matches {
		if m.Round == 1 {
			round1 = append(round1, m)
		}
	}
	for i, pair := range pairs {
		if i >= len(round1) {
			break
		}
		m := round1[i]
		if pair[0] < len(t.Participants) {
			m.Slots[0] = t.Participants[pair[0]]
		}
		if pair[1] < len(t.Participants) {
			m.Slots[1] = t.Participants[pair[1]]
		}
	}

	// Resolve byes: the sole occupant advances automatically, no score.
	for _, m := range round1 {
		occupied := 0
		var sole string
		for _, s := range m.Slots {
			if s != "" {
				occupied++
				sole = s
			}
		}
		if occupied == 1 {
			m.IsBye = true
			m.WinnerID = sole
			m.Status = MatchFinal
			if next := t.Match(m.WinnerAdvancesTo); next != nil {
				next.Slots[m.AdvanceSlot] = sole
			}
		}
	}

	for _, m := range matches {
		if m.Status == MatchPending && m.Filled() {
			m.Status = MatchReady
		}
	}

	return matches
}

// buildRoundRobin constructs a single-group round-robin schedule using
// the circle method. Every match is Ready immediately; with an odd
// participant count one participant sits out each round (no bye match
// is created).
func buildRoundRobin(t *Tournament) []*Match {
	ids := make([]string, len(t.Participants))
	copy(ids, t.Participants)
	if len(ids)%2 != 0 {
		ids = append(ids, "") // ghost opponent marks the sit-out
	}

	n := len(ids)
	rounds := n - 1
	var matches []*Match

	for r := 1; r <= rounds; r++ {
		order := 1
		for i := 0; i < n/2; i++ {
			a, b := ids[i], ids[n-1-i]
			if a == "" || b == "" {
				continue
			}
			matches = append(matches, &Match{
				ID:           uuid.New().String(),
				TournamentID: t.ID,
				Round:        r,
				Order:        order,
				Slots:        [2]string{a, b},
				Status:       MatchReady,
			})
			order++
		}
		// rotate all but the first entry
		ids = append(ids[:1], append([]string{ids[n-1]}, ids[1:n-1]...)...)
	}

	t.Matches = matches
	t.index = nil
	return matches
}
