package bracket

import "sort"

// Standing is one row of a group-stage ranking table.
type Standing struct {
	ParticipantID string `json:"participant_id"`
	Played        int    `json:"played"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
}

// Standings computes the ranking table for a group-stage tournament
// from its Final matches. Ranking is by wins; a two-way tie is broken
// by the head-to-head result. Larger tie groups can be cyclic (A beat
// B beat C beat A), so they keep seeding order.
func Standings(t *Tournament) []Standing {
	rows := make(map[string]*Standing, len(t.Participants))
	order := make(map[string]int, len(t.Participants))
	for i, p := range t.Participants {
		rows[p] = &Standing{ParticipantID: p}
		order[p] = i
	}

	// head-to-head winners, keyed by the pair
	h2h := make(map[[2]string]string)

	for _, m := range t.Matches {
		if m.Status != MatchFinal || m.WinnerID == "" {
			continue
		}
		for _, p := range m.Slots {
			if row := rows[p]; row != nil {
				row.Played++
				if p == m.WinnerID {
					row.Wins++
				} else {
					row.Losses++
				}
			}
		}
		a, b := m.Slots[0], m.Slots[1]
		if a > b {
			a, b = b, a
		}
		h2h[[2]string{a, b}] = m.WinnerID
	}

	out := make([]Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return order[out[i].ParticipantID] < order[out[j].ParticipantID]
	})

	// settle two-way ties by their head-to-head result
	for lo := 0; lo < len(out); {
		hi := lo + 1
		for hi < len(out) && out[hi].Wins == out[lo].Wins {
			hi++
		}
		if hi-lo == 2 {
			a, b := out[lo].ParticipantID, out[lo+1].ParticipantID
			ka, kb := a, b
			if ka > kb {
				ka, kb = kb, ka
			}
			if w, ok := h2h[[2]string{ka, kb}]; ok && w == b {
				out[lo], out[lo+1] = out[lo+1], out[lo]
			}
		}
		lo = hi
	}
	return out
}
