package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"arena-platform/backend/internal/bracket"
)

// RecoverActiveTournaments validates every live bracket on startup.
// Rows that fail to decode or violate structural invariants are logged
// and skipped rather than aborting boot; a corrupt tournament stays
// untouched for manual inspection while the rest of the system runs.
func (c *Coordinator) RecoverActiveTournaments(ctx context.Context) (int, error) {
	records, err := c.store.Active(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load active tournaments: %w", err)
	}

	recovered := 0
	for _, record := range records {
		var t bracket.Tournament
		if err := json.Unmarshal([]byte(record.Bracket), &t); err != nil {
			log.Printf("[RECOVERY] Tournament %s has undecodable bracket, skipping: %v", record.ID, err)
			continue
		}
		if err := validateBracket(&t); err != nil {
			log.Printf("[RECOVERY] Tournament %s failed validation, skipping: %v", record.ID, err)
			continue
		}
		recovered++
	}

	log.Printf("[RECOVERY] Validated %d/%d active tournaments", recovered, len(records))
	return recovered, nil
}

// validateBracket checks the structural invariants a stored bracket
// must satisfy before result submissions are accepted against it.
func validateBracket(t *bracket.Tournament) error {
	if len(t.Matches) == 0 {
		return fmt.Errorf("no matches in status %s", t.Status)
	}

	for _, m := range t.Matches {
		if m.WinnerAdvancesTo == "" {
			continue
		}
		next := t.Match(m.WinnerAdvancesTo)
		if next == nil {
			return fmt.Errorf("match %s links to unknown match %s", m.ID, m.WinnerAdvancesTo)
		}
		if m.AdvanceSlot != 0 && m.AdvanceSlot != 1 {
			return fmt.Errorf("match %s has invalid advance slot %d", m.ID, m.AdvanceSlot)
		}
		if m.Status == bracket.MatchFinal && m.WinnerID != "" && !next.HasParticipant(m.WinnerID) {
			return fmt.Errorf("final match %s winner %s not propagated to %s", m.ID, m.WinnerID, next.ID)
		}
	}

	if t.Format == bracket.FormatSingleElimination && t.Terminal() == nil {
		return fmt.Errorf("no terminal match")
	}
	return nil
}
