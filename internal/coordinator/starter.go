package coordinator

import (
	"context"
	"errors"
	"log"
	"time"

	"arena-platform/backend/internal/locks"
)

// Starter seeds scheduled tournaments. A background poller picks up
// open tournaments whose start time has passed and runs SeedTournament
// through the coordinator's normal mutation path, so auto-seeding obeys
// the same single-writer discipline as manual seeding.
type Starter struct {
	coordinator *Coordinator
	interval    time.Duration
	stopChan    chan struct{}
}

// NewStarter creates a starter polling at the given interval
func NewStarter(coordinator *Coordinator, interval time.Duration) *Starter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Starter{
		coordinator: coordinator,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins monitoring tournaments for their start conditions
func (s *Starter) Start() {
	log.Println("Tournament starter service started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkTournaments()
		case <-s.stopChan:
			log.Println("Tournament starter service stopped")
			return
		}
	}
}

// Stop stops the starter service
func (s *Starter) Stop() {
	close(s.stopChan)
}

func (s *Starter) checkTournaments() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	ids, err := s.coordinator.store.DueForSeeding(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("Error fetching due tournaments: %v", err)
		return
	}

	for _, id := range ids {
		err := s.coordinator.SeedTournament(ctx, id)
		switch {
		case err == nil:
			log.Printf("Auto-seeded scheduled tournament %s", id)
		case errors.Is(err, locks.ErrLockTimeout):
			// another writer holds the tournament, the next tick retries
		default:
			log.Printf("Failed to auto-seed tournament %s: %v", id, err)
		}
	}
}
