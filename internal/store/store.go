package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"arena-platform/backend/internal/bracket"
	"arena-platform/backend/internal/models"
)

// ErrTournamentNotFound occurs when a tournament ID has no stored row
var ErrTournamentNotFound = errors.New("tournament not found")

// TournamentStore persists tournaments. Each tournament's bracket is
// one JSON document replaced wholesale on save, so a row is always a
// consistent snapshot; partial bracket writes cannot happen.
type TournamentStore struct {
	db *gorm.DB
}

// NewTournamentStore creates a store on the given GORM connection
func NewTournamentStore(db *gorm.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

// Create inserts a new tournament row
func (s *TournamentStore) Create(ctx context.Context, t *bracket.Tournament, creatorID *string, startTime *time.Time) error {
	record, err := s.toRecord(t)
	if err != nil {
		return err
	}
	record.CreatorID = creatorID
	record.StartTime = startTime

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

// Load reads one tournament and decodes its bracket
func (s *TournamentStore) Load(ctx context.Context, id string) (*bracket.Tournament, error) {
	var record models.TournamentRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tournament: %w", err)
	}

	var t bracket.Tournament
	if err := json.Unmarshal([]byte(record.Bracket), &t); err != nil {
		return nil, fmt.Errorf("failed to decode bracket for tournament %s: %w", id, err)
	}
	return &t, nil
}

// Save replaces the stored snapshot with the tournament's current state
func (s *TournamentStore) Save(ctx context.Context, t *bracket.Tournament) error {
	record, err := s.toRecord(t)
	if err != nil {
		return err
	}

	// creator and start time are set at creation and not derivable
	// from the bracket, leave those columns alone
	result := s.db.WithContext(ctx).Model(&models.TournamentRecord{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"name":              record.Name,
			"format":            record.Format,
			"status":            record.Status,
			"participant_count": record.ParticipantCount,
			"winner_id":         record.WinnerID,
			"bracket":           record.Bracket,
			"seeded_at":         record.SeededAt,
			"completed_at":      record.CompletedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save tournament: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTournamentNotFound
	}
	return nil
}

// List returns tournament rows, optionally filtered by status, newest first
func (s *TournamentStore) List(ctx context.Context, status string) ([]models.TournamentRecord, error) {
	var records []models.TournamentRecord
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return records, nil
}

// Get returns one tournament row without decoding the bracket
func (s *TournamentStore) Get(ctx context.Context, id string) (*models.TournamentRecord, error) {
	var record models.TournamentRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return &record, nil
}

// DueForSeeding returns IDs of open tournaments whose scheduled start
// time has passed and that have enough participants to seed
func (s *TournamentStore) DueForSeeding(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.TournamentRecord{}).
		Where("status = ? AND start_time IS NOT NULL AND start_time <= ? AND participant_count >= 2",
			string(bracket.StatusOpen), now).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due tournaments: %w", err)
	}
	return ids, nil
}

// Active returns rows for tournaments with live brackets, used by
// startup recovery
func (s *TournamentStore) Active(ctx context.Context) ([]models.TournamentRecord, error) {
	var records []models.TournamentRecord
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{string(bracket.StatusSeeded), string(bracket.StatusInProgress)}).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query active tournaments: %w", err)
	}
	return records, nil
}

func (s *TournamentStore) toRecord(t *bracket.Tournament) (*models.TournamentRecord, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bracket: %w", err)
	}

	record := &models.TournamentRecord{
		ID:               t.ID,
		Name:             t.Name,
		Format:           string(t.Format),
		Status:           string(t.Status),
		ParticipantCount: len(t.Participants),
		Bracket:          string(raw),
		CreatedAt:        t.CreatedAt,
		SeededAt:         t.SeededAt,
		CompletedAt:      t.CompletedAt,
	}
	if t.WinnerID != "" {
		record.WinnerID = &t.WinnerID
	}
	return record, nil
}
