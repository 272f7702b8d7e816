package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"gorm.io/gorm"

	"arena-platform/backend/internal/events"
	"arena-platform/backend/internal/models"
)

// Journal persists the event stream of every room to the room_events
// table. It plugs into the bus as its Recorder, so a row exists for
// each (room, seq) pair in publish order; clients that saw a
// queue_overflow marker resync by fetching the rows they missed.
type Journal struct {
	db *gorm.DB
}

// NewJournal creates a journal writing to the given GORM connection
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Record writes one published event. Called by the bus with the room's
// publish lock held, so (room_id, seq) rows are inserted in order.
func (j *Journal) Record(ev events.Event) error {
	payloadJSON := "{}"
	if ev.Payload != nil {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			log.Printf("[HISTORY] Failed to marshal payload for %s seq %d: %v", ev.Room, ev.Seq, err)
		} else {
			payloadJSON = string(raw)
		}
	}

	row := models.RoomEvent{
		RoomID:    ev.Room,
		Seq:       ev.Seq,
		EventType: string(ev.Type),
		Payload:   payloadJSON,
		CreatedAt: ev.At,
	}

	if err := j.db.Create(&row).Error; err != nil {
		log.Printf("[HISTORY] Failed to save event %s seq %d for room %s: %v", ev.Type, ev.Seq, ev.Room, err)
		return fmt.Errorf("failed to journal event: %w", err)
	}
	return nil
}

// EventsSince returns the journaled events of a room with seq greater
// than afterSeq, in sequence order.
func (j *Journal) EventsSince(ctx context.Context, roomID string, afterSeq uint64) ([]models.RoomEvent, error) {
	var rows []models.RoomEvent
	err := j.db.WithContext(ctx).
		Where("room_id = ? AND seq > ?", roomID, afterSeq).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read room events: %w", err)
	}
	return rows, nil
}

// PurgeRoom deletes a room's journal. Called when a room is released
// and its sequence counter resets, so stale rows cannot collide with
// the new numbering.
func (j *Journal) PurgeRoom(ctx context.Context, roomID string) error {
	result := j.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&models.RoomEvent{})
	if result.Error != nil {
		return fmt.Errorf("failed to purge room events: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("[HISTORY] Purged %d journaled events for room %s", result.RowsAffected, roomID)
	}
	return nil
}
