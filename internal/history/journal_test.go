package history

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"arena-platform/backend/internal/events"
	"arena-platform/backend/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?mode=memory"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.RoomEvent{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func publish(t *testing.T, j *Journal, room string, seq uint64, typ events.Type) {
	t.Helper()
	err := j.Record(events.Event{
		Room:    room,
		Seq:     seq,
		Type:    typ,
		Payload: map[string]string{"k": "v"},
		At:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Failed to record event: %v", err)
	}
}

func TestRecordAndReadBack(t *testing.T) {
	j := NewJournal(setupTestDB(t))
	ctx := context.Background()

	publish(t, j, "tournament:t1", 1, events.TypeParticipantJoined)
	publish(t, j, "tournament:t1", 2, events.TypeMatchUpdated)
	publish(t, j, "tournament:t1", 3, events.TypeChatMessage)
	publish(t, j, "tournament:t2", 1, events.TypeMatchUpdated)

	rows, err := j.EventsSince(ctx, "tournament:t1", 0)
	if err != nil {
		t.Fatalf("Failed to read events: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Seq != uint64(i+1) {
			t.Errorf("Row %d: expected seq %d, got %d", i, i+1, row.Seq)
		}
		if row.RoomID != "tournament:t1" {
			t.Errorf("Row %d leaked from another room: %s", i, row.RoomID)
		}
	}
}

func TestEventsSinceSkipsSeen(t *testing.T) {
	j := NewJournal(setupTestDB(t))
	ctx := context.Background()

	for seq := uint64(1); seq <= 5; seq++ {
		publish(t, j, "tournament:t1", seq, events.TypeChatMessage)
	}

	rows, err := j.EventsSince(ctx, "tournament:t1", 3)
	if err != nil {
		t.Fatalf("Failed to read events: %v", err)
	}
	if len(rows) != 2 || rows[0].Seq != 4 || rows[1].Seq != 5 {
		t.Errorf("Expected seqs [4 5], got %+v", rows)
	}
}

func TestPurgeRoom(t *testing.T) {
	j := NewJournal(setupTestDB(t))
	ctx := context.Background()

	publish(t, j, "tournament:t1", 1, events.TypeChatMessage)
	publish(t, j, "tournament:t2", 1, events.TypeChatMessage)

	if err := j.PurgeRoom(ctx, "tournament:t1"); err != nil {
		t.Fatalf("Failed to purge room: %v", err)
	}

	rows, err := j.EventsSince(ctx, "tournament:t1", 0)
	if err != nil {
		t.Fatalf("Failed to read events: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected purged room to be empty, got %d rows", len(rows))
	}

	other, _ := j.EventsSince(ctx, "tournament:t2", 0)
	if len(other) != 1 {
		t.Errorf("Purge must not touch other rooms, got %d rows", len(other))
	}
}

func TestPurgeAllowsSequenceReuse(t *testing.T) {
	j := NewJournal(setupTestDB(t))
	ctx := context.Background()

	publish(t, j, "tournament:t1", 1, events.TypeChatMessage)
	publish(t, j, "tournament:t1", 2, events.TypeChatMessage)

	if err := j.PurgeRoom(ctx, "tournament:t1"); err != nil {
		t.Fatalf("Failed to purge room: %v", err)
	}

	// a repopulated room restarts its numbering from 1
	publish(t, j, "tournament:t1", 1, events.TypeMatchUpdated)

	rows, err := j.EventsSince(ctx, "tournament:t1", 0)
	if err != nil {
		t.Fatalf("Failed to read events: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected only the new epoch's event, got %d rows", len(rows))
	}
	if rows[0].EventType != string(events.TypeMatchUpdated) {
		t.Errorf("Expected the new epoch's event type, got %s", rows[0].EventType)
	}
}

func TestDuplicateSequenceRejected(t *testing.T) {
	j := NewJournal(setupTestDB(t))

	publish(t, j, "tournament:t1", 1, events.TypeChatMessage)
	err := j.Record(events.Event{Room: "tournament:t1", Seq: 1, Type: events.TypeChatMessage, At: time.Now().UTC()})
	if err == nil {
		t.Fatal("Expected unique (room, seq) constraint to reject duplicate")
	}
}
