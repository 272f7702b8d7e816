package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a platform user
type User struct {
	ID           string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Username     string    `gorm:"column:username;type:varchar(50);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"column:email;type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// TournamentRecord is the persisted form of a tournament. The full
// bracket state is serialized as one JSON document in the bracket
// column and replaced atomically on every mutation; the scalar columns
// exist so listings and the auto-seeder can query without decoding
// every bracket.
type TournamentRecord struct {
	ID               string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Name             string         `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Format           string         `gorm:"column:format;type:varchar(32);not null" json:"format"`
	Status           string         `gorm:"column:status;type:varchar(32);default:open;index:idx_status" json:"status"`
	CreatorID        *string        `gorm:"column:creator_id;type:varchar(36);index:idx_creator" json:"creator_id,omitempty"`
	ParticipantCount int            `gorm:"column:participant_count;default:0" json:"participant_count"`
	WinnerID         *string        `gorm:"column:winner_id;type:varchar(36)" json:"winner_id,omitempty"`
	Bracket          string         `gorm:"column:bracket;type:json" json:"-"`
	StartTime        *time.Time     `gorm:"column:start_time" json:"start_time,omitempty"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	SeededAt         *time.Time     `gorm:"column:seeded_at" json:"seeded_at,omitempty"`
	CompletedAt      *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for TournamentRecord model
func (TournamentRecord) TableName() string {
	return "tournaments"
}

// RoomEvent is one journaled row of the event stream for a room.
// (room_id, seq) is unique because sequence numbers are assigned under
// the room's publish lock.
type RoomEvent struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RoomID    string    `gorm:"column:room_id;type:varchar(100);not null;uniqueIndex:unique_room_seq;index:idx_room" json:"room_id"`
	Seq       uint64    `gorm:"column:seq;not null;uniqueIndex:unique_room_seq" json:"seq"`
	EventType string    `gorm:"column:event_type;type:varchar(50);not null" json:"event_type"`
	Payload   string    `gorm:"column:payload;type:json" json:"payload"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for RoomEvent model
func (RoomEvent) TableName() string {
	return "room_events"
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CreateTournamentRequest represents the request to create a tournament
type CreateTournamentRequest struct {
	Name      string     `json:"name" binding:"required"`
	Format    string     `json:"format" binding:"required"`
	StartTime *time.Time `json:"start_time,omitempty"`
}

// ReportResultRequest carries a match result submission
type ReportResultRequest struct {
	WinnerID string `json:"winner_id" binding:"required"`
	Score    string `json:"score,omitempty"`
}

// DisputeRequest opens a dispute on a reported result
type DisputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ResolveDisputeRequest settles a dispute, optionally correcting the winner
type ResolveDisputeRequest struct {
	WinnerID string `json:"winner_id" binding:"required"`
	Score    string `json:"score,omitempty"`
}
