package events

import (
	"context"
	"log"
	"sync"
	"time"
)

// SubscriberSource resolves current room membership. Snapshots only:
// the bus never holds a live view of the subscriber set.
type SubscriberSource interface {
	SubscribersOf(roomID string) []string
}

// DeliverFunc hands an event to one subscriber's outbound queue. It
// must never block; a full queue is the subscriber's problem
// (drop-and-flag), not the publisher's.
type DeliverFunc func(sessionID string, ev Event)

// Recorder persists published events. Optional. PurgeRoom runs when a
// room is released: the sequence counter restarts from 1 on the next
// populate, so recorded rows from the previous epoch must go before
// the new numbering can be journaled.
type Recorder interface {
	Record(ev Event) error
	PurgeRoom(ctx context.Context, roomID string) error
}

// Bus routes typed events to every session subscribed to a room.
// Sequence assignment and fan-out happen under a per-room mutex, so
// all subscribers of a room observe events in exactly the publish
// order. Rooms are independent: publishing to one never waits on
// another.
type Bus struct {
	subs    SubscriberSource
	deliver DeliverFunc

	mu     sync.Mutex
	roomMu map[string]*roomState

	recorder Recorder
}

type roomState struct {
	mu  sync.Mutex
	seq uint64
}

// NewBus creates a bus fanning out to the given subscriber source.
func NewBus(subs SubscriberSource, deliver DeliverFunc) *Bus {
	return &Bus{
		subs:    subs,
		deliver: deliver,
		roomMu:  make(map[string]*roomState),
	}
}

// SetRecorder attaches an event recorder. Must be called before any
// Publish.
func (b *Bus) SetRecorder(r Recorder) { b.recorder = r }

func (b *Bus) room(roomID string) *roomState {
	b.mu.Lock()
	defer b.mu.Unlock()
	rs, ok := b.roomMu[roomID]
	if !ok {
		rs = &roomState{}
		b.roomMu[roomID] = rs
	}
	return rs
}

// Publish assigns the next sequence number for the room and enqueues
// the event on every current subscriber. Delivery to each subscriber
// is independent; a slow subscriber never delays the others or the
// publisher. Returns the published event.
func (b *Bus) Publish(roomID string, typ Type, payload interface{}) Event {
	rs := b.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.seq++
	ev := Event{
		Room:    roomID,
		Seq:     rs.seq,
		Type:    typ,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	if b.recorder != nil {
		if err := b.recorder.Record(ev); err != nil {
			log.Printf("[BUS] failed to record event room=%s seq=%d: %v", roomID, ev.Seq, err)
		}
	}

	for _, sessionID := range b.subs.SubscribersOf(roomID) {
		b.deliver(sessionID, ev)
	}
	return ev
}

// ReleaseRoom discards the room's sequence counter and purges its
// journal. Called when the last subscriber leaves: a later Join starts
// a fresh room with the counter reset, since no event continuity
// survives an empty room.
func (b *Bus) ReleaseRoom(roomID string) {
	b.mu.Lock()
	delete(b.roomMu, roomID)
	b.mu.Unlock()

	if b.recorder != nil {
		if err := b.recorder.PurgeRoom(context.Background(), roomID); err != nil {
			log.Printf("[BUS] Failed to purge journal for room %s: %v", roomID, err)
		}
	}
}
