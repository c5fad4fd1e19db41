// Package events fans session updates out to connected UIs.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types.
const (
	TypeSnapshot      = "snapshot"
	TypeLevel         = "level"
	TypeCapture       = "capture"
	TypePlayback      = "playback"
	TypeTranscription = "transcription"
	TypeError         = "error"
)

type Event struct {
	Type        string    `json:"type"`
	InterviewID string    `json:"interview_id"`
	At          time.Time `json:"at"`
	Data        any       `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber delivers the encoded events of one interview until cancel is called.
type Subscriber interface {
	Subscribe(ctx context.Context, interviewID string) (msgs <-chan []byte, cancel func(), err error)
}

type Bus interface {
	Publisher
	Subscriber
}

// Channel is the Pub/Sub channel of an interview.
func Channel(interviewID string) string {
	return "interview:" + interviewID + ":events"
}

func encode(e Event) ([]byte, error) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return json.Marshal(e)
}

// RedisBus publishes over Redis Pub/Sub so any agent process can serve the UI.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, Channel(e.InterviewID), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, interviewID string) (<-chan []byte, func(), error) {
	ps := b.rdb.Subscribe(ctx, Channel(interviewID))
	// wait for the subscription confirmation so no early event is lost
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan []byte, 64)
	done := make(chan struct{})
	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			select {
			case <-done:
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(m.Payload):
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, cancel, nil
}

// Hub is the in-process Bus used when Redis is not configured. Slow
// subscribers drop events rather than block publishers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan []byte]struct{}{}}
}

func (h *Hub) Publish(ctx context.Context, e Event) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[e.InterviewID] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, interviewID string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	if h.subs[interviewID] == nil {
		h.subs[interviewID] = map[chan []byte]struct{}{}
	}
	h.subs[interviewID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[interviewID], ch)
			if len(h.subs[interviewID]) == 0 {
				delete(h.subs, interviewID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
