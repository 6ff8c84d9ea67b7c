package events

import (
	"context"
	"sync"

	"github.com/terra-clan/progression-engine/internal/models"
)

const subscriberBuffer = 16

// MemoryBus fans events out inside one process. Used when Redis is
// disabled. Slow subscribers drop events rather than block publishers.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan models.ProgressEvent]struct{}
	closed bool
}

// NewMemoryBus creates an in-process event bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[string]map[chan models.ProgressEvent]struct{}),
	}
}

// Publish delivers the event to the candidate's current subscribers
func (b *MemoryBus) Publish(_ context.Context, ev models.ProgressEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[ev.CandidateID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done
func (b *MemoryBus) Subscribe(ctx context.Context, candidateID string) (<-chan models.ProgressEvent, error) {
	ch := make(chan models.ProgressEvent, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if b.subs[candidateID] == nil {
		b.subs[candidateID] = make(map[chan models.ProgressEvent]struct{})
	}
	b.subs[candidateID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(candidateID, ch)
	}()

	return ch, nil
}

func (b *MemoryBus) remove(candidateID string, ch chan models.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[candidateID][ch]; !ok {
		return
	}
	delete(b.subs[candidateID], ch)
	if len(b.subs[candidateID]) == 0 {
		delete(b.subs, candidateID)
	}
	close(ch)
}

// Close ends every subscription
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, chans := range b.subs {
		for ch := range chans {
			close(ch)
		}
		delete(b.subs, id)
	}
	b.closed = true
	return nil
}
