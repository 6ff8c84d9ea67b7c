// Package events fans candidate progress events out to live subscribers.
package events

import (
	"context"
	"fmt"

	"github.com/terra-clan/progression-engine/internal/models"
)

// Bus publishes progress events and streams them per candidate
type Bus interface {
	Publish(ctx context.Context, ev models.ProgressEvent) error
	// Subscribe streams the candidate's events until ctx is done.
	// The returned channel is closed when the subscription ends.
	Subscribe(ctx context.Context, candidateID string) (<-chan models.ProgressEvent, error)
	Close() error
}

// Channel returns the pub/sub channel carrying a candidate's events
func Channel(candidateID string) string {
	return fmt.Sprintf("progress:%s", candidateID)
}
