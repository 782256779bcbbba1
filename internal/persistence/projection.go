package persistence

import (
	"context"

	"meshmon/internal/bus"
	"meshmon/internal/connectors"
	"meshmon/internal/domain"
)

// WriteQueue decouples the projection from the writer goroutine.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

// SnapshotWriter is the slice of the repo the projection needs.
type SnapshotWriter interface {
	Replace(ctx context.Context, connectionID string, snap domain.DeviceSnapshot) error
}

// StartSnapshotProjection mirrors every published snapshot into the cache.
// It consumes events until ctx is cancelled or the bus closes.
func StartSnapshotProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, repo SnapshotWriter) {
	sub := b.Subscribe(connectors.TopicSnapshot)

	go func() {
		defer b.Unsubscribe(sub, connectors.TopicSnapshot)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				event, ok := raw.(connectors.SnapshotEvent)
				if !ok {
					continue
				}
				queue.Enqueue("replace_snapshot", func(writeCtx context.Context) error {
					return repo.Replace(writeCtx, event.ConnectionID, event.Snapshot)
				})
			}
		}
	}()
}
