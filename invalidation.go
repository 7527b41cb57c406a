package pawtrail

import "sync"

// invalidationBroadcast fans the zero-payload session invalidation signal
// out to any number of subscribers. Publishing is non-blocking: each
// subscriber channel holds at most one pending notification, so a slow
// consumer coalesces repeated signals instead of stalling the pipeline.
type invalidationBroadcast struct {
	mu   sync.Mutex
	subs []chan struct{}
}

func newInvalidationBroadcast() *invalidationBroadcast {
	return &invalidationBroadcast{}
}

func (b *invalidationBroadcast) subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	return ch
}

func (b *invalidationBroadcast) publish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
