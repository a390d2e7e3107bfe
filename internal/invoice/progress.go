package invoice

import (
	"sync"

	"github.com/zombor/invoice-extractor/internal/scanning"
)

const subscriberBuffer = 16

// ProgressFeed fans extraction progress out to subscribers. Report never
// blocks: a subscriber that falls behind misses events.
type ProgressFeed struct {
	mu     sync.Mutex
	latest scanning.Progress
	subs   map[chan scanning.Progress]struct{}
}

// NewProgressFeed creates an empty feed
func NewProgressFeed() *ProgressFeed {
	return &ProgressFeed{subs: make(map[chan scanning.Progress]struct{})}
}

// Report records p as the latest event and offers it to every subscriber
func (f *ProgressFeed) Report(p scanning.Progress) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.latest = p
	for ch := range f.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Latest returns the most recent event
func (f *ProgressFeed) Latest() scanning.Progress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// Clear forgets the latest event
func (f *ProgressFeed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = scanning.Progress{}
}

// Subscribe returns the latest event, a channel of the events reported after
// it in report order, and a function that unsubscribes and closes the channel.
func (f *ProgressFeed) Subscribe() (scanning.Progress, <-chan scanning.Progress, func()) {
	ch := make(chan scanning.Progress, subscriberBuffer)

	f.mu.Lock()
	latest := f.latest
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return latest, ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}
