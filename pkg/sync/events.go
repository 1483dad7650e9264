package sync

import (
	"sync"
	"time"

	"github.com/sidkik/studip-sync/pkg/studip"
)

// ProgressEvent reports the fraction of a course's scheduled downloads that
// have completed.
type ProgressEvent struct {
	Course   *studip.Course
	Fraction float64
	Time     time.Time
}

// FinishedEvent is the last event of a course's pass. Files lists every
// destination that was scheduled, whether or not its download ran.
type FinishedEvent struct {
	Course *studip.Course
	Files  []string
	Time   time.Time
}

// NextSyncEvent announces when the next cycle starts. The zero Unix time
// means that the loop stopped after a one-shot run.
type NextSyncEvent struct {
	At time.Time
}

// ListenerHandle identifies a registered callback.
type ListenerHandle uint64

type listener struct {
	handle   ListenerHandle
	progress func(ProgressEvent)
	finished func(FinishedEvent)
	nextSync func(NextSyncEvent)
}

// Listeners is an ordered registry of event callbacks. Events are delivered
// synchronously in registration order on the goroutine that emits them, so
// callbacks must not block.
type Listeners struct {
	lock       sync.Mutex
	lastHandle ListenerHandle
	listeners  []listener
}

func NewListeners() *Listeners {
	return &Listeners{}
}

func (l *Listeners) AddProgressListener(fn func(ProgressEvent)) ListenerHandle {
	return l.add(listener{progress: fn})
}

func (l *Listeners) AddFinishedListener(fn func(FinishedEvent)) ListenerHandle {
	return l.add(listener{finished: fn})
}

func (l *Listeners) AddNextSyncListener(fn func(NextSyncEvent)) ListenerHandle {
	return l.add(listener{nextSync: fn})
}

// RemoveListener unregisters the callback. Unknown handles are ignored.
func (l *Listeners) RemoveListener(handle ListenerHandle) {
	l.lock.Lock()
	defer l.lock.Unlock()

	for i, listener := range l.listeners {
		if listener.handle == handle {
			l.listeners = append(l.listeners[:i:i], l.listeners[i+1:]...)
			return
		}
	}
}

func (l *Listeners) add(listener listener) ListenerHandle {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.lastHandle++
	listener.handle = l.lastHandle
	l.listeners = append(l.listeners, listener)
	return listener.handle
}

func (l *Listeners) snapshot() []listener {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]listener(nil), l.listeners...)
}

func (l *Listeners) emitProgress(event ProgressEvent) {
	for _, listener := range l.snapshot() {
		if listener.progress != nil {
			listener.progress(event)
		}
	}
}

func (l *Listeners) emitFinished(event FinishedEvent) {
	for _, listener := range l.snapshot() {
		if listener.finished != nil {
			listener.finished(event)
		}
	}
}

func (l *Listeners) emitNextSync(event NextSyncEvent) {
	for _, listener := range l.snapshot() {
		if listener.nextSync != nil {
			listener.nextSync(event)
		}
	}
}
