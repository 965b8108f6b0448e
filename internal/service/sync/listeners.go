package sync

import "sync"

// OnSyncStatusChange subscribes fn to synced/unsynced transitions and returns
// a function that unsubscribes it. Listeners run in subscription order; a
// transition raised from inside a listener is delivered after the current
// one has reached every listener.
func (m *Manager) OnSyncStatusChange(fn func(synced bool)) (unsubscribe func()) {
	return m.listeners.add(fn)
}

type listener struct {
	id int
	fn func(synced bool)
}

type listeners struct {
	mu        sync.Mutex
	nextID    int
	list      []listener
	queue     []bool
	notifying bool
}

func (l *listeners) add(fn func(bool)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.list = append(l.list, listener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, ln := range l.list {
				if ln.id == id {
					l.list = append(l.list[:i:i], l.list[i+1:]...)
					return
				}
			}
		})
	}
}

// enqueue records a transition. Callers hold the transition lock so the
// queue preserves transition order.
func (l *listeners) enqueue(synced bool) {
	l.mu.Lock()
	l.queue = append(l.queue, synced)
	l.mu.Unlock()
}

// deliver runs queued transitions through the listeners unless another
// goroutine is already doing so.
func (l *listeners) deliver() {
	l.mu.Lock()
	if l.notifying {
		l.mu.Unlock()
		return
	}
	l.notifying = true
	for len(l.queue) > 0 {
		next := l.queue[0]
		l.queue = l.queue[1:]
		snapshot := append([]listener(nil), l.list...)
		l.mu.Unlock()
		for _, ln := range snapshot {
			ln.fn(next)
		}
		l.mu.Lock()
	}
	l.notifying = false
	l.mu.Unlock()
}
