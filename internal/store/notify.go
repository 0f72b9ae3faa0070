package store

import (
	"sync"
)

// Notifier fans out table change notifications to listeners.
//
// A notification is a trigger only: it says that one of the watched tables was written,
// never what was written. Listeners must re-read whatever they depend on.
type Notifier struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]*Listener
}

// NewNotifier creates an empty notifier
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[uint64]*Listener)}
}

// Listener receives coalesced change triggers for a set of tables
type Listener struct {
	id       uint64
	tables   map[string]struct{}
	changes  chan struct{}
	notifier *Notifier
	once     sync.Once
}

// Subscribe registers a listener for writes to any of the given tables.
// With no tables the listener fires on every write.
func (n *Notifier) Subscribe(tables ...string) *Listener {
	l := &Listener{
		tables:   make(map[string]struct{}, len(tables)),
		changes:  make(chan struct{}, 1),
		notifier: n,
	}
	for _, t := range tables {
		l.tables[t] = struct{}{}
	}

	n.mu.Lock()
	n.nextID++
	l.id = n.nextID
	n.listeners[l.id] = l
	n.mu.Unlock()

	return l
}

// Publish notifies every listener watching one of the written tables.
// Pending triggers coalesce: a listener that has not consumed its previous
// trigger is not signalled twice.
func (n *Notifier) Publish(tables ...string) {
	if len(tables) == 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, l := range n.listeners {
		if !l.watches(tables) {
			continue
		}
		select {
		case l.changes <- struct{}{}:
		default:
		}
	}
}

// ListenerCount returns the number of registered listeners
func (n *Notifier) ListenerCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

func (l *Listener) watches(tables []string) bool {
	if len(l.tables) == 0 {
		return true
	}
	for _, t := range tables {
		if _, ok := l.tables[t]; ok {
			return true
		}
	}
	return false
}

// Changes returns the trigger channel. It carries no data.
func (l *Listener) Changes() <-chan struct{} {
	return l.changes
}

// Close unregisters the listener. Safe to call more than once.
func (l *Listener) Close() {
	l.once.Do(func() {
		l.notifier.mu.Lock()
		delete(l.notifier.listeners, l.id)
		l.notifier.mu.Unlock()
	})
}
