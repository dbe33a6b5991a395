package live

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"bedlog-backend/internal/bed"
)

// ErrAlreadyMounted is returned by Mount while a subscription is live.
var ErrAlreadyMounted = errors.New("mirror already mounted")

// Mirror is the in-memory copy of the bed collection for one view. It owns
// exactly one feed subscription between Mount and release, and the feed
// callback is its only writer.
type Mirror struct {
	feed Feed
	log  *zap.Logger

	mu        sync.RWMutex
	records   []bed.Record
	err       error
	ready     chan struct{}
	readyOnce sync.Once
	mounted   bool
	listeners map[int]func()
	nextID    int
}

// NewMirror creates an unmounted mirror over feed.
func NewMirror(feed Feed, log *zap.Logger) *Mirror {
	return &Mirror{
		feed:      feed,
		log:       log,
		ready:     make(chan struct{}),
		listeners: make(map[int]func()),
	}
}

// Mount subscribes to the feed. The subscription is released when ctx is
// done or release is called, whichever comes first; release is idempotent.
func (m *Mirror) Mount(ctx context.Context) (release func(), err error) {
	m.mu.Lock()
	if m.mounted {
		m.mu.Unlock()
		return nil, ErrAlreadyMounted
	}
	m.mounted = true
	m.mu.Unlock()

	unsubscribe := m.feed.Subscribe(m.apply, m.fail)

	stop := make(chan struct{})
	var once sync.Once
	release = func() {
		once.Do(func() {
			close(stop)
			unsubscribe()
			m.mu.Lock()
			m.mounted = false
			m.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			release()
		case <-stop:
		}
	}()
	return release, nil
}

func (m *Mirror) apply(records []bed.Record) {
	cp := make([]bed.Record, len(records))
	copy(cp, records)

	m.mu.Lock()
	m.records, m.err = cp, nil
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	m.readyOnce.Do(func() { close(m.ready) })
	for _, fn := range listeners {
		fn()
	}
}

func (m *Mirror) fail(err error) {
	m.log.Error("bed feed failed", zap.Error(err))

	m.mu.Lock()
	m.err = err
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	m.readyOnce.Do(func() { close(m.ready) })
	for _, fn := range listeners {
		fn()
	}
}

func (m *Mirror) snapshotListeners() []func() {
	out := make([]func(), 0, len(m.listeners))
	for _, fn := range m.listeners {
		out = append(out, fn)
	}
	return out
}

// Ready reports whether the first snapshot or failure has arrived.
func (m *Mirror) Ready() bool {
	select {
	case <-m.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until the first snapshot or failure arrives.
func (m *Mirror) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnChange registers fn to run after every snapshot or failure.
func (m *Mirror) OnChange(fn func()) (stop func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Err is the last feed failure, cleared by the next good snapshot.
func (m *Mirror) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Beds returns a copy of the current collection in feed order.
func (m *Mirror) Beds() []bed.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make([]bed.Record, len(m.records))
	copy(cp, m.records)
	return cp
}

// Get finds one bed by id.
func (m *Mirror) Get(id string) (bed.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, true
		}
	}
	return bed.Record{}, false
}

// View is the searched and sorted projection of the collection.
func (m *Mirror) View(search string, sortCfg bed.SortConfig) []bed.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bed.Derive(m.records, search, sortCfg)
}

// Summary is the per-type status tally of the collection.
func (m *Mirror) Summary() bed.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bed.Summarize(m.records)
}
