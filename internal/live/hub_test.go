package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bedlog-backend/internal/bed"
)

type fakeSource struct {
	mu      sync.Mutex
	records []bed.Record
	err     error
	calls   int
}

func (f *fakeSource) ListBeds(ctx context.Context) ([]bed.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cp := make([]bed.Record, len(f.records))
	copy(cp, f.records)
	return cp, nil
}

func (f *fakeSource) set(records []bed.Record, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records, f.err = records, err
}

type countingNotifier struct {
	n   atomic.Int32
	err error
}

func (c *countingNotifier) Publish(ctx context.Context) error {
	c.n.Add(1)
	return c.err
}

func record(id, location string) bed.Record {
	return bed.Record{
		ID: id,
		Draft: bed.Draft{
			BedType:  bed.TypeRegular,
			BedArea:  "ICU",
			Status:   bed.StatusAvailable,
			Location: location,
		},
		Version: 1,
	}
}

// collector records the last snapshot and error a subscriber saw.
type collector struct {
	mu      sync.Mutex
	last    []bed.Record
	lastErr error
	calls   int
}

func (c *collector) onRecords(records []bed.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = records
	c.calls++
}

func (c *collector) onErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	c.calls++
}

func (c *collector) snapshot() ([]bed.Record, error, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.lastErr, c.calls
}

func TestHub_SubscribeDeliversInitialSnapshot(t *testing.T) {
	src := &fakeSource{records: []bed.Record{record("a", "Room 1")}}
	hub := NewHub(src, nil, zap.NewNop())

	var c collector
	unsubscribe := hub.Subscribe(c.onRecords, c.onErr)
	defer unsubscribe()

	assert.Eventually(t, func() bool {
		last, _, _ := c.snapshot()
		return len(last) == 1 && last[0].ID == "a"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.Subscribers())
}

func TestHub_ChangedPublishesToEverySubscriber(t *testing.T) {
	src := &fakeSource{records: []bed.Record{record("a", "Room 1")}}
	notifier := &countingNotifier{}
	hub := NewHub(src, notifier, zap.NewNop())
	require.NoError(t, hub.Refresh(context.Background()))

	var c1, c2 collector
	defer hub.Subscribe(c1.onRecords, c1.onErr)()
	defer hub.Subscribe(c2.onRecords, c2.onErr)()

	src.set([]bed.Record{record("b", "Room 2"), record("a", "Room 1")}, nil)
	require.NoError(t, hub.Changed(context.Background()))

	for _, c := range []*collector{&c1, &c2} {
		c := c
		assert.Eventually(t, func() bool {
			last, _, _ := c.snapshot()
			return len(last) == 2 && last[0].ID == "b"
		}, time.Second, 5*time.Millisecond)
	}
	assert.Equal(t, int32(1), notifier.n.Load())
}

func TestHub_NotifierFailureDoesNotFailChange(t *testing.T) {
	src := &fakeSource{}
	hub := NewHub(src, &countingNotifier{err: errors.New("redis down")}, zap.NewNop())

	assert.NoError(t, hub.Changed(context.Background()))
}

func TestHub_LoadFailureReachesOnErr(t *testing.T) {
	loadErr := errors.New("permission denied")
	src := &fakeSource{err: loadErr}
	hub := NewHub(src, nil, zap.NewNop())

	var c collector
	defer hub.Subscribe(c.onRecords, c.onErr)()

	assert.Eventually(t, func() bool {
		_, err, _ := c.snapshot()
		return errors.Is(err, loadErr)
	}, time.Second, 5*time.Millisecond)

	err := hub.Refresh(context.Background())
	assert.ErrorIs(t, err, loadErr)
}

func TestHub_NoCallbacksAfterUnsubscribe(t *testing.T) {
	src := &fakeSource{records: []bed.Record{record("a", "Room 1")}}
	hub := NewHub(src, nil, zap.NewNop())
	require.NoError(t, hub.Refresh(context.Background()))

	var c collector
	unsubscribe := hub.Subscribe(c.onRecords, c.onErr)
	assert.Eventually(t, func() bool {
		_, _, calls := c.snapshot()
		return calls == 1
	}, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, hub.Subscribers())

	for i := 0; i < 5; i++ {
		src.set([]bed.Record{record("x", "Room 9")}, nil)
		require.NoError(t, hub.Refresh(context.Background()))
	}
	time.Sleep(20 * time.Millisecond)

	last, _, calls := c.snapshot()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "a", last[0].ID)
}

func TestHub_SlowSubscriberSeesLatest(t *testing.T) {
	src := &fakeSource{records: []bed.Record{record("v0", "Room 0")}}
	hub := NewHub(src, nil, zap.NewNop())
	require.NoError(t, hub.Refresh(context.Background()))

	gate := make(chan struct{})
	var mu sync.Mutex
	var seen []string
	unsubscribe := hub.Subscribe(func(records []bed.Record) {
		<-gate
		mu.Lock()
		seen = append(seen, records[0].ID)
		mu.Unlock()
	}, nil)
	defer unsubscribe()

	for _, id := range []string{"v1", "v2", "v3"} {
		src.set([]bed.Record{record(id, "Room")}, nil)
		require.NoError(t, hub.Refresh(context.Background()))
	}
	close(gate)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == "v3"
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, len(seen), 2)
}
