package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/model"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/tier"
)

// ── Fakes ───────────────────────────────────────────────────────────────────

type fakeQuerier struct {
	mu    sync.Mutex
	items []model.Listing
	errs  []error // consumed one per call, then nil
	calls int
}

func (f *fakeQuerier) ListVisible(_ context.Context, _ tier.Role) ([]model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]model.Listing(nil), f.items...), nil
}

func (f *fakeQuerier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeQuerier) setItems(items []model.Listing) {
	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
}

type fakeStream struct {
	mu       sync.Mutex
	chans    []chan model.ChangeEvent
	errs     []error // consumed one per Subscribe call, then nil
	released int
}

func (f *fakeStream) Subscribe(_ context.Context) (<-chan model.ChangeEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, nil, err
		}
	}
	ch := make(chan model.ChangeEvent, 8)
	f.chans = append(f.chans, ch)
	release := func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}
	return ch, release, nil
}

func (f *fakeStream) current() chan model.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chans[len(f.chans)-1]
}

func (f *fakeStream) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chans)
}

func (f *fakeStream) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

type testClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *testClock) set(at time.Time) {
	c.mu.Lock()
	c.at = at
	c.mu.Unlock()
}

func newTestSubscriber(role tier.Role, q Querier, st Stream, clk *testClock) *Subscriber {
	s := NewSubscriber(role, q, st, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	s.now = clk.now
	s.retryWait = 5 * time.Millisecond
	return s
}

// recvState skips intermediate updates until one with the wanted state
// arrives. The consumer channel coalesces under load, so tests must not
// assume every update is observed.
func recvState(t *testing.T, ch <-chan Update, want State) Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				t.Fatalf("updates channel closed while waiting for state %q", want)
			}
			if u.State == want {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %q", want)
		}
	}
}

// ── Tests ───────────────────────────────────────────────────────────────────

func TestSubscriber_ConnectDeliversSnapshot(t *testing.T) {
	connectAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuerier{items: []model.Listing{
		{ID: "b", Tier: "priority", Status: "active", CreatedAt: connectAt.Add(-time.Hour)},
	}}
	st := &fakeStream{}

	sub := newTestSubscriber(tier.RoleStandard, q, st, &testClock{at: connectAt})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sub.Run(ctx) }()

	u := recvState(t, sub.Updates(), StateSynced)
	if len(u.Items) != 1 || u.Items[0].ID != "b" {
		t.Fatalf("snapshot items = %v", u.Items)
	}
	if u.UnseenCount != 0 {
		t.Errorf("snapshot UnseenCount = %d, want 0", u.UnseenCount)
	}
}

func TestSubscriber_AppliesEventAndNotifies(t *testing.T) {
	connectAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuerier{}
	st := &fakeStream{}

	sub := newTestSubscriber(tier.RoleStandard, q, st, &testClock{at: connectAt})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sub.Run(ctx) }()

	recvState(t, sub.Updates(), StateSynced)

	fresh := model.Listing{ID: "n", Tier: "base", Status: "active", CreatedAt: connectAt.Add(time.Minute)}
	st.current() <- model.ChangeEvent{Op: model.OpInsert, After: &fresh}

	u := recvState(t, sub.Updates(), StateUpdating)
	if u.Notification == nil || u.Notification.ID != "n" {
		t.Fatalf("expected notification for n, got %v", u.Notification)
	}
	if u.UnseenCount != 1 {
		t.Errorf("UnseenCount = %d, want 1", u.UnseenCount)
	}
}

func TestSubscriber_ResyncsWhenChannelCloses(t *testing.T) {
	connectAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuerier{}
	st := &fakeStream{}

	sub := newTestSubscriber(tier.RoleStandard, q, st, &testClock{at: connectAt})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sub.Run(ctx) }()

	recvState(t, sub.Updates(), StateSynced)

	// Simulate a channel disconnect: the subscriber must resubscribe and
	// re-issue the one-shot query, never attempt replay.
	close(st.current())

	recvState(t, sub.Updates(), StateSynced)
	if st.subscribeCount() != 2 {
		t.Errorf("subscribe count = %d, want 2 after resync", st.subscribeCount())
	}
	if q.callCount() != 2 {
		t.Errorf("query count = %d, want 2 after resync", q.callCount())
	}
	if st.releaseCount() != 1 {
		t.Errorf("release count = %d, want 1 for the dropped subscription", st.releaseCount())
	}
}

func TestSubscriber_ResyncKeepsUnseenCount(t *testing.T) {
	connectAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuerier{}
	st := &fakeStream{}

	sub := newTestSubscriber(tier.RoleStandard, q, st, &testClock{at: connectAt})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sub.Run(ctx) }()

	recvState(t, sub.Updates(), StateSynced)

	fresh := model.Listing{ID: "n", Tier: "base", Status: "active", CreatedAt: connectAt.Add(time.Minute)}
	st.current() <- model.ChangeEvent{Op: model.OpInsert, After: &fresh}
	if u := recvState(t, sub.Updates(), StateUpdating); u.UnseenCount != 1 {
		t.Fatalf("UnseenCount before resync = %d, want 1", u.UnseenCount)
	}

	// A channel gap forces a fresh query; the viewer never acknowledged, so
	// the listing must still count as unseen after the silent resync.
	q.setItems([]model.Listing{fresh})
	close(st.current())

	u := recvState(t, sub.Updates(), StateSynced)
	if u.UnseenCount != 1 {
		t.Errorf("UnseenCount after silent resync = %d, want 1 (no acknowledge occurred)", u.UnseenCount)
	}
	if len(u.Items) != 1 || u.Items[0].ID != "n" {
		t.Errorf("resync items = %v", u.Items)
	}

	// Duplicate delivery of the same insert on the new subscription must not
	// re-notify.
	st.current() <- model.ChangeEvent{Op: model.OpInsert, After: &fresh}
	if u := recvState(t, sub.Updates(), StateUpdating); u.Notification != nil {
		t.Errorf("re-delivered insert notified again: %v", u.Notification)
	}
}

func TestSubscriber_UnavailableWhenResyncFails(t *testing.T) {
	connectAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuerier{errs: []error{errors.New("db down")}}
	st := &fakeStream{}

	sub := newTestSubscriber(tier.RoleStandard, q, st, &testClock{at: connectAt})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sub.Run(ctx) }()

	// First cycle: query fails → unavailable; retry then succeeds.
	recvState(t, sub.Updates(), StateUnavailable)
	recvState(t, sub.Updates(), StateSynced)

	if q.callCount() != 2 {
		t.Errorf("query count = %d, want 2", q.callCount())
	}
}

func TestSubscriber_DisconnectReleasesSubscription(t *testing.T) {
	connectAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuerier{}
	st := &fakeStream{}

	sub := newTestSubscriber(tier.RoleStandard, q, st, &testClock{at: connectAt})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	recvState(t, sub.Updates(), StateSynced)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if st.releaseCount() != 1 {
		t.Errorf("release count = %d, want 1 (no dangling listeners)", st.releaseCount())
	}

	// Updates channel closes so the consumer loop terminates.
	for range sub.Updates() {
	}
}

func TestSubscriber_AcknowledgeResetsUnseen(t *testing.T) {
	connectAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuerier{}
	st := &fakeStream{}

	clk := &testClock{at: connectAt}
	sub := newTestSubscriber(tier.RoleStandard, q, st, clk)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sub.Run(ctx) }()

	recvState(t, sub.Updates(), StateSynced)

	fresh := model.Listing{ID: "n", Tier: "base", Status: "active", CreatedAt: connectAt.Add(time.Minute)}
	st.current() <- model.ChangeEvent{Op: model.OpInsert, After: &fresh}
	if u := recvState(t, sub.Updates(), StateUpdating); u.UnseenCount != 1 {
		t.Fatalf("UnseenCount = %d, want 1 before acknowledge", u.UnseenCount)
	}

	// Acknowledge at a time after the insert's creation time.
	clk.set(connectAt.Add(2 * time.Minute))
	sub.Acknowledge()

	u := recvState(t, sub.Updates(), StateUpdating)
	if u.UnseenCount != 0 {
		t.Errorf("UnseenCount after acknowledge = %d, want 0", u.UnseenCount)
	}
	if len(u.Items) != 1 {
		t.Errorf("acknowledge must not change visible items, got %v", u.Items)
	}
}
