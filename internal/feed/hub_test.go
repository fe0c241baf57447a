package feed

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/tier"
)

func TestHub_RegisterAcknowledgeUnregister(t *testing.T) {
	h := NewHub()
	sub := newTestSubscriber(tier.RoleStandard, &fakeQuerier{}, &fakeStream{},
		&testClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})

	if h.Acknowledge(sub.ID()) {
		t.Error("Acknowledge before Register should report false")
	}

	h.Register(sub)
	if h.Len() != 1 {
		t.Fatalf("Len = %d, want 1", h.Len())
	}
	if !h.Acknowledge(sub.ID()) {
		t.Error("Acknowledge for a registered session should report true")
	}

	h.Unregister(sub.ID())
	if h.Len() != 0 {
		t.Fatalf("Len = %d after Unregister, want 0", h.Len())
	}
	if h.Acknowledge(sub.ID()) {
		t.Error("Acknowledge after Unregister should report false")
	}
}

func TestHub_UnregisterUnknownIDIsNoop(t *testing.T) {
	h := NewHub()
	h.Unregister("nope")
	if h.Len() != 0 {
		t.Fatalf("Len = %d, want 0", h.Len())
	}
}

func TestHub_SessionsAreIndependent(t *testing.T) {
	h := NewHub()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewSubscriber(tier.RoleStandard, &fakeQuerier{}, &fakeStream{}, logger, nil)
	b := NewSubscriber(tier.RolePrivileged, &fakeQuerier{}, &fakeStream{}, logger, nil)

	if a.ID() == b.ID() {
		t.Fatal("subscribers must get distinct session ids")
	}

	h.Register(a)
	h.Register(b)
	h.Unregister(a.ID())
	if !h.Acknowledge(b.ID()) {
		t.Error("unregistering one session must not affect another")
	}
}
