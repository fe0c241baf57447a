// Package feed implements the tier-gated live distribution feed.
//
// Each connected viewer owns one View (pure, single-goroutine state machine)
// driven by one Subscriber loop (initial query + change-event stream). The
// change channel is at-most-once with no replay, so any stream failure is
// handled by full resynchronization, never by event replay.
package feed

import (
	"sort"
	"time"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/model"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/tier"
)

// View holds one viewer's in-memory feed state. It is not safe for
// concurrent use: the owning Subscriber goroutine is the only writer.
//
// The unseen count is always derived from items and lastSeenAt — it is never
// stored as an independently mutated counter.
type View struct {
	role       tier.Role
	items      []model.Listing
	lastSeenAt time.Time
	notified   map[string]struct{}
}

// NewView builds a View from the result of the one-shot visible-listings
// query. lastSeenAt is anchored to connect time, so the initial items never
// count as unseen. Initial items are marked notified: they were on screen at
// connect, re-delivering them as inserts must not re-notify.
func NewView(role tier.Role, connectedAt time.Time, initial []model.Listing) *View {
	v := &View{
		role:       role,
		items:      append([]model.Listing(nil), initial...),
		lastSeenAt: connectedAt,
		notified:   make(map[string]struct{}, len(initial)),
	}
	for _, l := range initial {
		v.notified[l.ID] = struct{}{}
	}
	v.resort()
	return v
}

// Apply processes one change event and returns the listing to surface as a
// user-facing notification, or nil. At most one notification is ever emitted
// per listing id, regardless of duplicate delivery.
func (v *View) Apply(ev model.ChangeEvent) *model.Listing {
	row := ev.Row()
	if row == nil {
		return nil
	}

	switch ev.Op {
	case model.OpInsert, model.OpUpdate:
		if ev.After == nil {
			return nil
		}
		if v.admits(*ev.After) {
			return v.upsert(*ev.After)
		}
		// Tier changed away or status left active: drop it.
		v.remove(row.ID)
	case model.OpDelete:
		v.remove(row.ID)
	}
	return nil
}

// Resync replaces the visible set from a fresh one-shot query while keeping
// the acknowledge high-water mark and the notified-id set. A change-channel
// gap is not an acknowledgement: items created since the mark stay unseen
// across the resynchronization, and items already notified never re-notify.
func (v *View) Resync(items []model.Listing) {
	v.items = append([]model.Listing(nil), items...)
	for _, l := range items {
		v.notified[l.ID] = struct{}{}
	}
	v.resort()
}

// Acknowledge advances the high-water mark; the unseen count becomes zero by
// derivation.
func (v *View) Acknowledge(now time.Time) {
	v.lastSeenAt = now
}

// Items returns the visible listings, sorted by (created_at desc, tier rank
// desc). The returned slice is a copy.
func (v *View) Items() []model.Listing {
	out := make([]model.Listing, len(v.items))
	copy(out, v.items)
	return out
}

// UnseenCount recomputes the number of visible items newer than the
// high-water mark.
func (v *View) UnseenCount() int {
	n := 0
	for _, l := range v.items {
		if l.CreatedAt.After(v.lastSeenAt) {
			n++
		}
	}
	return n
}

// Len returns the number of visible items.
func (v *View) Len() int { return len(v.items) }

// ─── internals ───────────────────────────────────────────────────────────────

// admits applies the feed membership rule: active status and tier visible to
// the viewer's role.
func (v *View) admits(l model.Listing) bool {
	return tier.Status(l.Status) == tier.StatusActive && tier.IsVisible(v.role, tier.Tier(l.Tier))
}

// upsert replaces an existing item in place or inserts a new one, re-sorting
// afterwards. Returns the listing to notify when this id has never been
// notified before.
func (v *View) upsert(l model.Listing) *model.Listing {
	replaced := false
	for i := range v.items {
		if v.items[i].ID == l.ID {
			v.items[i] = l
			replaced = true
			break
		}
	}
	if !replaced {
		v.items = append(v.items, l)
	}
	v.resort()

	if _, seen := v.notified[l.ID]; seen {
		return nil
	}
	v.notified[l.ID] = struct{}{}
	return &l
}

func (v *View) remove(id string) {
	for i := range v.items {
		if v.items[i].ID == id {
			v.items = append(v.items[:i], v.items[i+1:]...)
			return
		}
	}
}

// resort re-applies the full feed order after every mutation rather than
// assuming stability from partial updates.
func (v *View) resort() {
	sort.SliceStable(v.items, func(i, j int) bool {
		a, b := v.items[i], v.items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return tier.Rank(tier.Tier(a.Tier)) > tier.Rank(tier.Tier(b.Tier))
	})
}
