// Package tier centralizes the visibility rule between viewer roles and
// listing subscription tiers.
//
// Visibility table:
//
//	privileged → base, priority, exclusive
//	standard   → base, priority
//	anything else → nothing (fail closed)
//
// The same rule backs both the initial feed query (via VisibleTiers) and the
// live change-event filter (via IsVisible), so the two paths cannot disagree.
package tier

import "fmt"

// Tier values mirror the listing_tier enum in PostgreSQL.
type Tier string

const (
	TierBase      Tier = "base"
	TierPriority  Tier = "priority"
	TierExclusive Tier = "exclusive"
)

// Role values are the viewer roles that participate in the feed. Other roles
// exist in the platform but are simply denied visibility here.
type Role string

const (
	RolePrivileged Role = "privileged"
	RoleStandard   Role = "standard"
)

// Status values mirror the listing_status enum in PostgreSQL.
// Only StatusActive listings participate in the feed.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusFilled   Status = "filled"
	StatusArchived Status = "archived"
)

// IsVisible reports whether a viewer with the given role may see a listing of
// the given tier. Unrecognized roles and tiers always deny — never panic.
func IsVisible(role Role, t Tier) bool {
	switch role {
	case RolePrivileged:
		switch t {
		case TierBase, TierPriority, TierExclusive:
			return true
		}
	case RoleStandard:
		switch t {
		case TierBase, TierPriority:
			return true
		}
	}
	return false
}

// VisibleTiers returns the tiers visible to role, in rank order. It is
// derived from IsVisible so the SQL filter and the event filter share one
// rule. Returns nil for roles with no feed access.
func VisibleTiers(role Role) []Tier {
	all := []Tier{TierExclusive, TierPriority, TierBase}
	var visible []Tier
	for _, t := range all {
		if IsVisible(role, t) {
			visible = append(visible, t)
		}
	}
	return visible
}

// Rank orders tiers for the feed sort tie-break: higher tier first.
// Unknown tiers rank below every known tier.
func Rank(t Tier) int {
	switch t {
	case TierExclusive:
		return 3
	case TierPriority:
		return 2
	case TierBase:
		return 1
	}
	return -1
}

// ParseTier converts a raw string to a Tier, returning an error for unknown
// values. Used on write paths; read paths fail closed via IsVisible instead.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	switch t {
	case TierBase, TierPriority, TierExclusive:
		return t, nil
	}
	return "", fmt.Errorf("unknown listing tier %q", s)
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusDraft, StatusActive, StatusPaused, StatusFilled, StatusArchived:
		return st, nil
	}
	return "", fmt.Errorf("unknown listing status %q", s)
}
