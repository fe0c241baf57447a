package tier_test

import (
	"testing"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/tier"
)

// ── IsVisible — full table ──────────────────────────────────────────────────

func TestIsVisible_Table(t *testing.T) {
	cases := []struct {
		role tier.Role
		t    tier.Tier
		want bool
	}{
		{tier.RolePrivileged, tier.TierBase, true},
		{tier.RolePrivileged, tier.TierPriority, true},
		{tier.RolePrivileged, tier.TierExclusive, true},
		{tier.RoleStandard, tier.TierBase, true},
		{tier.RoleStandard, tier.TierPriority, true},
		{tier.RoleStandard, tier.TierExclusive, false},
	}
	for _, c := range cases {
		if got := tier.IsVisible(c.role, c.t); got != c.want {
			t.Errorf("IsVisible(%s, %s) = %v, want %v", c.role, c.t, got, c.want)
		}
	}
}

func TestIsVisible_FailClosed(t *testing.T) {
	roles := []tier.Role{"", "candidate", "admin", "PRIVILEGED", "unknown"}
	tiers := []tier.Tier{tier.TierBase, tier.TierPriority, tier.TierExclusive, "", "gold"}
	for _, r := range roles {
		for _, tr := range tiers {
			if tier.IsVisible(r, tr) {
				t.Errorf("IsVisible(%q, %q) should be false for unrecognized role", r, tr)
			}
		}
	}
	// Known roles with unknown tiers must also deny.
	for _, r := range []tier.Role{tier.RolePrivileged, tier.RoleStandard} {
		for _, tr := range []tier.Tier{"", "gold", "Base"} {
			if tier.IsVisible(r, tr) {
				t.Errorf("IsVisible(%q, %q) should be false for unrecognized tier", r, tr)
			}
		}
	}
}

// ── VisibleTiers — derivation from IsVisible ───────────────────────────────

func TestVisibleTiers_MatchesIsVisible(t *testing.T) {
	all := []tier.Tier{tier.TierBase, tier.TierPriority, tier.TierExclusive}
	roles := []tier.Role{tier.RolePrivileged, tier.RoleStandard, "candidate", ""}

	for _, role := range roles {
		visible := make(map[tier.Tier]bool)
		for _, tr := range tier.VisibleTiers(role) {
			visible[tr] = true
		}
		for _, tr := range all {
			if visible[tr] != tier.IsVisible(role, tr) {
				t.Errorf("VisibleTiers(%s) disagrees with IsVisible for tier %s", role, tr)
			}
		}
	}
}

func TestVisibleTiers_UnknownRoleEmpty(t *testing.T) {
	if got := tier.VisibleTiers("recruiter"); len(got) != 0 {
		t.Errorf("VisibleTiers(recruiter) = %v, want empty", got)
	}
}

// ── Rank ────────────────────────────────────────────────────────────────────

func TestRank_Ordering(t *testing.T) {
	if !(tier.Rank(tier.TierExclusive) > tier.Rank(tier.TierPriority)) {
		t.Error("exclusive should rank above priority")
	}
	if !(tier.Rank(tier.TierPriority) > tier.Rank(tier.TierBase)) {
		t.Error("priority should rank above base")
	}
	if tier.Rank("gold") >= tier.Rank(tier.TierBase) {
		t.Error("unknown tier should rank below every known tier")
	}
}

// ── Parse helpers ───────────────────────────────────────────────────────────

func TestParseTier(t *testing.T) {
	for _, s := range []string{"base", "priority", "exclusive"} {
		got, err := tier.ParseTier(s)
		if err != nil {
			t.Errorf("ParseTier(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseTier(%q) = %q, want %q", s, got, s)
		}
	}
	for _, s := range []string{"", "gold", "Base", "EXCLUSIVE"} {
		if _, err := tier.ParseTier(s); err == nil {
			t.Errorf("ParseTier(%q) expected error, got nil", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"draft", "active", "paused", "filled", "archived"} {
		if _, err := tier.ParseStatus(s); err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
	}
	if _, err := tier.ParseStatus("open"); err == nil {
		t.Error("ParseStatus(\"open\") expected error, got nil")
	}
}
