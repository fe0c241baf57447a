package referral_test

import (
	"strings"
	"testing"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/model"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/referral"
)

func sampleListing() *model.Listing {
	return &model.Listing{
		ID:      "lst-1",
		Title:   "Staff Backend Engineer",
		Company: "Northwind",
		Tier:    "priority",
		Status:  "active",
	}
}

func sampleSuggestion() *model.MatchSuggestion {
	return &model.MatchSuggestion{
		ListingID:         "lst-1",
		CandidateID:       "cand-1",
		OverallScore:      87,
		SkillsScore:       92,
		ExperienceScore:   80,
		EducationScore:    75,
		Reasoning:         "Strong platform background with direct protocol experience.",
		KeyStrengths:      []string{"Go services at scale", "Event-driven systems"},
		PotentialConcerns: []string{"No prior hiring-platform domain exposure"},
	}
}

func TestComposeDraft(t *testing.T) {
	d := referral.ComposeDraft(sampleListing(), sampleSuggestion())

	if d.ListingID != "lst-1" || d.CandidateID != "cand-1" {
		t.Errorf("identity = (%q, %q)", d.ListingID, d.CandidateID)
	}
	if d.OverallScore != 87 {
		t.Errorf("OverallScore = %d, want 87", d.OverallScore)
	}
	for _, want := range []string{"Staff Backend Engineer", "Northwind", "Strong platform background", "Go services at scale"} {
		if !strings.Contains(d.Endorsement, want) {
			t.Errorf("endorsement missing %q:\n%s", want, d.Endorsement)
		}
	}
	if len(d.Highlights) != 2 {
		t.Errorf("Highlights = %v", d.Highlights)
	}
}

func TestComposeDraft_ConcernsStayOutOfPrefill(t *testing.T) {
	d := referral.ComposeDraft(sampleListing(), sampleSuggestion())

	if strings.Contains(d.Endorsement, "hiring-platform domain") {
		t.Error("potential concerns must not leak into the endorsement pre-fill")
	}
	for _, h := range d.Highlights {
		if strings.Contains(h, "hiring-platform domain") {
			t.Error("potential concerns must not leak into highlights")
		}
	}
}

func TestComposeDraft_EmptyStrengthsAndReasoning(t *testing.T) {
	sg := sampleSuggestion()
	sg.Reasoning = ""
	sg.KeyStrengths = nil

	d := referral.ComposeDraft(sampleListing(), sg)

	if !strings.Contains(d.Endorsement, "Staff Backend Engineer") {
		t.Errorf("endorsement should still introduce the role: %s", d.Endorsement)
	}
	if strings.Contains(d.Endorsement, "Standout strengths") {
		t.Error("strengths sentence should be omitted when there are none")
	}
	if len(d.Highlights) != 0 {
		t.Errorf("Highlights = %v, want empty", d.Highlights)
	}
}

func TestComposeDraft_HighlightsAreACopy(t *testing.T) {
	sg := sampleSuggestion()
	d := referral.ComposeDraft(sampleListing(), sg)

	d.Highlights[0] = "mutated"
	if sg.KeyStrengths[0] == "mutated" {
		t.Error("draft highlights must not alias the stored suggestion")
	}
}
