// Package referral pre-fills referral submissions from stored match
// suggestions. It is a pure consumer of the scorer's output contract.
package referral

import (
	"fmt"
	"strings"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/model"
)

// Draft is a pre-filled referral submission the referrer can edit before
// sending.
type Draft struct {
	ListingID    string   `json:"listingId"`
	CandidateID  string   `json:"candidateId"`
	Endorsement  string   `json:"endorsement"`
	Highlights   []string `json:"highlights"`
	OverallScore int      `json:"overallScore"`
}

// ComposeDraft builds a referral draft from a listing and its stored match
// suggestion. The endorsement leads with the scorer's reasoning; concerns are
// deliberately left out of the pre-fill — the referrer sees them in the
// suggestion view and decides what to disclose.
func ComposeDraft(l *model.Listing, sg *model.MatchSuggestion) Draft {
	var b strings.Builder
	fmt.Fprintf(&b, "I'd like to refer a candidate for %s at %s.", l.Title, l.Company)
	if sg.Reasoning != "" {
		b.WriteString(" ")
		b.WriteString(sg.Reasoning)
	}
	if len(sg.KeyStrengths) > 0 {
		fmt.Fprintf(&b, " Standout strengths: %s.", strings.Join(sg.KeyStrengths, ", "))
	}

	highlights := append([]string(nil), sg.KeyStrengths...)

	return Draft{
		ListingID:    sg.ListingID,
		CandidateID:  sg.CandidateID,
		Endorsement:  b.String(),
		Highlights:   highlights,
		OverallScore: sg.OverallScore,
	}
}
