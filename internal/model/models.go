// Package model defines shared data structures for the feed service.
package model

import "time"

// Listing is a paid job listing row. CreatedAt is immutable and serves as the
// feed's recency key; tier and status are the only mutations that affect feed
// membership.
type Listing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	Tier        string    `json:"tier"`
	Status      string    `json:"status"`
	Skills      []string  `json:"skills"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MatchSuggestion is a persisted, regenerable match result between one
// candidate and one listing. At most one row exists per
// (listing_id, candidate_id) pair; a regeneration replaces the full record.
//
// OverallScore is not required to be an arithmetic mean of the three
// sub-scores — callers may only assume all four are bounded to [0,100].
type MatchSuggestion struct {
	ListingID         string    `json:"listingId"`
	CandidateID       string    `json:"candidateId"`
	OverallScore      int       `json:"overallScore"`
	SkillsScore       int       `json:"skillsScore"`
	ExperienceScore   int       `json:"experienceScore"`
	EducationScore    int       `json:"educationScore"`
	Reasoning         string    `json:"reasoning"`
	KeyStrengths      []string  `json:"keyStrengths"`
	PotentialConcerns []string  `json:"potentialConcerns"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

// ─── Change events ────────────────────────────────────────────────────────────

// Op identifies the kind of listing mutation carried by a ChangeEvent.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ChangeEvent is the wire shape published to the listings change channel.
// Delivery is at-most-once with no replay: subscribers must resynchronize
// with a fresh query after any channel disconnect.
type ChangeEvent struct {
	Op     Op       `json:"op"`
	Before *Listing `json:"before,omitempty"`
	After  *Listing `json:"after,omitempty"`
}

// Row returns the listing the event is about: After when present, otherwise
// Before (delete events may omit the after image).
func (e ChangeEvent) Row() *Listing {
	if e.After != nil {
		return e.After
	}
	return e.Before
}
