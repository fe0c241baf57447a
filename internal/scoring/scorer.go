// Package scoring implements the multi-factor match scorer backed by an
// external reasoning collaborator.
//
// Every collaborator response crosses a strict parse-or-fail boundary: a
// response that does not carry the full score shape becomes a
// *MalformedResponseError, never a default score of zero that could be
// misread as a real low match.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"golang.org/x/time/rate"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/metrics"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/model"
)

//go:embed prompt.md
var promptTemplate string

// MinProfileRunes is the minimum candidate profile length accepted for
// scoring. Shorter inputs fail with ErrInsufficientInput before any
// collaborator call.
const MinProfileRunes = 80

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// JobRequirements is the listing-side scoring input.
type JobRequirements struct {
	ListingID   string   `json:"listingId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
}

// CandidateProfile is the candidate-side scoring input.
type CandidateProfile struct {
	CandidateID string `json:"candidateId"`
	Resume      string `json:"resume"`
}

// Scorer produces MatchSuggestions from job requirements and candidate
// profiles. Stateless per call; persistence is the caller's responsibility.
type Scorer struct {
	generator contentGenerator
	limiter   *rate.Limiter
	logger    *slog.Logger
	stats     *metrics.Collector
	now       func() time.Time
}

// NewScorer returns a Scorer. callsPerMinute throttles collaborator traffic;
// zero or negative disables the limiter.
func NewScorer(generator contentGenerator, callsPerMinute int, logger *slog.Logger, stats *metrics.Collector) *Scorer {
	var limiter *rate.Limiter
	if callsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), callsPerMinute)
	}
	return &Scorer{
		generator: generator,
		limiter:   limiter,
		logger:    logger,
		stats:     stats,
		now:       time.Now,
	}
}

// Score evaluates one candidate against one listing and returns an unsaved
// MatchSuggestion.
func (s *Scorer) Score(ctx context.Context, job JobRequirements, cand CandidateProfile) (*model.MatchSuggestion, error) {
	if utf8.RuneCountInString(strings.TrimSpace(cand.Resume)) < MinProfileRunes {
		s.stats.RecordScoreOutcome("insufficient_input")
		return nil, ErrInsufficientInput
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	prompt := buildPrompt(job, cand.Resume)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		s.stats.RecordScoreOutcome("unavailable")
		return nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	s.logger.Debug("scoring response received",
		"listing", job.ListingID,
		"candidate", cand.CandidateID,
		"response_length", utf8.RuneCountInString(raw),
	)

	sg, err := parseResponse(raw)
	if err != nil {
		s.stats.RecordScoreOutcome("malformed")
		s.logger.Warn("could not generate suggestion",
			"listing", job.ListingID,
			"candidate", cand.CandidateID,
			"err", err,
		)
		return nil, err
	}

	sg.ListingID = job.ListingID
	sg.CandidateID = cand.CandidateID
	sg.GeneratedAt = s.now()
	s.stats.RecordScoreOutcome("ok")
	return sg, nil
}

func buildPrompt(job JobRequirements, resume string) string {
	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		jobJSON = []byte(job.Title)
	}
	prompt := strings.ReplaceAll(promptTemplate, "{{JOB_REQUIREMENTS}}", string(jobJSON))
	return strings.ReplaceAll(prompt, "{{CANDIDATE_PROFILE}}", resume)
}

// ─── Strict response parsing ──────────────────────────────────────────────────

// scoreShape mirrors the JSON contract with the reasoning collaborator.
// Pointer fields distinguish "absent" from zero values.
type scoreShape struct {
	OverallScore      *int      `json:"overall_score"`
	SkillsScore       *int      `json:"skills_score"`
	ExperienceScore   *int      `json:"experience_score"`
	EducationScore    *int      `json:"education_score"`
	Reasoning         *string   `json:"reasoning"`
	KeyStrengths      *[]string `json:"key_strengths"`
	PotentialConcerns *[]string `json:"potential_concerns"`
}

func parseResponse(raw string) (*model.MatchSuggestion, error) {
	cleaned := extractJSON(raw)

	var shape scoreShape
	if err := json.Unmarshal([]byte(cleaned), &shape); err != nil {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}

	scores := map[string]*int{
		"overall_score":    shape.OverallScore,
		"skills_score":     shape.SkillsScore,
		"experience_score": shape.ExperienceScore,
		"education_score":  shape.EducationScore,
	}
	for name, v := range scores {
		if v == nil {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("missing field %s", name)}
		}
		if *v < 0 || *v > 100 {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("%s %d out of range [0,100]", name, *v)}
		}
	}
	if shape.Reasoning == nil || strings.TrimSpace(*shape.Reasoning) == "" {
		return nil, &MalformedResponseError{Reason: "missing field reasoning"}
	}
	if shape.KeyStrengths == nil {
		return nil, &MalformedResponseError{Reason: "missing field key_strengths"}
	}
	if shape.PotentialConcerns == nil {
		return nil, &MalformedResponseError{Reason: "missing field potential_concerns"}
	}

	return &model.MatchSuggestion{
		OverallScore:      *shape.OverallScore,
		SkillsScore:       *shape.SkillsScore,
		ExperienceScore:   *shape.ExperienceScore,
		EducationScore:    *shape.EducationScore,
		Reasoning:         strings.TrimSpace(*shape.Reasoning),
		KeyStrengths:      *shape.KeyStrengths,
		PotentialConcerns: *shape.PotentialConcerns,
	}, nil
}

// extractJSON strips markdown code fences some models wrap around JSON
// despite instructions.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
