// Package suggestion persists generated candidate-listing match suggestions
// so they are not recomputed on every view.
package suggestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/model"
)

// Store reads and replaces match suggestions. Each listing's suggestion set
// is an independent unit — no cross-listing transactions.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore returns a configured Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

const insertSuggestionSQL = `INSERT INTO match_suggestions
   (listing_id, candidate_id, overall_score, skills_score, experience_score,
    education_score, reasoning, key_strengths, potential_concerns, generated_at)
 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// insertArgs binds one suggestion row. generated_at carries the scorer's
// timestamp so a stored suggestion round-trips exactly what the scorer
// produced.
func insertArgs(listingID string, sg *model.MatchSuggestion) []any {
	return []any{
		listingID, sg.CandidateID, sg.OverallScore, sg.SkillsScore,
		sg.ExperienceScore, sg.EducationScore, sg.Reasoning,
		sg.KeyStrengths, sg.PotentialConcerns, sg.GeneratedAt,
	}
}

// ReplaceForListing atomically replaces all suggestions for a listing with
// the given batch. A regeneration discards stale suggestions for candidates
// no longer included; an empty batch wipes the set. Two concurrent
// regenerations resolve last-writer-wins at listing granularity — the later
// transaction's batch is what remains.
func (s *Store) ReplaceForListing(ctx context.Context, listingID string, suggestions []model.MatchSuggestion) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM match_suggestions WHERE listing_id = $1`, listingID,
	); err != nil {
		return fmt.Errorf("delete stale suggestions: %w", err)
	}

	for i := range suggestions {
		sg := &suggestions[i]
		if _, err := tx.Exec(ctx, insertSuggestionSQL, insertArgs(listingID, sg)...); err != nil {
			return fmt.Errorf("insert suggestion for candidate %s: %w", sg.CandidateID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	s.logger.Info("suggestions replaced", "listing", listingID, "count", len(suggestions))
	return nil
}

// ListByListing returns the stored suggestions for a listing, best match
// first.
func (s *Store) ListByListing(ctx context.Context, listingID string) ([]model.MatchSuggestion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT listing_id, candidate_id, overall_score, skills_score, experience_score,
		        education_score, reasoning, key_strengths, potential_concerns, generated_at
		 FROM match_suggestions
		 WHERE listing_id = $1
		 ORDER BY overall_score DESC, candidate_id ASC`,
		listingID,
	)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	out := make([]model.MatchSuggestion, 0)
	for rows.Next() {
		var sg model.MatchSuggestion
		if err := rows.Scan(
			&sg.ListingID, &sg.CandidateID, &sg.OverallScore, &sg.SkillsScore,
			&sg.ExperienceScore, &sg.EducationScore, &sg.Reasoning,
			&sg.KeyStrengths, &sg.PotentialConcerns, &sg.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// Get returns the stored suggestion for one (listing, candidate) pair.
func (s *Store) Get(ctx context.Context, listingID, candidateID string) (*model.MatchSuggestion, error) {
	var sg model.MatchSuggestion
	err := s.pool.QueryRow(ctx,
		`SELECT listing_id, candidate_id, overall_score, skills_score, experience_score,
		        education_score, reasoning, key_strengths, potential_concerns, generated_at
		 FROM match_suggestions
		 WHERE listing_id = $1 AND candidate_id = $2`,
		listingID, candidateID,
	).Scan(
		&sg.ListingID, &sg.CandidateID, &sg.OverallScore, &sg.SkillsScore,
		&sg.ExperienceScore, &sg.EducationScore, &sg.Reasoning,
		&sg.KeyStrengths, &sg.PotentialConcerns, &sg.GeneratedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get suggestion: %w", err)
	}
	return &sg, nil
}

// PruneInactive deletes suggestions whose listing is no longer active. Runs
// as a daily batch job; idempotent when nothing qualifies.
func (s *Store) PruneInactive(ctx context.Context) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM match_suggestions ms
		 USING listings l
		 WHERE l.id = ms.listing_id AND l.status <> 'active'`,
	)
	if err != nil {
		return fmt.Errorf("prune inactive suggestions: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.logger.Info("pruned suggestions for inactive listings", "deleted", n)
	}
	return nil
}

// ErrNotFound is returned when a suggestion is missing.
var ErrNotFound = fmt.Errorf("suggestion not found")
