package scoring

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/model"
)

// batchConcurrency bounds parallel collaborator calls per regeneration.
const batchConcurrency = 4

// CandidateFailure reports why one candidate could not be scored. Failures
// are per candidate: one bad profile never fails the rest of the batch.
type CandidateFailure struct {
	CandidateID string `json:"candidateId"`
	Message     string `json:"message"`
	Retryable   bool   `json:"retryable"`
}

// BatchResult carries the successfully scored suggestions and the
// per-candidate failures of one regeneration.
type BatchResult struct {
	Suggestions []model.MatchSuggestion `json:"suggestions"`
	Failures    []CandidateFailure      `json:"failures"`
}

// ScoreBatch evaluates all candidates against the listing with bounded
// concurrency. The returned suggestions are unsaved and ordered best match
// first, ready for Store.ReplaceForListing.
func (s *Scorer) ScoreBatch(ctx context.Context, job JobRequirements, candidates []CandidateProfile) BatchResult {
	var (
		mu     sync.Mutex
		result BatchResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for _, cand := range candidates {
		g.Go(func() error {
			sg, err := s.Score(gctx, job, cand)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, CandidateFailure{
					CandidateID: cand.CandidateID,
					Message:     err.Error(),
					Retryable:   errors.Is(err, ErrCollaboratorUnavailable),
				})
				return nil
			}
			result.Suggestions = append(result.Suggestions, *sg)
			return nil
		})
	}

	// Workers only ever return nil; the group is used for its limit and
	// context plumbing.
	_ = g.Wait()

	sort.SliceStable(result.Suggestions, func(i, j int) bool {
		return result.Suggestions[i].OverallScore > result.Suggestions[j].OverallScore
	})
	sort.SliceStable(result.Failures, func(i, j int) bool {
		return result.Failures[i].CandidateID < result.Failures[j].CandidateID
	})
	return result
}
