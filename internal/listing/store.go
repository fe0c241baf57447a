// Package listing owns the listings resource: the feed's one-shot queries and
// the write paths that publish change events to the notification channel.
package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/feed"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/metrics"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/model"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/tier"
)

// ErrNotFound is returned when a listing does not exist.
var ErrNotFound = fmt.Errorf("listing not found")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

const listingColumns = `id, title, company, description, tier, status, skills, created_at, updated_at`

// Store reads and mutates listings. Every committed mutation publishes a
// ChangeEvent to the Redis channel; publish failures are logged and counted,
// never fatal — the channel is best-effort and subscribers resync anyway.
type Store struct {
	pool   *pgxpool.Pool
	rdb    *redis.Client
	logger *slog.Logger
	stats  *metrics.Collector
}

// NewStore returns a configured Store.
func NewStore(pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger, stats *metrics.Collector) *Store {
	return &Store{pool: pool, rdb: rdb, logger: logger, stats: stats}
}

// ─── Read paths ───────────────────────────────────────────────────────────────

// ListVisible returns the active listings the given role is entitled to see,
// newest first with higher tiers breaking creation-time ties. The tier filter
// comes from tier.VisibleTiers so this query and the live event filter can
// never disagree.
func (s *Store) ListVisible(ctx context.Context, role tier.Role) ([]model.Listing, error) {
	visible := tier.VisibleTiers(role)
	if len(visible) == 0 {
		return []model.Listing{}, nil
	}
	tiers := make([]string, 0, len(visible))
	for _, t := range visible {
		tiers = append(tiers, string(t))
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+`
		 FROM listings
		 WHERE status = 'active' AND tier = ANY($1)
		 ORDER BY created_at DESC,
		          CASE tier WHEN 'exclusive' THEN 3 WHEN 'priority' THEN 2 ELSE 1 END DESC`,
		tiers,
	)
	if err != nil {
		return nil, fmt.Errorf("listVisible query: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// Get returns a single listing by id.
func (s *Store) Get(ctx context.Context, id string) (*model.Listing, error) {
	var l model.Listing
	err := s.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id,
	).Scan(&l.ID, &l.Title, &l.Company, &l.Description, &l.Tier, &l.Status, &l.Skills, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return &l, nil
}

// ─── Write paths ─────────────────────────────────────────────────────────────

// NewListing is the write shape accepted by Create.
type NewListing struct {
	Title       string
	Company     string
	Description string
	Tier        string
	Status      string
	Skills      []string
}

// Create inserts a listing and publishes the insert event.
func (s *Store) Create(ctx context.Context, in NewListing) (*model.Listing, error) {
	if in.Title == "" {
		return nil, &ValidationError{Msg: "title is required"}
	}
	if _, err := tier.ParseTier(in.Tier); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if in.Status == "" {
		in.Status = string(tier.StatusDraft)
	}
	if _, err := tier.ParseStatus(in.Status); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if in.Skills == nil {
		in.Skills = []string{}
	}

	var l model.Listing
	err := s.pool.QueryRow(ctx,
		`INSERT INTO listings (title, company, description, tier, status, skills)
		 VALUES ($1, $2, $3, $4::listing_tier, $5::listing_status, $6)
		 RETURNING `+listingColumns,
		in.Title, in.Company, in.Description, in.Tier, in.Status, in.Skills,
	).Scan(&l.ID, &l.Title, &l.Company, &l.Description, &l.Tier, &l.Status, &l.Skills, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	s.publish(ctx, model.ChangeEvent{Op: model.OpInsert, After: &l})
	return &l, nil
}

// Patch carries the mutable listing fields. Tier and status changes are the
// only mutations that affect feed membership; nil means unchanged.
type Patch struct {
	Tier   *string
	Status *string
}

// UpdateTierStatus applies a tier and/or status change and publishes the
// update event with both row images so subscribers can evaluate the
// visibility transition.
func (s *Store) UpdateTierStatus(ctx context.Context, id string, p Patch) (*model.Listing, error) {
	if p.Tier == nil && p.Status == nil {
		return nil, &ValidationError{Msg: "nothing to update"}
	}
	if p.Tier != nil {
		if _, err := tier.ParseTier(*p.Tier); err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
	}
	if p.Status != nil {
		if _, err := tier.ParseStatus(*p.Status); err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
	}

	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	newTier := before.Tier
	if p.Tier != nil {
		newTier = *p.Tier
	}
	newStatus := before.Status
	if p.Status != nil {
		newStatus = *p.Status
	}

	var l model.Listing
	err = s.pool.QueryRow(ctx,
		`UPDATE listings
		 SET tier = $1::listing_tier, status = $2::listing_status, updated_at = NOW()
		 WHERE id = $3
		 RETURNING `+listingColumns,
		newTier, newStatus, id,
	).Scan(&l.ID, &l.Title, &l.Company, &l.Description, &l.Tier, &l.Status, &l.Skills, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update listing: %w", err)
	}

	s.publish(ctx, model.ChangeEvent{Op: model.OpUpdate, Before: before, After: &l})
	return &l, nil
}

// Archive marks a listing archived and publishes a delete event — archived
// listings leave every feed unconditionally.
func (s *Store) Archive(ctx context.Context, id string) error {
	before, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET status = 'archived', updated_at = NOW() WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("archive listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.publish(ctx, model.ChangeEvent{Op: model.OpDelete, Before: before})
	return nil
}

// publish sends the event to the change channel. Failure is non-fatal: the
// channel offers at-most-once delivery and subscribers recover via resync.
func (s *Store) publish(ctx context.Context, ev model.ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("marshal change event failed", "err", err)
		s.stats.RecordPublishFailure()
		return
	}
	if err := s.rdb.Publish(ctx, feed.Channel, payload).Err(); err != nil {
		s.logger.Warn("publish change event failed", "op", string(ev.Op), "err", err)
		s.stats.RecordPublishFailure()
	}
}

func scanListings(rows pgx.Rows) ([]model.Listing, error) {
	listings := make([]model.Listing, 0)
	for rows.Next() {
		var l model.Listing
		if err := rows.Scan(&l.ID, &l.Title, &l.Company, &l.Description, &l.Tier, &l.Status, &l.Skills, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
