// Package httpapi implements the HTTP handlers for the feed service.
//
// All routes expect x-user-id (and, for the feed, x-user-role) headers
// forwarded by the Gateway.
//
// Routes:
//
//	GET    /feed                                        → live SSE feed for the viewer
//	POST   /feed/{session}/ack                          → acknowledge; reset unseen count
//	POST   /listings                                    → create listing
//	GET    /listings/{id}                               → fetch listing
//	PATCH  /listings/{id}                               → change tier/status
//	DELETE /listings/{id}                               → archive listing
//	GET    /listings/{id}/suggestions                   → stored suggestions, best first
//	POST   /listings/{id}/suggestions                   → regenerate suggestions for candidates
//	GET    /listings/{id}/candidates/{cid}/referral-draft → pre-filled referral
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tom2tomtomtom/refer-ify-sub000/internal/feed"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/listing"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/metrics"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/model"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/referral"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/scoring"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/suggestion"
	"github.com/tom2tomtomtom/refer-ify-sub000/internal/tier"
)

// ListingStore is the listings resource surface the handlers consume. It is
// satisfied by *listing.Store.
type ListingStore interface {
	ListVisible(ctx context.Context, role tier.Role) ([]model.Listing, error)
	Get(ctx context.Context, id string) (*model.Listing, error)
	Create(ctx context.Context, in listing.NewListing) (*model.Listing, error)
	UpdateTierStatus(ctx context.Context, id string, p listing.Patch) (*model.Listing, error)
	Archive(ctx context.Context, id string) error
}

// Handler holds shared dependencies.
type Handler struct {
	listings    ListingStore
	suggestions *suggestion.Store
	scorer      *scoring.Scorer
	stream      feed.Stream
	hub         *feed.Hub
	logger      *slog.Logger
	stats       *metrics.Collector
}

// NewHandler returns a configured Handler.
func NewHandler(
	listings ListingStore,
	suggestions *suggestion.Store,
	scorer *scoring.Scorer,
	stream feed.Stream,
	hub *feed.Hub,
	logger *slog.Logger,
	stats *metrics.Collector,
) *Handler {
	return &Handler{
		listings:    listings,
		suggestions: suggestions,
		scorer:      scorer,
		stream:      stream,
		hub:         hub,
		logger:      logger,
		stats:       stats,
	}
}

// RegisterRoutes mounts all feed-service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/feed", h.handleFeed)
	mux.HandleFunc("/feed/", h.handleFeedAction)
	mux.HandleFunc("/listings", h.handleListings)
	mux.HandleFunc("/listings/", h.handleListingAction)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

func (h *Handler) handleListings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.createListing(w, r)
}

// handleListingAction dispatches /listings/{id}[/...].
func (h *Handler) handleListingAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case len(parts) == 2:
		switch r.Method {
		case http.MethodGet:
			h.getListing(w, r, parts[1])
		case http.MethodPatch:
			h.patchListing(w, r, parts[1])
		case http.MethodDelete:
			h.archiveListing(w, r, parts[1])
		default:
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 3 && parts[2] == "suggestions":
		switch r.Method {
		case http.MethodGet:
			h.listSuggestions(w, r, parts[1])
		case http.MethodPost:
			h.regenerateSuggestions(w, r, parts[1])
		default:
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 5 && parts[2] == "candidates" && parts[4] == "referral-draft":
		if r.Method != http.MethodGet {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.referralDraft(w, r, parts[1], parts[3])
	default:
		jsonError(w, "invalid path", http.StatusNotFound)
	}
}

// handleFeedAction dispatches POST /feed/{session}/ack.
func (h *Handler) handleFeedAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] != "ack" {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	if !h.hub.Acknowledge(parts[1]) {
		jsonError(w, "feed session not connected", http.StatusNotFound)
		return
	}
	jsonOK(w, map[string]string{"status": "acknowledged"})
}

// ─── Listings ────────────────────────────────────────────────────────────────

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	if !requireUser(w, r) {
		return
	}

	var body struct {
		Title       string   `json:"title"`
		Company     string   `json:"company"`
		Description string   `json:"description"`
		Tier        string   `json:"tier"`
		Status      string   `json:"status"`
		Skills      []string `json:"skills"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	l, err := h.listings.Create(r.Context(), listing.NewListing{
		Title:       body.Title,
		Company:     body.Company,
		Description: body.Description,
		Tier:        body.Tier,
		Status:      body.Status,
		Skills:      body.Skills,
	})
	if err != nil {
		h.writeListingError(w, err, "createListing")
		return
	}
	jsonOK(w, l)
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request, id string) {
	l, err := h.listings.Get(r.Context(), id)
	if err != nil {
		h.writeListingError(w, err, "getListing")
		return
	}
	jsonOK(w, l)
}

func (h *Handler) patchListing(w http.ResponseWriter, r *http.Request, id string) {
	if !requireUser(w, r) {
		return
	}

	var body struct {
		Tier   *string `json:"tier"`
		Status *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	l, err := h.listings.UpdateTierStatus(r.Context(), id, listing.Patch{Tier: body.Tier, Status: body.Status})
	if err != nil {
		h.writeListingError(w, err, "patchListing")
		return
	}
	jsonOK(w, l)
}

func (h *Handler) archiveListing(w http.ResponseWriter, r *http.Request, id string) {
	if !requireUser(w, r) {
		return
	}

	if err := h.listings.Archive(r.Context(), id); err != nil {
		h.writeListingError(w, err, "archiveListing")
		return
	}
	jsonOK(w, map[string]string{"status": "archived"})
}

// ─── Suggestions ─────────────────────────────────────────────────────────────

func (h *Handler) listSuggestions(w http.ResponseWriter, r *http.Request, listingID string) {
	out, err := h.suggestions.ListByListing(r.Context(), listingID)
	if err != nil {
		h.logger.Error("listSuggestions failed", "listing", listingID, "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, out)
}

// regenerateSuggestions scores the posted candidates against the listing and
// atomically replaces the stored suggestion set. Failures are reported per
// candidate; when every candidate fails the stored set is left untouched so a
// collaborator outage cannot wipe good data.
func (h *Handler) regenerateSuggestions(w http.ResponseWriter, r *http.Request, listingID string) {
	if !requireUser(w, r) {
		return
	}

	var body struct {
		Candidates []scoring.CandidateProfile `json:"candidates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	l, err := h.listings.Get(r.Context(), listingID)
	if err != nil {
		h.writeListingError(w, err, "regenerateSuggestions")
		return
	}

	job := scoring.JobRequirements{
		ListingID:   l.ID,
		Title:       l.Title,
		Description: l.Description,
		Skills:      l.Skills,
	}

	result := h.scorer.ScoreBatch(r.Context(), job, body.Candidates)

	if len(body.Candidates) > 0 && len(result.Suggestions) == 0 {
		jsonWith(w, http.StatusBadGateway, result)
		return
	}

	if err := h.suggestions.ReplaceForListing(r.Context(), listingID, result.Suggestions); err != nil {
		h.logger.Error("replace suggestions failed", "listing", listingID, "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	jsonOK(w, result)
}

func (h *Handler) referralDraft(w http.ResponseWriter, r *http.Request, listingID, candidateID string) {
	l, err := h.listings.Get(r.Context(), listingID)
	if err != nil {
		h.writeListingError(w, err, "referralDraft")
		return
	}

	sg, err := h.suggestions.Get(r.Context(), listingID, candidateID)
	if err != nil {
		if errors.Is(err, suggestion.ErrNotFound) {
			jsonError(w, "no suggestion for candidate", http.StatusNotFound)
			return
		}
		h.logger.Error("referralDraft lookup failed", "listing", listingID, "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	jsonOK(w, referral.ComposeDraft(l, sg))
}

// ─── Feed (SSE) ──────────────────────────────────────────────────────────────

// handleFeed streams feed updates over SSE. The viewer's role comes from the
// gateway-forwarded x-user-role header; unknown roles connect fine and simply
// see an empty feed — the tier policy denies by returning false, not by
// rejecting the request.
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !requireUser(w, r) {
		return
	}
	role := tier.Role(r.Header.Get("x-user-role"))

	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := feed.NewSubscriber(role, h.listings, h.stream, h.logger, h.stats)
	h.hub.Register(sub)
	defer h.hub.Unregister(sub.ID())

	ctx := r.Context()
	go func() {
		if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Warn("feed subscriber stopped", "session", sub.ID(), "err", err)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, "session", map[string]string{"session": sub.ID()})
	flusher.Flush()

	for update := range sub.Updates() {
		writeSSE(w, "update", update)
		flusher.Flush()
	}
}

// writeSSE emits one named SSE event with a JSON payload.
func writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n"))
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func requireUser(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("x-user-id") == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return false
	}
	return true
}

// writeListingError maps listing store errors to HTTP responses.
func (h *Handler) writeListingError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, listing.ErrNotFound) {
		jsonError(w, "listing not found", http.StatusNotFound)
		return
	}
	var ve *listing.ValidationError
	if errors.As(err, &ve) {
		jsonError(w, ve.Msg, http.StatusBadRequest)
		return
	}
	h.logger.Error(op+" failed", "err", err)
	jsonError(w, "database error", http.StatusInternalServerError)
}

func jsonOK(w http.ResponseWriter, v any) {
	jsonWith(w, http.StatusOK, v)
}

func jsonWith(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonWith(w, code, map[string]string{"error": msg})
}
