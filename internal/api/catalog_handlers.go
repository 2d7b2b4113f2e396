package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andrevros/imovelsync/internal/catalog"
	"github.com/andrevros/imovelsync/internal/models"
)

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !catalog.Valid(status) {
		RespondWithError(w, http.StatusBadRequest, "Unknown status filter")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	entries, err := s.store.ListEntries(status, page, perPage)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list catalog entries")
		return
	}
	total, err := s.store.CountEntries(status)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to count catalog entries")
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
	})
}

func (s *Server) handleCatalogStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]int)
	for _, status := range []string{
		catalog.StatusPending, catalog.StatusReviewing, catalog.StatusApproved,
		catalog.StatusRejected, catalog.StatusArchived, catalog.StatusMigrated,
	} {
		count, err := s.store.CountEntries(status)
		if err != nil {
			RespondWithError(w, http.StatusInternalServerError, "Failed to count catalog entries")
			return
		}
		stats[status] = count
	}
	RespondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromURL(w, r)
	if !ok {
		return
	}

	// The payload is served alongside the review state so the UI can
	// show the full listing without a second request.
	var property json.RawMessage
	if entry.Payload != "" {
		property = json.RawMessage(entry.Payload)
	}
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entry":    entry,
		"property": property,
	})
}

func (s *Server) handleListEntryTasks(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromURL(w, r)
	if !ok {
		return
	}
	tasks, err := s.store.ListTasksForEntry(entry.ID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list migration tasks")
		return
	}
	RespondWithJSON(w, http.StatusOK, tasks)
}

// handleStartReview claims an entry for the logged-in reviewer.
func (s *Server) handleStartReview(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromURL(w, r)
	if !ok {
		return
	}
	if err := s.store.TransitionStatus(entry.ID, entry.Status, catalog.StatusReviewing); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": catalog.StatusReviewing})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, catalog.StatusApproved)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, catalog.StatusRejected)
}

func (s *Server) review(w http.ResponseWriter, r *http.Request, decision string) {
	entry, ok := s.entryFromURL(w, r)
	if !ok {
		return
	}
	user := getUserFromContext(r)

	var payload struct {
		Notes string `json:"notes"`
	}
	// An empty body means no notes; only malformed JSON is an error.
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := s.store.SetReview(entry.ID, decision, user.Username, payload.Notes); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": decision})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.entryFromURL(w, r)
	if !ok {
		return
	}
	if err := s.store.ArchiveEntry(entry.ID); err != nil {
		respondWithCatalogError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": catalog.StatusArchived})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	tasks, err := s.store.ListTasks(limit)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list migration tasks")
		return
	}
	RespondWithJSON(w, http.StatusOK, tasks)
}

func (s *Server) entryFromURL(w http.ResponseWriter, r *http.Request) (*models.CatalogEntry, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid entry ID")
		return nil, false
	}
	entry, err := s.store.GetEntry(id)
	if errors.Is(err, sql.ErrNoRows) {
		RespondWithError(w, http.StatusNotFound, "Catalog entry not found")
		return nil, false
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to load catalog entry")
		return nil, false
	}
	return entry, true
}

// respondWithCatalogError maps lifecycle errors to HTTP status codes:
// illegal transitions and lost races are conflicts, a missing rejection
// reason is a bad request.
func respondWithCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrReasonRequired):
		RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrInvalidTransition), errors.Is(err, catalog.ErrNotApproved):
		RespondWithError(w, http.StatusConflict, err.Error())
	default:
		RespondWithError(w, http.StatusInternalServerError, "Failed to update catalog entry")
	}
}
