package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/service"
)

type transactionBody struct {
	Title    string     `json:"title"`
	Amount   core.Money `json:"amount"`
	Kind     core.Kind  `json:"kind"`
	Category string     `json:"category"`
	Date     core.Date  `json:"date"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner := userID(r.Context())

	var body transactionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, core.ErrValidation) {
			respondError(r.Context(), w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.txns.Create(r.Context(), owner, service.CreateRequest{
		Title:      sanitizeInput(body.Title),
		Amount:     body.Amount,
		Kind:       body.Kind,
		Category:   sanitizeInput(body.Category),
		OccurredAt: body.Date,
	})
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	s.invalidateAggregates(owner)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	owner := userID(r.Context())

	result, err := s.txns.List(r.Context(), owner, parseListParams(r))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	owner := userID(r.Context())
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	t, err := s.txns.Get(r.Context(), owner, id)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

type transactionPatch struct {
	Title    *string     `json:"title"`
	Amount   *core.Money `json:"amount"`
	Kind     *core.Kind  `json:"kind"`
	Category *string     `json:"category"`
	Date     *core.Date  `json:"date"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner := userID(r.Context())
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	var patch transactionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		if errors.Is(err, core.ErrValidation) {
			respondError(r.Context(), w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := service.UpdateRequest{
		Amount:     patch.Amount,
		Kind:       patch.Kind,
		OccurredAt: patch.Date,
	}
	if patch.Title != nil {
		title := sanitizeInput(*patch.Title)
		req.Title = &title
	}
	if patch.Category != nil {
		category := sanitizeInput(*patch.Category)
		req.Category = &category
	}

	updated, err := s.txns.Update(r.Context(), owner, id, req)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	s.invalidateAggregates(owner)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner := userID(r.Context())
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	if err := s.txns.Delete(r.Context(), owner, id); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	s.invalidateAggregates(owner)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	owner := userID(r.Context())

	if cached, ok := s.summaryCache.Get(owner); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	summary, err := s.txns.Summary(r.Context(), owner)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	s.summaryCache.Set(owner, summary)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	owner := userID(r.Context())

	if cached, ok := s.analyticsCache.Get(owner); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	analytics, err := s.txns.Analytics(r.Context(), owner)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	s.analyticsCache.Set(owner, analytics)
	writeJSON(w, http.StatusOK, analytics)
}

// transactionID validates the path id. A malformed uuid is a 400, distinct
// from the 404 of a well-formed id that matches nothing.
func transactionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(r.Context(), w, core.ErrInvalidID)
		return "", false
	}
	return id, true
}
