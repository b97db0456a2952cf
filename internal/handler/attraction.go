package handler

import (
	"net/http"

	"github.com/pkordes/attraction-queue/internal/domain"
)

// AttractionRequest is the body of POST /attractions and PUT /attractions/{id}.
// A missing or non-positive service_duration falls back to the default.
type AttractionRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	ServiceDuration int    `json:"service_duration"`
}

// ListResponse wraps a collection as {"data": [...]}.
type ListResponse[T any] struct {
	Data []T `json:"data"`
}

// DeleteAttractionResponse reports how many waiting entries were purged.
type DeleteAttractionResponse struct {
	ID     int64 `json:"id"`
	Purged int   `json:"purged"`
}

// ListAttractions handles GET /attractions.
func (s *Server) ListAttractions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.attractions.List(r.Context())
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	if summaries == nil {
		summaries = []domain.AttractionSummary{}
	}
	writeJSON(w, http.StatusOK, ListResponse[domain.AttractionSummary]{Data: summaries})
}

// CreateAttraction handles POST /attractions.
func (s *Server) CreateAttraction(w http.ResponseWriter, r *http.Request) {
	var body AttractionRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}

	created, err := s.attractions.Create(r.Context(), body.Name, body.Description, body.ServiceDuration)
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetAttraction handles GET /attractions/{id}.
func (s *Server) GetAttraction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}

	detail, err := s.attractions.Detail(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateAttraction handles PUT /attractions/{id}.
func (s *Server) UpdateAttraction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	var body AttractionRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}

	updated, err := s.attractions.Update(r.Context(), id, body.Name, body.Description, body.ServiceDuration)
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteAttraction handles DELETE /attractions/{id}.
func (s *Server) DeleteAttraction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}

	purged, err := s.attractions.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	writeJSON(w, http.StatusOK, DeleteAttractionResponse{ID: id, Purged: purged})
}
