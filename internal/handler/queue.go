package handler

import (
	"net/http"

	"github.com/pkordes/attraction-queue/internal/domain"
)

// EnqueueRequest is the body of POST /attractions/{id}/queue.
type EnqueueRequest struct {
	PersonName string `json:"person_name"`
}

// Pagination describes the page returned by a paginated list endpoint.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// QueueResponse is one page of an attraction's line plus its status.
// Status.Depth is the length of the listed line, so it equals Pagination.Total.
type QueueResponse struct {
	Data       []domain.QueueEntry `json:"data"`
	Pagination Pagination          `json:"pagination"`
	Status     domain.QueueStatus  `json:"status"`
}

// ListQueue handles GET /attractions/{id}/queue.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=50, max=500).
func (s *Server) ListQueue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	params := domain.NewPaginationParams(page, limit)

	line, err := s.queues.Line(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}

	start, end := params.Window(len(line.Entries))
	writeJSON(w, http.StatusOK, QueueResponse{
		Data: line.Entries[start:end],
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: len(line.Entries),
		},
		Status: line.Status,
	})
}

// Enqueue handles POST /attractions/{id}/queue.
func (s *Server) Enqueue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	var body EnqueueRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}

	result, err := s.queues.Enqueue(r.Context(), id, body.PersonName)
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// DequeueNext handles POST /attractions/{id}/queue/next.
func (s *Server) DequeueNext(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}

	result, err := s.queues.DequeueNext(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ClearQueue handles DELETE /attractions/{id}/queue.
func (s *Server) ClearQueue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}

	result, err := s.queues.Clear(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetWait handles GET /attractions/{id}/wait.
func (s *Server) GetWait(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}

	status, err := s.queues.Status(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "attraction")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// DequeueByID handles DELETE /queue/{entryID}.
// The response carries the entry's attraction_id so callers learn which line
// it left.
func (s *Server) DequeueByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "entryID")
	if err != nil {
		s.writeError(w, r, err, "queue entry")
		return
	}

	result, err := s.queues.DequeueByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "queue entry")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetPosition handles GET /queue/{entryID}/position.
func (s *Server) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "entryID")
	if err != nil {
		s.writeError(w, r, err, "queue entry")
		return
	}

	pos, err := s.queues.Position(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "queue entry")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}
