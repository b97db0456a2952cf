package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pkordes/attraction-queue/internal/domain"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorDetail as {"error": {...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// errBadRequest marks input rejected before reaching the service layer
// (malformed JSON, non-numeric path ids, bad query parameters).
var errBadRequest = errors.New("bad request")

// notFoundBody returns an ErrorResponse for a missing resource.
// The caller supplies the human-readable message (e.g. "attraction not found")
// because the handler is the layer that knows what was being looked up.
func notFoundBody(message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: domain.Kind(domain.ErrNotFound), Message: message}}
}

// writeError maps err to a status code and writes the error body.
// subject names what the request was about ("attraction", "queue entry") and
// is only used for 404 messages.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, subject string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: ErrorDetail{
			Code: "payload_too_large", Message: "request body too large",
		}})
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{
			Code: "bad_request", Message: unwrapMessage(err, errBadRequest),
		}})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, notFoundBody(subject+" not found"))
	case errors.Is(err, domain.ErrDuplicateName):
		writeJSON(w, http.StatusConflict, domainBody(err, domain.ErrDuplicateName))
	case errors.Is(err, domain.ErrEmptyQueue):
		writeJSON(w, http.StatusConflict, domainBody(err, domain.ErrEmptyQueue))
	case errors.Is(err, domain.ErrInvalidName):
		writeJSON(w, http.StatusUnprocessableEntity, domainBody(err, domain.ErrInvalidName))
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, domainBody(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrStorage):
		s.log.ErrorContext(r.Context(), "storage failure",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: ErrorDetail{
			Code: domain.Kind(err), Message: "storage temporarily unavailable",
		}})
	default:
		s.log.ErrorContext(r.Context(), "unhandled error",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
			Code: domain.Kind(err), Message: "internal server error",
		}})
	}
}

func domainBody(err, sentinel error) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: domain.Kind(sentinel), Message: unwrapMessage(err, sentinel)}}
}

// unwrapMessage extracts the human-readable part that follows a wrapped
// sentinel, e.g.
// "service.QueueManager.Enqueue: invalid person name: name must not be empty"
// becomes "name must not be empty". Without a detail the sentinel text is used.
func unwrapMessage(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error()
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return marker
	}
	detail := strings.TrimPrefix(msg[i+len(marker):], ": ")
	if detail == "" {
		return marker
	}
	return detail
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, notFoundBody("route not found"))
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: ErrorDetail{
		Code: "method_not_allowed", Message: r.Method + " is not supported on " + r.URL.Path,
	}})
}
