// Package handler implements the HTTP handlers for the attraction queue API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, attraction.go, queue.go, export.go) but all share the same
// Server struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/attraction-queue/internal/domain"
)

// AttractionServicer defines the registry operations the attraction handlers
// depend on. Defining the interface here (in the consumer package) lets
// handler tests inject a mock without touching storage or the service layer.
type AttractionServicer interface {
	Create(ctx context.Context, name, description string, serviceDuration int) (domain.Attraction, error)
	Detail(ctx context.Context, id int64) (domain.AttractionDetail, error)
	List(ctx context.Context) ([]domain.AttractionSummary, error)
	Update(ctx context.Context, id int64, name, description string, serviceDuration int) (domain.Attraction, error)
	Delete(ctx context.Context, id int64) (int, error)
}

// QueueServicer defines the queue operations the queue and export handlers
// depend on.
type QueueServicer interface {
	Enqueue(ctx context.Context, attractionID int64, personName string) (domain.EnqueueResult, error)
	DequeueNext(ctx context.Context, attractionID int64) (domain.DequeueResult, error)
	DequeueByID(ctx context.Context, entryID int64) (domain.DequeueResult, error)
	Clear(ctx context.Context, attractionID int64) (domain.ClearResult, error)
	Status(ctx context.Context, attractionID int64) (domain.QueueStatus, error)
	Line(ctx context.Context, attractionID int64) (domain.Line, error)
	Position(ctx context.Context, entryID int64) (domain.Position, error)
	Export(ctx context.Context) ([]domain.BoardRow, error)
}

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies shared by every handler.
type Server struct {
	attractions AttractionServicer
	queues      QueueServicer
	store       Pinger
	log         *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
// A nil logger discards output.
func NewServer(attractions AttractionServicer, queues QueueServicer, store Pinger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{attractions: attractions, queues: queues, store: store, log: log}
}

// Register mounts every API route on r. Middleware belongs to the caller, so
// main.go and tests can wrap the same routes differently.
func (s *Server) Register(r chi.Router) {
	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.methodNotAllowed)

	r.Get("/healthz", s.GetHealth)
	r.Get("/export", s.GetExport)

	r.Get("/attractions", s.ListAttractions)
	r.Post("/attractions", s.CreateAttraction)
	r.Get("/attractions/{id}", s.GetAttraction)
	r.Put("/attractions/{id}", s.UpdateAttraction)
	r.Delete("/attractions/{id}", s.DeleteAttraction)

	r.Get("/attractions/{id}/queue", s.ListQueue)
	r.Post("/attractions/{id}/queue", s.Enqueue)
	r.Delete("/attractions/{id}/queue", s.ClearQueue)
	r.Post("/attractions/{id}/queue/next", s.DequeueNext)
	r.Get("/attractions/{id}/wait", s.GetWait)

	r.Delete("/queue/{entryID}", s.DequeueByID)
	r.Get("/queue/{entryID}/position", s.GetPosition)
}

// Handler returns a bare chi router with every API route registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}
