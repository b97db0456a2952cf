// Package repo contains all database access logic for the attraction queue service.
// It defines the storage abstraction shared by every backend and the Postgres
// implementation of it. No business logic lives here, only storage and type mapping.
//
// Other backends live in sub-packages (memstore, redisstore) and are verified
// against the same behavioural suite in storetest.
package repo

import (
	"context"

	"github.com/pkordes/attraction-queue/internal/domain"
)

// AttractionRepo defines the persistence operations for Attractions.
type AttractionRepo interface {
	// Create inserts a new attraction and returns the persisted record with its
	// generated id and timestamps.
	// Returns domain.ErrDuplicateName if the name is already taken.
	Create(ctx context.Context, a domain.Attraction) (domain.Attraction, error)

	// GetByID retrieves a single attraction by id.
	// Returns domain.ErrNotFound if no attraction with that id exists.
	GetByID(ctx context.Context, id int64) (domain.Attraction, error)

	// GetForUpdate is GetByID that, inside a transaction, also locks the
	// attraction against concurrent writers until the transaction ends.
	// Backends without row locks behave exactly like GetByID.
	GetForUpdate(ctx context.Context, id int64) (domain.Attraction, error)

	// FindByName retrieves an attraction by exact, case-sensitive name.
	// Returns domain.ErrNotFound if no attraction has that name.
	FindByName(ctx context.Context, name string) (domain.Attraction, error)

	// List returns all attractions ordered by name ascending, compared byte-wise.
	List(ctx context.Context) ([]domain.Attraction, error)

	// Update overwrites name, description and service duration.
	// Returns domain.ErrNotFound if the attraction does not exist and
	// domain.ErrDuplicateName if the name belongs to another attraction.
	Update(ctx context.Context, a domain.Attraction) (domain.Attraction, error)

	// Delete removes an attraction together with any queue entries still
	// referencing it, in one atomic step, and returns how many entries went
	// with it. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id int64) (int, error)
}

// QueueRepo defines the persistence operations for queue entries.
// Entries of one attraction are ordered by enqueue time ascending, then id ascending.
//
// Insert, PopHead and Delete also return the depth of the affected line after
// the change, read in the same atomic step, so callers never need a second
// call that could fail after the mutation has happened.
type QueueRepo interface {
	// Insert appends a new entry to the attraction's line. The backend assigns
	// the id (never reused) and the enqueue timestamp.
	// Returns domain.ErrNotFound if the attraction does not exist.
	Insert(ctx context.Context, attractionID int64, personName string) (domain.QueueEntry, int, error)

	// PopHead removes and returns the earliest entry of the attraction's line.
	// Returns domain.ErrEmptyQueue if the line is empty.
	PopHead(ctx context.Context, attractionID int64) (domain.QueueEntry, int, error)

	// GetByID retrieves a single entry. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id int64) (domain.QueueEntry, error)

	// Delete removes a single entry regardless of its position and returns it.
	// Returns domain.ErrNotFound if absent.
	Delete(ctx context.Context, id int64) (domain.QueueEntry, int, error)

	// DeleteByAttraction removes every entry of the attraction's line and
	// returns how many were removed.
	DeleteByAttraction(ctx context.Context, attractionID int64) (int, error)

	// Count returns the number of entries waiting for the attraction.
	Count(ctx context.Context, attractionID int64) (int, error)

	// CountAll returns the number of waiting entries per attraction id.
	// Attractions with an empty line may be absent from the map.
	CountAll(ctx context.Context) (map[int64]int, error)

	// ListByAttraction returns the attraction's line, oldest first.
	ListByAttraction(ctx context.Context, attractionID int64) ([]domain.QueueEntry, error)

	// Rank returns how many entries of the same line are ahead of the entry.
	// Returns domain.ErrNotFound if the entry is no longer waiting.
	Rank(ctx context.Context, entry domain.QueueEntry) (int, error)
}

// Repos groups the repositories that share one connection or transaction.
type Repos interface {
	Attractions() AttractionRepo
	Queue() QueueRepo
}

// Store is the storage abstraction the service layer depends on.
// Calls made through the embedded Repos run outside any transaction; InTx runs
// fn against repositories bound to a single transaction that commits when fn
// returns nil and rolls back otherwise.
type Store interface {
	Repos

	// InTx runs fn as one atomic unit of work.
	InTx(ctx context.Context, fn func(Repos) error) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close()
}
