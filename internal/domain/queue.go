package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MinPersonNameLength is the minimum number of characters a person's name must
// have after surrounding whitespace is trimmed.
const MinPersonNameLength = 2

// QueueEntry is one waiting person's claim on a position in an attraction's line.
// AttractionID is a back-reference; the entry is owned by the queue, not the attraction.
// EnqueuedAt is used only for ordering: entries are served by EnqueuedAt
// ascending, then by ID ascending.
type QueueEntry struct {
	ID           int64     `json:"id"`
	AttractionID int64     `json:"attraction_id"`
	PersonName   string    `json:"person_name"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// Before reports whether e arrived before other (FIFO order).
func (e QueueEntry) Before(other QueueEntry) bool {
	if e.EnqueuedAt.Equal(other.EnqueuedAt) {
		return e.ID < other.ID
	}
	return e.EnqueuedAt.Before(other.EnqueuedAt)
}

// EntryState is the terminal state of an entry that has left its line. Every
// stored entry is waiting; it leaves in exactly one of these states and is
// never stored again.
type EntryState string

const (
	// EntryServed: removed by DequeueNext or DequeueByID.
	EntryServed EntryState = "served"
	// EntryPurged: removed by Clear or by deleting the attraction.
	EntryPurged EntryState = "purged"
)

// NormalizePersonName trims surrounding whitespace and enforces
// MinPersonNameLength, counted in characters rather than bytes.
func NormalizePersonName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name must not be empty", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) < MinPersonNameLength {
		return "", fmt.Errorf("%w: name must have at least %d characters", ErrInvalidName, MinPersonNameLength)
	}
	return name, nil
}

// EstimatedWait returns the expected wait in minutes for a line of depth
// people at an attraction serving one person every serviceDuration minutes.
//
// The model is linear on purpose: it ignores parallel capacity, no-shows and
// variable service times.
func EstimatedWait(depth, serviceDuration int) int {
	if depth <= 0 || serviceDuration <= 0 {
		return 0
	}
	return depth * serviceDuration
}

// QueueStatus is a consistent snapshot of one attraction's line.
type QueueStatus struct {
	AttractionID    int64 `json:"attraction_id"`
	Depth           int   `json:"depth"`
	ServiceDuration int   `json:"service_duration"`
	EstimatedWait   int   `json:"estimated_wait"`
}

// NewQueueStatus derives the estimated wait from depth and the attraction's
// current service duration.
func NewQueueStatus(a Attraction, depth int) QueueStatus {
	return QueueStatus{
		AttractionID:    a.ID,
		Depth:           depth,
		ServiceDuration: a.ServiceDuration,
		EstimatedWait:   EstimatedWait(depth, a.ServiceDuration),
	}
}

// EnqueueResult is returned by Enqueue: the new entry plus the queue status
// read in the same atomic step as the insert.
type EnqueueResult struct {
	Entry  QueueEntry  `json:"entry"`
	Status QueueStatus `json:"status"`
}

// DequeueResult is returned by DequeueNext and DequeueByID. Entry.AttractionID
// tells the caller which line the entry was removed from.
type DequeueResult struct {
	Entry  QueueEntry  `json:"entry"`
	Status QueueStatus `json:"status"`
}

// ClearResult reports how many entries a Clear removed. Zero is a valid result.
type ClearResult struct {
	AttractionID int64 `json:"attraction_id"`
	Removed      int   `json:"removed"`
}

// Position describes where a waiting entry stands in its line.
// Position is 1-based; EstimatedWait counts the entry's own service time,
// matching the wait reported when the entry was enqueued.
type Position struct {
	Entry         QueueEntry `json:"entry"`
	Position      int        `json:"position"`
	Depth         int        `json:"depth"`
	EstimatedWait int        `json:"estimated_wait"`
}

// Line is an attraction's waiting entries, oldest first, together with the
// status computed from them. Both come from one read.
type Line struct {
	Status  QueueStatus  `json:"status"`
	Entries []QueueEntry `json:"entries"`
}
