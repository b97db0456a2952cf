package domain

import "time"

// BoardRow is a single row of the queue board export.
// It is a flat, denormalized view: one row per waiting entry, with attraction
// fields repeated for every entry of that attraction. Attractions with an
// empty line yield one row with zero values for all entry fields.
type BoardRow struct {
	// Attraction fields, repeated for every entry of the attraction.
	AttractionID    int64
	AttractionName  string
	ServiceDuration int
	Depth           int

	// Entry fields, zero when the line is empty.
	Position   int
	EntryID    int64
	PersonName string
	EnqueuedAt *time.Time
	// EstimatedWait is the wait of this entry, position × service duration.
	EstimatedWait int
}
