// Package domain contains the core data types for the attraction queue service.
// This package has zero external dependencies and is imported by every other
// internal package (repo, service, handler).
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultServiceDuration is the per-person service time, in minutes, applied
// when an attraction is created or updated without a positive duration.
const DefaultServiceDuration = 5

// Attraction is a bookable experience at the event with a fixed per-person
// service duration. Name is unique across all attractions (case-sensitive).
// ServiceDuration is the time, in minutes, needed to serve one person.
type Attraction struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	ServiceDuration int       `json:"service_duration"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewAttraction builds a validated Attraction from raw input.
// The name is trimmed and must not be blank; a non-positive duration falls
// back to DefaultServiceDuration.
func NewAttraction(name, description string, serviceDuration int) (Attraction, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Attraction{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if serviceDuration <= 0 {
		serviceDuration = DefaultServiceDuration
	}
	return Attraction{
		Name:            name,
		Description:     strings.TrimSpace(description),
		ServiceDuration: serviceDuration,
	}, nil
}

// AttractionSummary is one row of the attraction board: the attraction plus
// its current queue depth and estimated wait.
type AttractionSummary struct {
	Attraction
	Depth         int `json:"depth"`
	EstimatedWait int `json:"estimated_wait"`
}

// AttractionDetail is an attraction together with the state of its line,
// read in one step.
type AttractionDetail struct {
	Attraction
	Queue QueueStatus `json:"queue"`
}
