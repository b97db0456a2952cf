// export.go implements GET /export.
// Returns the whole queue board as a flat table.
// Supports content negotiation via ?format=csv (CSV) or default (JSON).

package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkordes/attraction-queue/internal/domain"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"attraction_id", "attraction_name", "service_duration", "depth",
	"position", "entry_id", "person_name", "enqueued_at", "estimated_wait",
}

// BoardRow is one JSON row of GET /export. Entry fields are omitted for
// attractions whose line is empty.
type BoardRow struct {
	AttractionID    int64      `json:"attraction_id"`
	AttractionName  string     `json:"attraction_name"`
	ServiceDuration int        `json:"service_duration"`
	Depth           int        `json:"depth"`
	Position        *int       `json:"position,omitempty"`
	EntryID         *int64     `json:"entry_id,omitempty"`
	PersonName      *string    `json:"person_name,omitempty"`
	EnqueuedAt      *time.Time `json:"enqueued_at,omitempty"`
	EstimatedWait   *int       `json:"estimated_wait,omitempty"`
}

// GetExport implements GET /export.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) GetExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format != "" && format != "csv" && format != "json" {
		s.writeError(w, r, fmt.Errorf("%w: format must be csv or json", errBadRequest), "export")
		return
	}

	rows, err := s.queues.Export(r.Context())
	if err != nil {
		s.writeError(w, r, err, "export")
		return
	}

	if format == "csv" {
		writeCSV(w, rows)
		return
	}
	writeJSON(w, http.StatusOK, buildJSONRows(rows))
}

// buildJSONRows converts domain rows to the JSON response rows.
func buildJSONRows(rows []domain.BoardRow) []BoardRow {
	out := make([]BoardRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, domainRowToResponse(r))
	}
	return out
}

// writeCSV encodes domain rows as CSV with a header row.
func writeCSV(w http.ResponseWriter, rows []domain.BoardRow) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	cw.Write(csvHeaders)
	for _, r := range rows {
		//nolint:errcheck
		cw.Write(domainRowToCSVRecord(r))
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="queue-board.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck
	w.Write(buf.Bytes())
}

// domainRowToResponse maps a domain.BoardRow to its JSON shape.
// Entry fields become nil pointers when the row has no entry.
func domainRowToResponse(r domain.BoardRow) BoardRow {
	row := BoardRow{
		AttractionID:    r.AttractionID,
		AttractionName:  r.AttractionName,
		ServiceDuration: r.ServiceDuration,
		Depth:           r.Depth,
	}
	if r.EntryID == 0 {
		return row
	}
	row.Position = &r.Position
	row.EntryID = &r.EntryID
	row.PersonName = &r.PersonName
	row.EnqueuedAt = r.EnqueuedAt
	row.EstimatedWait = &r.EstimatedWait
	return row
}

// domainRowToCSVRecord encodes a domain.BoardRow as a flat string slice.
// Entry columns are empty strings for an attraction with an empty line.
func domainRowToCSVRecord(r domain.BoardRow) []string {
	record := []string{
		strconv.FormatInt(r.AttractionID, 10),
		r.AttractionName,
		strconv.Itoa(r.ServiceDuration),
		strconv.Itoa(r.Depth),
		"", "", "", "", "",
	}
	if r.EntryID == 0 {
		return record
	}
	record[4] = strconv.Itoa(r.Position)
	record[5] = strconv.FormatInt(r.EntryID, 10)
	record[6] = r.PersonName
	record[7] = formatOptionalTime(r.EnqueuedAt)
	record[8] = strconv.Itoa(r.EstimatedWait)
	return record
}

// formatOptionalTime returns the RFC3339 (nanosecond) representation of t, or "" if t is nil.
func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
