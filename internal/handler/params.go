package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// pathID binds the named path parameter as a positive int64 using OpenAPI
// "simple" style, the same binding generated servers use.
func pathID(r *http.Request, name string) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return 0, fmt.Errorf("%w: invalid format for parameter %s", errBadRequest, name)
	}
	if id < 1 {
		return 0, fmt.Errorf("%w: parameter %s must be a positive integer", errBadRequest, name)
	}
	return id, nil
}

// queryInt binds an optional form-style integer query parameter. A missing
// parameter leaves dest nil.
func queryInt(r *http.Request, name string) (*int, error) {
	var dest *int
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &dest); err != nil {
		return nil, fmt.Errorf("%w: invalid format for parameter %s", errBadRequest, name)
	}
	return dest, nil
}

// decodeBody reads a JSON request body into dst. Body size errors from
// middleware.NewMaxBodySizeHandler pass through unchanged so they map to 413.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Errorf("%w: request body is required", errBadRequest)
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &tooLarge):
		return err
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: request body is required", errBadRequest)
	default:
		return fmt.Errorf("%w: malformed JSON body", errBadRequest)
	}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // the status line is already sent; nothing useful to do on failure.
	json.NewEncoder(w).Encode(v)
}
