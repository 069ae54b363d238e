package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/validation"
)

// defaultMaxBody caps request bodies when the router does not set a limit.
const defaultMaxBody = 1 << 20

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeAppError maps err onto its HTTP status. Server-side failures are
// masked behind the code's default message.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)
	msg := err.Error()
	var app *errors.AppError
	if errors.As(err, &app) {
		msg = app.Message
	}
	if status >= http.StatusInternalServerError {
		msg = errors.DefaultMessageForCode(code)
	}
	writeJSON(w, status, ErrorResponse{Code: string(code), Message: msg})
}

// writeReport writes a report whose Outcome may carry a typed failure. The
// body is the report either way so callers can read failure.kind.
func writeReport(w http.ResponseWriter, outcome intelligence.Outcome, report interface{}) {
	status := http.StatusOK
	if outcome.Failure != nil {
		status = errors.HTTPStatusForCode(outcome.Failure.Code)
	}
	writeJSON(w, status, report)
}

// decodeBody reads a JSON body into dst and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, defaultMaxBody)
	data, err := io.ReadAll(body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Code: string(errors.ErrCodeBadRequest), Message: "request body too large"})
		return false
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: string(errors.ErrCodeBadRequest), Message: "request body is required"})
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: string(errors.ErrCodeSerialization), Message: "malformed JSON body"})
		return false
	}
	if fields := validation.Fields(dst); len(fields) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Code:    string(errors.ErrCodeValidation),
			Message: "validation failed",
			Fields:  fields,
		})
		return false
	}
	return true
}

func userID(r *http.Request) string {
	return chi.URLParam(r, "userID")
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.NewValidation("%s must be an integer", key)
	}
	return n, nil
}

// queryFloat parses a required float query parameter.
func queryFloat(r *http.Request, key string) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, errors.NewValidation("%s is required", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.NewValidation("%s must be a number", key)
	}
	return f, nil
}
