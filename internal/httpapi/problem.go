// Package httpapi holds the JSON and RFC 7807 response helpers shared by
// the server and plugin handlers.
package httpapi

import (
	"encoding/json"
	"net/http"
)

// ProblemBase prefixes every problem type URI.
const ProblemBase = "https://fieldcast.dev/problems/"

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound         = ProblemBase + "not-found"
	ProblemTypeBadRequest       = ProblemBase + "bad-request"
	ProblemTypeUnprocessable    = ProblemBase + "unprocessable"
	ProblemTypeConflict         = ProblemBase + "conflict"
	ProblemTypeMethodNotAllowed = ProblemBase + "method-not-allowed"
	ProblemTypeRateLimited      = ProblemBase + "rate-limited"
	ProblemTypeUnavailable      = ProblemBase + "unavailable"
	ProblemTypeInternal         = ProblemBase + "internal-error"
)

// Problem is an RFC 7807 Problem Details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes p as application/problem+json.
func WriteProblem(w http.ResponseWriter, p Problem) {
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

var problemTypes = map[int]string{
	http.StatusNotFound:            ProblemTypeNotFound,
	http.StatusBadRequest:          ProblemTypeBadRequest,
	http.StatusUnprocessableEntity: ProblemTypeUnprocessable,
	http.StatusConflict:            ProblemTypeConflict,
	http.StatusMethodNotAllowed:    ProblemTypeMethodNotAllowed,
	http.StatusTooManyRequests:     ProblemTypeRateLimited,
	http.StatusServiceUnavailable:  ProblemTypeUnavailable,
	http.StatusInternalServerError: ProblemTypeInternal,
}

// Error writes a problem response for status using the request path as
// the instance.
func Error(w http.ResponseWriter, r *http.Request, status int, detail string) {
	typ, ok := problemTypes[status]
	if !ok {
		typ = "about:blank"
	}
	var instance string
	if r != nil {
		instance = r.URL.Path
	}
	WriteProblem(w, Problem{
		Type:     typ,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, http.StatusNotFound, detail)
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, http.StatusBadRequest, detail)
}

// InternalError writes a 500 problem response. Detail is fixed so storage
// errors never reach clients.
func InternalError(w http.ResponseWriter, r *http.Request) {
	Error(w, r, http.StatusInternalServerError, "an unexpected error occurred")
}
