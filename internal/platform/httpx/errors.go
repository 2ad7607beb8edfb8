// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"
)

// FieldProblem extends ProblemDetail with per-field validation messages.
type FieldProblem struct {
	ProblemDetail
	Fields map[string]string `json:"fields,omitempty"`
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusNotFound, "Not Found", detail)
}

// Conflict writes a 409 problem.
func Conflict(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusConflict, "Conflict", detail)
}

// Forbidden writes a 403 problem.
func Forbidden(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusForbidden, "Forbidden", detail)
}

// Internal writes a 500 problem without leaking the underlying error.
func Internal(w http.ResponseWriter) {
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// Invalid writes a 422 problem listing the offending fields.
func Invalid(w http.ResponseWriter, detail string, fields map[string]string) {
	JSON(w, http.StatusUnprocessableEntity, FieldProblem{
		ProblemDetail: ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: detail,
		},
		Fields: fields,
	})
}
