// Package response writes the API's JSON envelope from plain net/http
// handlers. Typed huma operations produce the same envelope through the api
// package's transformer.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store"
)

// Version is the envelope format version sent as "v".
const Version = 1

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	V       int        `json:"v"`
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the error half of an envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Ok wraps data in a success envelope.
func Ok(data any) Envelope {
	return Envelope{V: Version, Success: true, Data: data}
}

// Fail wraps an error body in a failure envelope.
func Fail(body ErrorBody) Envelope {
	return Envelope{V: Version, Success: false, Error: &body}
}

func write(w http.ResponseWriter, status int, env Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil && logger != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// JSON writes data in a success envelope with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	write(w, status, Ok(data), logger)
}

// Success writes a successful JSON response (200 OK).
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// Created writes a created response (201 Created).
func Created(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusCreated, data, logger)
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, status int, code domainerrors.Code, message string, details any, logger *slog.Logger) {
	write(w, status, Fail(ErrorBody{Code: string(code), Message: message, Details: details}), logger)
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusBadRequest, domainerrors.CodeValidation, message, nil, logger)
}

// HandleError writes the response for err. Domain errors keep their code and
// details, store not-found errors become 404 and anything else is a logged 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status, body := Describe(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	write(w, status, Fail(body), logger)
}

// Describe maps err to an HTTP status and error body.
func Describe(err error) (int, ErrorBody) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus(), ErrorBody{Code: string(domainErr.Code), Message: domainErr.Message, Details: domainErr.Details}
	}
	if errors.Is(err, store.ErrBookNotFound) || errors.Is(err, store.ErrPricingNotFound) {
		return http.StatusNotFound, ErrorBody{Code: string(domainerrors.CodeNotFound), Message: err.Error()}
	}
	if errors.Is(err, store.ErrDuplicateISBN) {
		exists := domainerrors.ErrAlreadyExists.WithCause(err)
		return exists.HTTPStatus(), ErrorBody{Code: string(exists.Code), Message: err.Error()}
	}
	return http.StatusInternalServerError, ErrorBody{Code: string(domainerrors.CodeInternal), Message: "internal server error"}
}
