// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding, and the coded error bodies the frontend keys off.
package httputil

import (
	"encoding/json"
	"net/http"
)

// Stable machine-readable error codes returned to clients. The frontend
// switches on these, so they are part of the API contract.
const (
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeInvalidToken           = "INVALID_TOKEN"
	CodeAuthError              = "AUTH_ERROR"
	CodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	CodeAdminRequired          = "ADMIN_REQUIRED"
	CodeStaffRequired          = "STAFF_REQUIRED"
	CodeProfileNotFound        = "PROFILE_NOT_FOUND"
	CodeDuplicate              = "DUPLICATE"
	CodeValidationError        = "VALIDATION_ERROR"
)

// CodedError is the standard error body: {"error": "...", "code": "..."}
type CodedError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteCodedError writes a JSON error response with a stable code
func WriteCodedError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(CodedError{Error: message, Code: code})
}

// WriteError writes a JSON error response without a code field
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// WriteValidationError writes a validation error response (400 Bad Request)
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteCodedError(w, http.StatusBadRequest, message, CodeValidationError)
}

// WriteInternalError writes an internal server error response (500 Internal Server Error)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}
