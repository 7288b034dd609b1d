package handlers

import (
	"encoding/json"
	"net/http"
)

const contentTypeJSON = "application/json; charset=utf-8"

// ErrorBody is the JSON shape of an error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// SQLErrorBody is an error response that echoes the generated statement.
type SQLErrorBody struct {
	Detail string `json:"detail"`
	SQL    string `json:"sql"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, detail string) error {
	return WriteJSON(w, statusCode, ErrorBody{Detail: detail})
}

// SQLErrorResponse writes a JSON error response carrying the offending SQL.
func SQLErrorResponse(w http.ResponseWriter, statusCode int, detail, sql string) error {
	return WriteJSON(w, statusCode, SQLErrorBody{Detail: detail, SQL: sql})
}

// WriteJSON writes a JSON response and returns any encoding error.
// Non-ASCII text and SQL comparison operators are written unescaped.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", contentTypeJSON)
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}
