package server

import (
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// decoder keeps numbers exactly as sent so they can be persisted verbatim.
var decoder = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

const (
	statusOK      = "ok"
	statusSuccess = "success"
	statusError   = "error"
)

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// parseError carries the HTTP status for a rejected request.
type parseError struct {
	inner error
	code  int
}

func newParseError(inner error, code int) *parseError {
	return &parseError{inner: inner, code: code}
}

func (e *parseError) Error() error {
	return e.inner
}

func (e *parseError) Code() int {
	return e.code
}

func (e *parseError) String() string {
	return fmt.Sprintf("error: %v, code: %d", e.inner, e.code)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error, code int) {
	writeJSON(w, code, statusResponse{Status: statusError, Message: err.Error()})
}
