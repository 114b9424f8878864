package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lzjever/mbos-pvs/internal/core"
)

// ErrorResponse is the single error shape every failing endpoint returns.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError writes a PVS error response.
func WriteError(w http.ResponseWriter, err *core.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code.HTTPStatus())
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: err.Message,
		Code:  string(err.Code),
	})
}

// WriteFailure maps any error onto the error response shape. Non-AppError
// values are reported as internal.
func WriteFailure(w http.ResponseWriter, err error) {
	var appErr *core.AppError
	if errors.As(err, &appErr) {
		WriteError(w, appErr)
		return
	}
	WriteError(w, core.NewAppError(core.ErrInternal, err.Error()))
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
