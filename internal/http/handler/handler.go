package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/smarthubultra/identity-service/internal/http/response"
)

// decodeJSON reads the request body into dst. A syntactically broken or
// oversized body produces the 400 itself; callers only see ok=false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			response.Error(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "request body required", nil)
			return false
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large", nil)
			return false
		}
		response.Error(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed JSON body", nil)
		return false
	}
	return true
}
