// JSON response helpers shared by every handler, including the
// kind-to-status mapping for domain errors.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lanwatch/lanwatch/internal/core/model"
)

// JSON writes data as a JSON response with statusCode.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error maps a domain error to a transport status code and writes a
// JSON error body.
func Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var me *model.Error
	if errors.As(err, &me) {
		switch me.Kind {
		case model.KindNotFound:
			status = http.StatusNotFound
		case model.KindInvalid:
			status = http.StatusBadRequest
		case model.KindConflict:
			status = http.StatusConflict
		case model.KindUnreachable:
			status = http.StatusBadGateway
		case model.KindFatal:
			status = http.StatusInternalServerError
		}
	}
	JSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
