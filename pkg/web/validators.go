package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// ParseOptionalBool reads a boolean query parameter. An absent parameter yields
// (false, false, true); a malformed one writes a 400 and yields ok=false.
func ParseOptionalBool(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string) (value, present, ok bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, false, true
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s value: %s", key, raw))
		return false, true, false
	}
	return parsed, true, true
}
