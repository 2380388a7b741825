package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func addServerTiming(w http.ResponseWriter, name string, d time.Duration) {
	w.Header().Add("Server-Timing", fmt.Sprintf("%s;dur=%.1f", name, float64(d.Microseconds())/1000))
}

// parseBBox reads "minLng,minLat,maxLng,maxLat". Only the shape is checked
// here; ordering is left to the catalog query.
func parseBBox(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox needs 4 comma-separated numbers, got %d", len(parts))
	}
	out := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox value %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

// intParam returns the query parameter as an int, or def when absent or invalid.
func intParam(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
