package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/service"
)

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseListParams coerces the listing query string. Malformed values fall
// back to their zero value and are ignored, never rejected.
func parseListParams(r *http.Request) service.ListParams {
	q := r.URL.Query()
	var params service.ListParams

	if v := strings.TrimSpace(q.Get("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Page = n
		}
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}
	if k := core.Kind(strings.TrimSpace(q.Get("kind"))); k.Validate() == nil {
		params.Kind = k
	}
	params.Category = sanitizeInput(q.Get("category"))
	if d, err := core.ParseDate(q.Get("startDate")); err == nil {
		params.Start = d
	}
	if d, err := core.ParseDate(q.Get("endDate")); err == nil {
		params.End = d
	}

	return params
}
