package http

import (
	"net/http"
	"strconv"
	"strings"

	"fareboard/internal/core"
	"fareboard/internal/middleware/auth"
)

// PublicPaths skip owner resolution.
var PublicPaths = []string{"/healthz", "/readyz", "/metrics"}

func ownerOf(r *http.Request) (core.OwnerID, error) {
	owner, ok := auth.OwnerFrom(r.Context())
	if !ok {
		return "", &core.ValidationError{Field: "owner", Msg: "no owner on request", Err: core.ErrInvalidOwner}
	}
	return owner, owner.Validate()
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
