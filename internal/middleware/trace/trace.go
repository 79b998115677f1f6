// Package trace tags every request with an ID and logs its outcome.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"fareboard/internal/log"
)

type ctxKey struct{}

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

const maxIncomingIDLen = 64

var fallbackSeq atomic.Uint64

// Middleware assigns request IDs and logs each request once it completes.
type Middleware struct {
	clientIP func(*http.Request) string
	logger   *log.Logger
}

// NewMiddleware builds the tracer. clientIP may be nil, in which case no
// client address is logged.
func NewMiddleware(clientIP func(*http.Request) string, logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{clientIP: clientIP, logger: logger.WithComponent(log.ComponentTrace)}
}

// Middleware reuses a well-formed incoming X-Request-ID so IDs survive a
// proxy hop, and generates one otherwise.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()

		id := r.Header.Get(HeaderRequestID)
		if !acceptableID(id) {
			id = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), ctxKey{}, id)
		r = r.WithContext(ctx)

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := log.NewFields().
			WithRequest(r.Method, r.URL.Path, r.URL.RawQuery).
			With(log.FieldRequestID, id).
			With(log.FieldStatusCode, rec.status).
			With(log.FieldBytes, rec.bytes).
			With(log.FieldDuration, time.Since(began).Milliseconds())
		if m.clientIP != nil {
			fields.With(log.FieldClientIP, m.clientIP(r))
		}
		if rec.status >= http.StatusBadRequest {
			fields.With(log.FieldUserAgent, r.UserAgent())
		}
		m.logger.Log(ctx, log.LevelForStatus(rec.status), "HTTP request", fields.Args()...)
	})
}

// recorder remembers the first status written and counts body bytes.
type recorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (rec *recorder) WriteHeader(code int) {
	if !rec.written {
		rec.status = code
		rec.written = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	rec.written = true
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += n
	return n, err
}

// GenerateRequestID returns a fresh "req_"-prefixed ID.
func GenerateRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req_" + strconv.FormatInt(time.Now().UnixNano(), 36) + "_" + strconv.FormatUint(fallbackSeq.Add(1), 36)
	}
	return "req_" + hex.EncodeToString(b[:])
}

func acceptableID(id string) bool {
	if id == "" || len(id) > maxIncomingIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		ok := c == '-' || c == '_' ||
			('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
		if !ok {
			return false
		}
	}
	return true
}

// GetRequestID returns the ID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// RequestID reads the ID assigned to r; it plugs into log.Middleware.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}
