package server

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"zetsuserv/internal/telemetry"
)

type contextKey struct{ name string }

var (
	sessionIDKey = contextKey{"session_id"}
	clientIPKey  = contextKey{"client_ip"}
)

// SessionCookieName carries the anonymous browser session id that tracking
// grants are scoped to.
const SessionCookieName = "zs_session"

// SessionID returns the session id from context and true if set.
func SessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}

// ClientIP returns the client IP recorded by the middleware, or "unknown".
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

func clientIPFromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WithSession ensures every request carries a session id: an existing cookie is
// reused, otherwise a fresh one is set. The id also lands in the request
// context together with the client IP.
func WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
			sessionID = c.Value
		}
		if sessionID == "" {
			sessionID = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		ctx = context.WithValue(ctx, clientIPKey, clientIPFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for the request log and telemetry.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer so streaming responses are not
// broken by the recorder wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// RequestTelemetry logs each request and emits an http_request telemetry event.
// Best-effort: a nil emitter only disables the event, never the request.
// skipPaths is the set of paths to not emit (e.g. the health check).
func RequestTelemetry(emitter telemetry.EventEmitter, skipPaths map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if skipPaths[r.URL.Path] {
				return
			}
			durationMs := time.Since(start).Milliseconds()
			log.Printf("http: %s %s -> %d (%dms)", r.Method, r.URL.Path, rec.status, durationMs)
			if emitter == nil {
				return
			}
			meta, _ := json.Marshal(httpRequestMetadata{
				Method:     r.Method,
				Path:       r.URL.Path,
				Status:     rec.status,
				DurationMs: durationMs,
				ClientIP:   ClientIP(r.Context()),
			})
			sessionID, _ := SessionID(r.Context())
			telemetry.EmitAsync(emitter, r.Context(), &telemetry.Event{
				EventType: "http_request",
				Source:    "http_middleware",
				SessionID: sessionID,
				Metadata:  meta,
				CreatedAt: time.Now().UTC(),
			})
		})
	}
}
