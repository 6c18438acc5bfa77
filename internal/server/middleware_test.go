package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusRecorder_ForwardsFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	var f http.Flusher = sr
	f.Flush()

	if !rec.Flushed {
		t.Error("Flush was not forwarded to the underlying writer")
	}
}

func TestClientIPFromRequest(t *testing.T) {
	testCases := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr", "203.0.113.9:4321", "", "203.0.113.9"},
		{"forwarded single", "10.0.0.1:80", "198.51.100.7", "198.51.100.7"},
		{"forwarded chain", "10.0.0.1:80", "198.51.100.7, 10.0.0.2", "198.51.100.7"},
		{"no port", "203.0.113.9", "", "203.0.113.9"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := clientIPFromRequest(r); got != tc.want {
				t.Errorf("clientIPFromRequest = %q, want %q", got, tc.want)
			}
		})
	}
}
