package model

import (
	"net/http"
	"testing"
)

func TestStripHopByHop(t *testing.T) {
	src := http.Header{
		"Connection":        {"keep-alive, X-Session-Hint"},
		"Keep-Alive":        {"timeout=5"},
		"Transfer-Encoding": {"chunked"},
		"Te":                {"trailers"},
		"Trailer":           {"Expires"},
		"Upgrade":           {"h2c"},
		"X-Session-Hint":    {"abc"},
		"Content-Type":      {"video/mp4"},
		"Content-Range":     {"bytes 0-9/100"},
		"Accept-Ranges":     {"bytes"},
	}

	dst := StripHopByHop(src)

	tests := []struct {
		key     string
		wantLen int
	}{
		{"Connection", 0},
		{"Keep-Alive", 0},
		{"Transfer-Encoding", 0},
		{"TE", 0},
		{"Trailer", 0},
		{"Upgrade", 0},
		{"X-Session-Hint", 0},
		{"Content-Type", 1},
		{"Content-Range", 1},
		{"Accept-Ranges", 1},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := len(dst.Values(tt.key)); got != tt.wantLen {
				t.Errorf("header %q: got %d values, want %d", tt.key, got, tt.wantLen)
			}
		})
	}

	if src.Get("Connection") == "" {
		t.Error("source header must not be modified")
	}
}

func TestStripHopByHop_Nil(t *testing.T) {
	dst := StripHopByHop(nil)
	if dst == nil {
		t.Fatal("StripHopByHop(nil) returned nil header")
	}
	if len(dst) != 0 {
		t.Errorf("len = %d, want 0", len(dst))
	}
}
