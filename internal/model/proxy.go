// Package model defines shared types for the media proxy.
package model

import (
	"io"
	"net/http"
)

// MediaReference is the opaque identifier of an uploaded media object
// (a Telegram file_id). It is passed through unchanged.
type MediaReference string

// ResolvedLocation is a short-lived upstream location for a media object.
// It is never cached beyond a single request.
type ResolvedLocation struct {
	URL      string
	FilePath string
	FileSize int64
}

// StreamResponse represents the upstream response to be streamed back.
type StreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
