package model

import (
	"net/http"
	"strings"
)

// HopByHopHeaders are headers meaningful only to a single connection.
// Proxies must not forward them.
var HopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// StripHopByHop returns a copy of h without hop-by-hop headers, including
// any extra headers listed in the Connection header.
func StripHopByHop(h http.Header) http.Header {
	dst := h.Clone()
	if dst == nil {
		return make(http.Header)
	}
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				dst.Del(name)
			}
		}
	}
	for _, name := range HopByHopHeaders {
		dst.Del(name)
	}
	return dst
}
