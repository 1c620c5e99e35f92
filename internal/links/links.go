// Package links builds the user-facing download and stream URLs.
package links

import (
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"

	psnet "github.com/shirou/gopsutil/v4/net"

	"tg-media-proxy/internal/config"
	"tg-media-proxy/internal/model"
)

// Resolver picks the base URL for generated links: the configured public
// host, else the inbound request host, else a local network address.
type Resolver struct {
	publicHost  string
	mediaPrefix string
	bindHost    string
	port        int
	localIP     func() string
}

// NewResolver creates a Resolver from the server configuration.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		publicHost:  cfg.Server.PublicHost,
		mediaPrefix: cfg.Server.MediaPrefix(),
		bindHost:    cfg.Server.Host,
		port:        cfg.Server.Port,
		localIP:     localIPv4,
	}
}

// HasPublicHost reports whether links point at a configured public host.
func (r *Resolver) HasPublicHost() bool {
	return r.publicHost != ""
}

// BaseURL returns the scheme://host prefix for links. requestHost may be
// empty when there is no inbound HTTP request (e.g. bot replies).
func (r *Resolver) BaseURL(scheme, requestHost string) string {
	if r.publicHost != "" {
		if strings.Contains(r.publicHost, "://") {
			return strings.TrimRight(r.publicHost, "/")
		}
		return "https://" + strings.TrimRight(r.publicHost, "/")
	}
	if requestHost != "" {
		if scheme == "" {
			scheme = "http"
		}
		return scheme + "://" + requestHost
	}
	return "http://" + net.JoinHostPort(r.localHost(), strconv.Itoa(r.port))
}

// DirectURL returns the redirect link for ref under base.
func (r *Resolver) DirectURL(base string, ref model.MediaReference) string {
	return base + r.mediaPrefix + "/d/" + url.PathEscape(string(ref))
}

// StreamURL returns the streaming link for ref under base.
func (r *Resolver) StreamURL(base string, ref model.MediaReference) string {
	return base + r.mediaPrefix + "/s/" + url.PathEscape(string(ref))
}

// localHost prefers an explicit bind address over interface discovery.
func (r *Resolver) localHost() string {
	switch r.bindHost {
	case "", "0.0.0.0", "::", "[::]":
		return r.localIP()
	default:
		return strings.Trim(r.bindHost, "[]")
	}
}

// localIPv4 returns the first non-loopback IPv4 address of an up interface,
// or 127.0.0.1.
func localIPv4() string {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}
	if ip := firstIPv4(ifaces); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

func firstIPv4(ifaces psnet.InterfaceStatList) string {
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			ip, _, err := net.ParseCIDR(a.Addr)
			if err != nil {
				ip = net.ParseIP(a.Addr)
			}
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return ""
}
