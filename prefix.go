package volt

import (
	"fmt"
	"strconv"
	"strings"
)

// ListeningPrefix is one scheme+host+port+basePath tuple the server
// binds to. BasePath always begins with "/".
type ListeningPrefix struct {
	Scheme   string // "http" or "https"
	Host     string // literal, "+" (any) or "*" (wildcard)
	Port     int    // 1..65535
	BasePath string // begins with "/"
}

// ParsePrefix parses "<scheme>://<host>:<port>/<basePath>/". The
// closing slash is required; the base path is optional.
func ParsePrefix(s string) (ListeningPrefix, error) {
	var p ListeningPrefix

	schemeIdx := strings.Index(s, "://")
	if schemeIdx <= 0 {
		return p, fmt.Errorf("volt: prefix %q has no scheme", s)
	}
	p.Scheme = strings.ToLower(s[:schemeIdx])
	if p.Scheme != "http" && p.Scheme != "https" {
		return p, fmt.Errorf("volt: prefix %q has unsupported scheme %q", s, p.Scheme)
	}

	rest := s[schemeIdx+3:]
	if !strings.HasSuffix(rest, "/") {
		return p, fmt.Errorf("volt: prefix %q must end with '/'", s)
	}

	slash := strings.IndexByte(rest, '/')
	authority := rest[:slash]
	p.BasePath = strings.TrimSuffix(rest[slash:], "/")
	if p.BasePath == "" {
		p.BasePath = "/"
	}

	colon := strings.LastIndexByte(authority, ':')
	if colon < 0 {
		return p, fmt.Errorf("volt: prefix %q has no port", s)
	}
	p.Host = authority[:colon]
	if p.Host == "" {
		return p, fmt.Errorf("volt: prefix %q has no host", s)
	}

	port, err := strconv.Atoi(authority[colon+1:])
	if err != nil || port < 1 || port > 65535 {
		return p, fmt.Errorf("volt: prefix %q has invalid port", s)
	}
	p.Port = port

	return p, nil
}

// Addr returns the bind address for net.Listen. The "+" and "*" host
// wildcards bind every interface.
func (p ListeningPrefix) Addr() string {
	host := p.Host
	if host == "+" || host == "*" {
		host = ""
	}
	return host + ":" + strconv.Itoa(p.Port)
}

// String renders the canonical prefix form.
func (p ListeningPrefix) String() string {
	base := p.BasePath
	if base == "/" {
		base = ""
	}
	return p.Scheme + "://" + p.Host + ":" + strconv.Itoa(p.Port) + base + "/"
}

// ListeningHost groups one or more prefixes sharing a base path with a
// display label and the host's CORS policy.
type ListeningHost struct {
	// Label is the display name from configuration.
	Label string

	// Prefixes are the bound scheme://host:port/basePath tuples. All
	// prefixes of one host share the same BasePath.
	Prefixes []ListeningPrefix

	// Cors is the host's cross-origin policy; nil disables CORS
	// handling.
	Cors *CorsPolicy
}

// NewListeningHost parses the prefix strings into a host. All
// prefixes must agree on the base path.
func NewListeningHost(label string, prefixes ...string) (*ListeningHost, error) {
	if len(prefixes) == 0 {
		return nil, fmt.Errorf("volt: listening host %q has no prefixes", label)
	}
	h := &ListeningHost{Label: label}
	for _, s := range prefixes {
		p, err := ParsePrefix(s)
		if err != nil {
			return nil, err
		}
		if len(h.Prefixes) > 0 && h.Prefixes[0].BasePath != p.BasePath {
			return nil, fmt.Errorf("volt: listening host %q mixes base paths %q and %q",
				label, h.Prefixes[0].BasePath, p.BasePath)
		}
		h.Prefixes = append(h.Prefixes, p)
	}
	return h, nil
}

// BasePath returns the host's shared base path.
func (h *ListeningHost) BasePath() string {
	if len(h.Prefixes) == 0 {
		return "/"
	}
	return h.Prefixes[0].BasePath
}

// matchesAuthority reports whether the request authority is served by
// this host. "+"/"*" prefixes accept any authority.
func (h *ListeningHost) matchesAuthority(authority string) bool {
	hostOnly := authority
	if colon := strings.LastIndexByte(authority, ':'); colon >= 0 {
		hostOnly = authority[:colon]
	}
	for _, p := range h.Prefixes {
		if p.Host == "+" || p.Host == "*" {
			return true
		}
		if strings.EqualFold(p.Host, hostOnly) || strings.EqualFold(p.Host, authority) {
			return true
		}
	}
	return false
}

// stripBasePath removes the host's base path from a request path,
// returning the routed remainder and whether the path was inside the
// base.
func (h *ListeningHost) stripBasePath(path string) (string, bool) {
	base := h.BasePath()
	if base == "/" {
		return path, true
	}
	if !strings.HasPrefix(path, base) {
		return "", false
	}
	rest := path[len(base):]
	if rest == "" {
		return "/", true
	}
	if rest[0] != '/' {
		return "", false
	}
	return rest, true
}
