package volt

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
)

// segment is one compiled element of a route pattern: either a
// case-comparable literal or a named placeholder.
type segment struct {
	literal string
	param   string // non-empty for <name> placeholders
}

// Route is a fully-specified endpoint: name, method set, compiled
// pattern, the action, and its pre/post handler chains.
type Route struct {
	// Name identifies the route in logs and for redirect-by-name.
	Name string

	// Methods is the non-empty method set, possibly MethodAny.
	Methods MethodSet

	// Pattern is the raw registered pattern ("/items/<id>" or "/*").
	Pattern string

	// Action produces the route's result.
	Action Action

	// PreHandlers run after the global pre chain, before the action.
	PreHandlers []RequestHandler

	// PostHandlers run after the action, before the global post chain.
	PostHandlers []RequestHandler

	// Host restricts the route to one authority; empty matches all.
	Host string

	// Compiled pattern state
	segments []segment
	wildcard bool // the literal "/*" pattern
	literal  bool // no placeholders: eligible for the static fast path
}

// compilePattern validates and compiles a pattern at registration.
// A pattern is either the literal "/*" wildcard or a /-delimited
// sequence of literal and <name> segments. Empty segments (other than
// a trailing slash) and malformed brackets are rejected; placeholder
// names must be unique within the route.
func compilePattern(pattern string) (segs []segment, wildcard bool, err error) {
	if pattern == "/*" {
		return nil, true, nil
	}
	if pattern == "" || pattern[0] != '/' {
		return nil, false, fmt.Errorf("volt: pattern %q must start with '/' or be \"/*\"", pattern)
	}

	raw := strings.Split(pattern[1:], "/")
	seen := make(map[string]struct{}, 4)
	for i, s := range raw {
		if s == "" {
			// Trailing slash is tolerated; interior empties are not.
			if i == len(raw)-1 {
				continue
			}
			return nil, false, fmt.Errorf("volt: pattern %q has an empty segment", pattern)
		}
		if s[0] == '<' || s[len(s)-1] == '>' {
			if len(s) < 3 || s[0] != '<' || s[len(s)-1] != '>' {
				return nil, false, fmt.Errorf("volt: pattern %q has a malformed placeholder %q", pattern, s)
			}
			name := s[1 : len(s)-1]
			if strings.ContainsAny(name, "<>/") {
				return nil, false, fmt.Errorf("volt: pattern %q has a malformed placeholder %q", pattern, s)
			}
			if _, dup := seen[name]; dup {
				return nil, false, fmt.Errorf("volt: pattern %q repeats placeholder %q", pattern, name)
			}
			seen[name] = struct{}{}
			segs = append(segs, segment{param: name})
			continue
		}
		if strings.ContainsAny(s, "<>") {
			return nil, false, fmt.Errorf("volt: pattern %q has a malformed placeholder %q", pattern, s)
		}
		segs = append(segs, segment{literal: s})
	}
	return segs, false, nil
}

// splitPath splits a request path into non-empty segments. Duplicate
// and trailing slashes are ignored during matching.
func splitPath(path string, out []string) []string {
	start := -1
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if start >= 0 {
				out = append(out, path[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, path[start:])
	}
	return out
}

// Router compiles patterns at registration and resolves incoming
// method+host+path tuples to routes.
//
// Design (hybrid, in registration order):
//   - Literal-only patterns also index a static map for O(1) hits
//   - Placeholder patterns scan in registration order; the first
//     registered match wins, deterministically
//   - Method-specific routes beat any-method routes of the same path
//
// The router becomes read-only once the server starts; late
// registration fails with ErrRouterFrozen.
type Router struct {
	mu     sync.RWMutex
	routes []*Route

	// static indexes literal-only patterns by normalized path for O(1)
	// candidate lookup. Value preserves registration order.
	static map[string][]*Route

	// dynamic counts placeholder/wildcard routes; while zero, the
	// static map alone is authoritative and lookups skip the scan.
	dynamic int

	// caseInsensitive folds literal segments (and static keys) to
	// lower case before comparison.
	caseInsensitive bool

	frozen atomic.Bool

	// warnf receives collision diagnostics at registration time.
	warnf func(format string, args ...any)
}

// NewRouter creates an empty router with case-sensitive literals.
func NewRouter() *Router {
	return &Router{
		static: make(map[string][]*Route, 16),
		warnf:  log.Printf,
	}
}

// SetCaseInsensitive folds literal segments before comparison.
// Must be called before any registration.
func (r *Router) SetCaseInsensitive(on bool) {
	r.caseInsensitive = on
}

// SetWarnLogger redirects registration diagnostics (collisions).
func (r *Router) SetWarnLogger(warnf func(format string, args ...any)) {
	if warnf != nil {
		r.warnf = warnf
	}
}

// Freeze makes the router read-only. Called when the server starts.
func (r *Router) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether registration is closed.
func (r *Router) Frozen() bool {
	return r.frozen.Load()
}

// Register validates and adds a route. Collisions (an earlier route
// with the same pattern shape and an overlapping method set) are
// logged and the earlier registration keeps winning at match time.
// An any-method route and a method-specific route never collide: the
// method-specific one wins whatever the registration order.
func (r *Router) Register(route *Route) error {
	if r.frozen.Load() {
		return ErrRouterFrozen
	}
	if route.Methods == 0 {
		return fmt.Errorf("volt: route %q has an empty method set", route.Pattern)
	}
	if route.Action == nil {
		return fmt.Errorf("volt: route %q has no action", route.Pattern)
	}

	segs, wildcard, err := compilePattern(route.Pattern)
	if err != nil {
		return err
	}
	route.segments = segs
	route.wildcard = wildcard
	route.literal = !wildcard
	for _, s := range segs {
		if s.param != "" {
			route.literal = false
			break
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, prior := range r.routes {
		if r.sameShape(prior, route) && prior.Methods&route.Methods != 0 && prior.Host == route.Host &&
			prior.Methods.IsAny() == route.Methods.IsAny() {
			r.warnf("volt: route %q (%s %s) collides with earlier route %q; first registration wins",
				route.Name, route.Methods, route.Pattern, prior.Name)
			break
		}
	}

	r.routes = append(r.routes, route)
	if route.literal {
		key := r.staticKey(segs)
		r.static[key] = append(r.static[key], route)
	} else {
		r.dynamic++
	}
	return nil
}

// sameShape reports whether two compiled patterns match exactly the
// same set of paths (literals equal, placeholders in the same spots).
func (r *Router) sameShape(a, b *Route) bool {
	if a.wildcard != b.wildcard {
		return false
	}
	if a.wildcard {
		return true
	}
	if len(a.segments) != len(b.segments) {
		return false
	}
	for i := range a.segments {
		as, bs := a.segments[i], b.segments[i]
		if (as.param != "") != (bs.param != "") {
			return false
		}
		if as.param == "" && !r.literalEqual(as.literal, bs.literal) {
			return false
		}
	}
	return true
}

func (r *Router) literalEqual(a, b string) bool {
	if r.caseInsensitive {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func (r *Router) staticKey(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		if r.caseInsensitive {
			b.WriteString(strings.ToLower(s.literal))
		} else {
			b.WriteString(s.literal)
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// RouteByName returns the first route registered under name.
func (r *Router) RouteByName(name string) *Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.routes {
		if rt.Name == name {
			return rt
		}
	}
	return nil
}

// Match resolves method+host+path. On success the route and bound
// path parameters are returned. err is ErrRouteNotFound when no
// pattern matched, or ErrMethodNotAllowed (with allow carrying the
// union of method sets of pattern-matching routes) when patterns
// matched but no method did.
func (r *Router) Match(method, host, path string) (route *Route, params map[string]string, allow MethodSet, err error) {
	bit := methodBit(method)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var segBuf [16]string
	pathSegs := splitPath(path, segBuf[:0])

	var anyMatch *Route
	var anyParams map[string]string
	var patternMatched bool

	// Static fast path: with no placeholder or wildcard routes
	// registered, the literal map alone is authoritative (O(1) lookup,
	// zero allocations). Otherwise scan in registration order so the
	// first-registered route keeps winning.
	candidates := r.routes
	if r.dynamic == 0 {
		var kb strings.Builder
		for _, s := range pathSegs {
			kb.WriteByte('/')
			if r.caseInsensitive {
				kb.WriteString(strings.ToLower(s))
			} else {
				kb.WriteString(s)
			}
		}
		key := kb.String()
		if key == "" {
			key = "/"
		}
		candidates = r.static[key]
	}

	for _, rt := range candidates {
		if rt.Host != "" && !strings.EqualFold(rt.Host, host) {
			continue
		}
		p, ok := r.matchRoute(rt, pathSegs)
		if !ok {
			continue
		}
		patternMatched = true
		allow |= rt.Methods

		if rt.Methods.IsAny() {
			// any-method routes are considered after method-specific
			// ones of the same path-priority.
			if anyMatch == nil {
				anyMatch = rt
				anyParams = p
			}
			continue
		}
		if rt.Methods.Contains(bit) {
			return rt, p, allow, nil
		}
		// HEAD is auto-answered by the GET route (headers + length
		// parity, body suppressed by the serializer).
		if bit == MethodHead && rt.Methods.Contains(MethodGet) {
			return rt, p, allow, nil
		}
	}

	if anyMatch != nil {
		return anyMatch, anyParams, allow, nil
	}
	if patternMatched {
		return nil, nil, allow, ErrMethodNotAllowed
	}
	return nil, nil, 0, ErrRouteNotFound
}

// matchRoute matches one compiled route against the split path,
// binding placeholder values. A placeholder matches any non-empty
// segment.
func (r *Router) matchRoute(rt *Route, pathSegs []string) (map[string]string, bool) {
	if rt.wildcard {
		return nil, true
	}
	if len(rt.segments) != len(pathSegs) {
		return nil, false
	}
	var params map[string]string
	for i, s := range rt.segments {
		if s.param != "" {
			if params == nil {
				params = make(map[string]string, 4)
			}
			params[s.param] = pathSegs[i]
			continue
		}
		if !r.literalEqual(s.literal, pathSegs[i]) {
			return nil, false
		}
	}
	return params, true
}
