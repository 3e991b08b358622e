package volt

import (
	"strconv"
	"strings"
)

// CorsPolicy is the per-listening-host cross-origin policy.
//
// OPTIONS preflights short-circuit in the dispatcher: a permitted
// origin answers 204 with the computed headers, a rejected one 403,
// and user code never runs. For non-preflight requests the applicable
// response headers are appended after the action returns, without
// overwriting headers the action already set.
type CorsPolicy struct {
	// AllowOrigin permits a single origin, or "*" for any.
	AllowOrigin string

	// AllowOrigins permits an explicit origin list. Ignored when
	// AllowOrigin is set.
	AllowOrigins []string

	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// permitsOrigin returns the Access-Control-Allow-Origin value for the
// given request origin, "" when the origin is rejected.
func (p *CorsPolicy) permitsOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	if p.AllowOrigin != "" {
		if p.AllowOrigin == "*" {
			return "*"
		}
		if strings.EqualFold(p.AllowOrigin, origin) {
			return origin
		}
		return ""
	}
	for _, allowed := range p.AllowOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// isPreflight reports whether the request is a CORS preflight.
func isPreflight(c *Context) bool {
	return c.Method() == "OPTIONS" &&
		c.Header("Origin") != "" &&
		c.Header("Access-Control-Request-Method") != ""
}

// Preflight short-circuits an OPTIONS preflight: 204 with the
// computed headers when the origin is permitted, 403 otherwise.
func (p *CorsPolicy) Preflight(c *Context) *Response {
	return p.preflightResponse(c)
}

// preflightResponse computes the preflight answer.
func (p *CorsPolicy) preflightResponse(c *Context) *Response {
	allowed := p.permitsOrigin(c.Header("Origin"))
	if allowed == "" {
		return NewResponse(403)
	}

	res := NewResponse(204)
	res.WithHeader("Access-Control-Allow-Origin", allowed)
	if len(p.AllowMethods) > 0 {
		res.WithHeader("Access-Control-Allow-Methods", strings.Join(p.AllowMethods, ", "))
	}
	if len(p.AllowHeaders) > 0 {
		res.WithHeader("Access-Control-Allow-Headers", strings.Join(p.AllowHeaders, ", "))
	}
	if p.AllowCredentials {
		res.WithHeader("Access-Control-Allow-Credentials", "true")
	}
	if p.MaxAge > 0 {
		res.WithHeader("Access-Control-Max-Age", strconv.Itoa(p.MaxAge))
	}
	if allowed != "*" {
		res.WithHeader("Vary", "Origin")
	}
	return res
}

// decorate appends the applicable CORS headers to a non-preflight
// response after the action ran. Headers the action already set are
// left untouched.
func (p *CorsPolicy) decorate(c *Context, res *Response) {
	allowed := p.permitsOrigin(c.Header("Origin"))
	if allowed == "" {
		return
	}
	if !res.HasHeader("Access-Control-Allow-Origin") {
		_ = res.AddHeader("Access-Control-Allow-Origin", allowed)
	}
	if len(p.ExposeHeaders) > 0 && !res.HasHeader("Access-Control-Expose-Headers") {
		_ = res.AddHeader("Access-Control-Expose-Headers", strings.Join(p.ExposeHeaders, ", "))
	}
	if p.AllowCredentials && !res.HasHeader("Access-Control-Allow-Credentials") {
		_ = res.AddHeader("Access-Control-Allow-Credentials", "true")
	}
	if allowed != "*" && !res.HasHeader("Vary") {
		_ = res.AddHeader("Vary", "Origin")
	}
}
