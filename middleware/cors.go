package middleware

import (
	core "github.com/voltframework/volt"
)

// CORS returns a pre-handler applying a CORS policy at route level,
// for routes outside any configured listening-host policy. Preflights
// short-circuit (204 when the origin is permitted, 403 otherwise).
// Non-preflight requests pass through: this handler adds no CORS
// headers to their responses (only a listening host's own policy
// does that).
//
//	api.UsePre(middleware.CORS(&core.CorsPolicy{
//	    AllowOrigins: []string{"https://app.example"},
//	    AllowMethods: []string{"GET", "POST"},
//	}))
func CORS(policy *core.CorsPolicy) core.RequestHandler {
	return core.HandlerFunc(func(c *core.Context) *core.Response {
		if c.Method() == "OPTIONS" &&
			c.Header("Origin") != "" &&
			c.Header("Access-Control-Request-Method") != "" {
			return policy.Preflight(c)
		}
		return nil
	})
}
