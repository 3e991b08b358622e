package volt

import (
	"errors"
	"strings"
	"testing"
)

func noopAction(c *Context) any { return Ok() }

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantErr bool
	}{
		{"root", "/", false},
		{"literal", "/users", false},
		{"nested literal", "/api/v1/users", false},
		{"placeholder", "/items/<id>", false},
		{"two placeholders", "/items/<id>/tags/<tag>", false},
		{"trailing slash", "/users/", false},
		{"wildcard", "/*", false},
		{"no leading slash", "users", true},
		{"empty", "", true},
		{"interior empty segment", "/a//b", true},
		{"unclosed bracket", "/items/<id", true},
		{"unopened bracket", "/items/id>", true},
		{"empty placeholder", "/items/<>", true},
		{"nested bracket", "/items/<i<d>>", true},
		{"duplicate placeholder", "/x/<id>/y/<id>", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := compilePattern(tt.pattern)
			if (err != nil) != tt.wantErr {
				t.Errorf("compilePattern(%q) error = %v, wantErr %v", tt.pattern, err, tt.wantErr)
			}
		})
	}
}

func TestRouterMatchLiteral(t *testing.T) {
	r := NewRouter()
	if err := r.Register(&Route{Name: "users", Methods: MethodGet, Pattern: "/users", Action: noopAction}); err != nil {
		t.Fatal(err)
	}

	route, params, _, err := r.Match("GET", "h", "/users")
	if err != nil {
		t.Fatalf("Match error = %v", err)
	}
	if route.Name != "users" {
		t.Errorf("matched %q, want users", route.Name)
	}
	if len(params) != 0 {
		t.Errorf("params = %v, want none", params)
	}

	// Duplicate and trailing slashes are ignored during matching.
	if _, _, _, err := r.Match("GET", "h", "/users/"); err != nil {
		t.Errorf("trailing slash should match: %v", err)
	}
	if _, _, _, err := r.Match("GET", "h", "//users"); err != nil {
		t.Errorf("duplicate slash should match: %v", err)
	}
}

func TestRouterMatchPathParameter(t *testing.T) {
	r := NewRouter()
	if err := r.Register(&Route{Name: "item", Methods: MethodGet, Pattern: "/items/<id>", Action: noopAction}); err != nil {
		t.Fatal(err)
	}

	route, params, _, err := r.Match("GET", "h", "/items/42")
	if err != nil {
		t.Fatalf("Match error = %v", err)
	}
	if route.Name != "item" {
		t.Errorf("matched %q", route.Name)
	}
	if params["id"] != "42" {
		t.Errorf("params[id] = %q, want 42", params["id"])
	}

	// Segment count mismatch
	if _, _, _, err := r.Match("GET", "h", "/items/42/extra"); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("want ErrRouteNotFound, got %v", err)
	}
	// Placeholders match only non-empty segments; "/items/" collapses
	// to one segment and must not match.
	if _, _, _, err := r.Match("GET", "h", "/items"); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("want ErrRouteNotFound for missing segment, got %v", err)
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	r := NewRouter()
	r.Register(&Route{Name: "a", Methods: MethodGet | MethodPut, Pattern: "/x", Action: noopAction})
	r.Register(&Route{Name: "b", Methods: MethodDelete, Pattern: "/x", Action: noopAction})

	_, _, allow, err := r.Match("POST", "h", "/x")
	if !errors.Is(err, ErrMethodNotAllowed) {
		t.Fatalf("want ErrMethodNotAllowed, got %v", err)
	}
	allowStr := allow.String()
	for _, m := range []string{"GET", "PUT", "DELETE"} {
		if !strings.Contains(allowStr, m) {
			t.Errorf("Allow %q missing %s", allowStr, m)
		}
	}
}

func TestRouterAnyMethodAfterSpecific(t *testing.T) {
	r := NewRouter()
	// any-method registered FIRST still loses to a method-specific
	// route of the same pattern.
	r.Register(&Route{Name: "any", Methods: MethodAny, Pattern: "/x", Action: noopAction})
	r.Register(&Route{Name: "get", Methods: MethodGet, Pattern: "/x", Action: noopAction})

	route, _, _, err := r.Match("GET", "h", "/x")
	if err != nil {
		t.Fatal(err)
	}
	if route.Name != "get" {
		t.Errorf("matched %q, want method-specific route", route.Name)
	}

	route, _, _, err = r.Match("DELETE", "h", "/x")
	if err != nil {
		t.Fatal(err)
	}
	if route.Name != "any" {
		t.Errorf("matched %q, want any-method route", route.Name)
	}
}

func TestRouterFirstRegisteredWins(t *testing.T) {
	var warned bool
	r := NewRouter()
	r.SetWarnLogger(func(format string, args ...any) { warned = true })

	r.Register(&Route{Name: "first", Methods: MethodGet, Pattern: "/dup/<a>", Action: noopAction})
	r.Register(&Route{Name: "second", Methods: MethodGet, Pattern: "/dup/<b>", Action: noopAction})

	if !warned {
		t.Error("collision at registration should be logged")
	}

	route, _, _, err := r.Match("GET", "h", "/dup/1")
	if err != nil {
		t.Fatal(err)
	}
	if route.Name != "first" {
		t.Errorf("matched %q, want first registered", route.Name)
	}
}

func TestRouterHeadFallsBackToGet(t *testing.T) {
	r := NewRouter()
	r.Register(&Route{Name: "g", Methods: MethodGet, Pattern: "/page", Action: noopAction})

	route, _, _, err := r.Match("HEAD", "h", "/page")
	if err != nil {
		t.Fatalf("HEAD should be answered by the GET route: %v", err)
	}
	if route.Name != "g" {
		t.Errorf("matched %q", route.Name)
	}
}

func TestRouterWildcard(t *testing.T) {
	r := NewRouter()
	r.Register(&Route{Name: "all", Methods: MethodAny, Pattern: "/*", Action: noopAction})

	for _, path := range []string{"/", "/a", "/a/b/c"} {
		if _, _, _, err := r.Match("GET", "h", path); err != nil {
			t.Errorf("wildcard should match %q: %v", path, err)
		}
	}
}

func TestRouterFrozen(t *testing.T) {
	r := NewRouter()
	r.Freeze()
	err := r.Register(&Route{Name: "late", Methods: MethodGet, Pattern: "/late", Action: noopAction})
	if !errors.Is(err, ErrRouterFrozen) {
		t.Errorf("registration after freeze = %v, want ErrRouterFrozen", err)
	}
}

func TestRouterHostConstraint(t *testing.T) {
	r := NewRouter()
	r.Register(&Route{Name: "a", Methods: MethodGet, Pattern: "/h", Host: "a.example", Action: noopAction})
	r.Register(&Route{Name: "b", Methods: MethodGet, Pattern: "/h", Host: "b.example", Action: noopAction})

	route, _, _, err := r.Match("GET", "b.example", "/h")
	if err != nil {
		t.Fatal(err)
	}
	if route.Name != "b" {
		t.Errorf("matched %q, want host-constrained b", route.Name)
	}

	if _, _, _, err := r.Match("GET", "c.example", "/h"); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("unknown host should not match: %v", err)
	}
}

func TestRouterCaseInsensitive(t *testing.T) {
	r := NewRouter()
	r.SetCaseInsensitive(true)
	r.Register(&Route{Name: "u", Methods: MethodGet, Pattern: "/Users", Action: noopAction})

	if _, _, _, err := r.Match("GET", "h", "/users"); err != nil {
		t.Errorf("case-insensitive match failed: %v", err)
	}

	sensitive := NewRouter()
	sensitive.Register(&Route{Name: "u", Methods: MethodGet, Pattern: "/Users", Action: noopAction})
	if _, _, _, err := sensitive.Match("GET", "h", "/users"); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("case-sensitive router matched wrong case: %v", err)
	}
}

func TestRouterEmptyMethodSetRejected(t *testing.T) {
	r := NewRouter()
	if err := r.Register(&Route{Name: "x", Pattern: "/x", Action: noopAction}); err == nil {
		t.Error("empty method set should be rejected")
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/", nil},
		{"", nil},
		{"/a", []string{"a"}},
		{"/a/b", []string{"a", "b"}},
		{"/a//b/", []string{"a", "b"}},
		{"a/b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := splitPath(tt.path, nil)
		if len(got) != len(tt.want) {
			t.Errorf("splitPath(%q) = %v, want %v", tt.path, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitPath(%q)[%d] = %q, want %q", tt.path, i, got[i], tt.want[i])
			}
		}
	}
}
