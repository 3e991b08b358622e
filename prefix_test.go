package volt

import "testing"

func TestParsePrefix(t *testing.T) {
	tests := []struct {
		in      string
		scheme  string
		host    string
		port    int
		base    string
		wantErr bool
	}{
		{"http://localhost:8080/", "http", "localhost", 8080, "/", false},
		{"https://+:8443/", "https", "+", 8443, "/", false},
		{"http://*:80/api/", "http", "*", 80, "/api", false},
		{"http://10.0.0.1:65535/v1/admin/", "http", "10.0.0.1", 65535, "/v1/admin", false},
		{"ftp://h:1/", "", "", 0, "", true},
		{"http://h:1", "", "", 0, "", true}, // missing closing slash
		{"http://h/", "", "", 0, "", true},  // missing port
		{"http://:8080/", "", "", 0, "", true},
		{"http://h:0/", "", "", 0, "", true},
		{"http://h:70000/", "", "", 0, "", true},
		{"localhost:8080/", "", "", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePrefix(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if p.Scheme != tt.scheme || p.Host != tt.host || p.Port != tt.port || p.BasePath != tt.base {
				t.Errorf("parsed %+v", p)
			}
		})
	}
}

func TestPrefixAddr(t *testing.T) {
	p, _ := ParsePrefix("http://+:8080/")
	if p.Addr() != ":8080" {
		t.Errorf("Addr = %q", p.Addr())
	}
	p, _ = ParsePrefix("http://127.0.0.1:9000/")
	if p.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", p.Addr())
	}
}

func TestListeningHostBasePathAgreement(t *testing.T) {
	if _, err := NewListeningHost("x", "http://+:80/a/", "https://+:443/b/"); err == nil {
		t.Error("mixed base paths must be rejected")
	}
	h, err := NewListeningHost("x", "http://+:80/a/", "https://+:443/a/")
	if err != nil {
		t.Fatal(err)
	}
	if h.BasePath() != "/a" {
		t.Errorf("BasePath = %q", h.BasePath())
	}
}

func TestHostAuthorityMatch(t *testing.T) {
	h, _ := NewListeningHost("x", "http://api.example:8080/")
	if !h.matchesAuthority("api.example:8080") {
		t.Error("literal authority should match")
	}
	if !h.matchesAuthority("API.EXAMPLE") {
		t.Error("host match is case-insensitive")
	}
	if h.matchesAuthority("other.example") {
		t.Error("foreign authority matched")
	}

	wild, _ := NewListeningHost("w", "http://+:8080/")
	if !wild.matchesAuthority("anything.example:1") {
		t.Error("+ must match any authority")
	}
}

func TestMethodSet(t *testing.T) {
	s := MethodGet | MethodPost
	if !s.Contains(MethodGet) || s.Contains(MethodDelete) {
		t.Error("Contains broken")
	}
	if s.String() != "GET, POST" {
		t.Errorf("String = %q", s.String())
	}
	if MethodAny.String() != "ANY" {
		t.Errorf("any String = %q", MethodAny.String())
	}
	if ParseMethod("delete") != MethodDelete {
		t.Error("ParseMethod case-insensitivity")
	}
	if ParseMethod("any") != MethodAny {
		t.Error("ParseMethod any sentinel")
	}
	if ParseMethod("BREW") != 0 {
		t.Error("unknown method must be 0")
	}
}
