package server

import "testing"

func TestStaticResolverLongestPrefixWins(t *testing.T) {
	r := NewStaticResolver(map[string]string{
		"203.0.":     "APNIC",
		"203.0.113.": "AU",
	})

	tests := []struct {
		ip   string
		want string
	}{
		{"203.0.113.9", "AU"},
		{"203.0.99.1", "APNIC"},
		{"192.0.2.1", ""},
	}
	for _, tt := range tests {
		if got := r.Resolve(tt.ip); got != tt.want {
			t.Errorf("Resolve(%s) = %q, want %q", tt.ip, got, tt.want)
		}
	}
}

func TestStaticResolverEmptyTable(t *testing.T) {
	if got := NewStaticResolver(nil).Resolve("192.0.2.1"); got != "" {
		t.Errorf("expected empty label, got %q", got)
	}
}

func TestResolverFunc(t *testing.T) {
	r := ResolverFunc(func(ip string) string { return "fixed" })
	if got := r.Resolve("192.0.2.1"); got != "fixed" {
		t.Errorf("expected fixed label, got %q", got)
	}
}
