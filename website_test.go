package certvault

import "testing"

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/path?q=1", "example.com"},
		{"http://example.com", "example.com"},
		{"example.com", "example.com"},
		{"www.example.com", "example.com"},
		{"EXAMPLE.COM", "example.com"},
		{"https://shop.example.com:8443/cart", "shop.example.com"},
		{"example.com.", "example.com"},
		{"  https://example.com  ", "example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RegistrableDomain(tt.in); got != tt.want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHostMatchesCert(t *testing.T) {
	tests := []struct {
		host  string
		names []string
		cn    string
		want  bool
	}{
		{"example.com", []string{"example.com"}, "", true},
		{"https://www.example.com", []string{"example.com"}, "", true},
		{"shop.example.com", []string{"*.example.com"}, "", true},
		{"a.b.example.com", []string{"*.example.com"}, "", false},
		{"example.com", []string{"*.example.com"}, "", false},
		{"example.com", nil, "example.com", true},
		{"other.com", []string{"example.com"}, "example.com", false},
		{"", []string{"example.com"}, "", false},
	}
	for _, tt := range tests {
		if got := HostMatchesCert(tt.host, tt.names, tt.cn); got != tt.want {
			t.Errorf("HostMatchesCert(%q, %v, %q) = %v, want %v", tt.host, tt.names, tt.cn, got, tt.want)
		}
	}
}
