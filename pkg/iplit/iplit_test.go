package iplit

import "testing"

func TestIsV4(t *testing.T) {
	cases := map[string]bool{
		"1.2.3.4":     true,
		"255.255.255.255": true,
		"::1":         false,
		"::ffff:1.2.3.4": false,
		"not-an-ip":   false,
		"":            false,
	}
	for in, want := range cases {
		if got := IsV4(in); got != want {
			t.Errorf("IsV4(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsV6(t *testing.T) {
	cases := map[string]bool{
		"::1":            true,
		"2001:db8::1":    true,
		"1.2.3.4":        false,
		"::ffff:1.2.3.4": true, // v4-in-v6 literal form is still an IPv6 literal
		"garbage":        false,
	}
	for in, want := range cases {
		if got := IsV6(in); got != want {
			t.Errorf("IsV6(%q) = %v, want %v", in, got, want)
		}
	}
}
