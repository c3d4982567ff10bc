package dns

import (
	"context"
	"testing"
)

func TestLookupIPLiteral(t *testing.T) {
	for _, host := range []string{"127.0.0.1", "::1", "10.1.2.3"} {
		got, err := Lookup(context.Background(), host)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", host, err)
		}
		if got != host {
			t.Errorf("Lookup(%q) = %q, want unchanged", host, got)
		}
	}
}

func TestPreferIPv4(t *testing.T) {
	got, err := preferIPv4([]string{"2001:db8::1", "192.0.2.7"})
	if err != nil {
		t.Fatalf("preferIPv4: %v", err)
	}
	if got != "192.0.2.7" {
		t.Errorf("got %q, want 192.0.2.7", got)
	}

	got, err = preferIPv4([]string{"2001:db8::1"})
	if err != nil {
		t.Fatalf("preferIPv4: %v", err)
	}
	if got != "2001:db8::1" {
		t.Errorf("got %q, want the only IPv6 address", got)
	}

	if _, err := preferIPv4(nil); err == nil {
		t.Error("expected error for empty address list")
	}
}

func TestTrimBrackets(t *testing.T) {
	cases := map[string]string{
		"[2606:4700:4700::1111]": "2606:4700:4700::1111",
		"1.1.1.1":                "1.1.1.1",
		"[":                      "[",
	}
	for in, want := range cases {
		if got := trimBrackets(in); got != want {
			t.Errorf("trimBrackets(%q) = %q, want %q", in, got, want)
		}
	}
}
