package acl

import "testing"

func TestDefaultAllowlistAllowsPrivateRanges(t *testing.T) {
	a, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, addr := range []string{"192.168.1.20:50000", "10.0.0.5:1", "127.0.0.1:8080"} {
		if !a.AllowsRemoteAddr(addr) {
			t.Errorf("AllowsRemoteAddr(%q) = false, want true", addr)
		}
	}
}

func TestDefaultAllowlistRejectsPublicAddress(t *testing.T) {
	a, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.AllowsRemoteAddr("8.8.8.8:443") {
		t.Fatal("AllowsRemoteAddr(public) = true, want false")
	}
}

func TestCustomCIDRRestrictsToSubnet(t *testing.T) {
	a, err := New("192.168.50.0/24")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !a.AllowsRemoteAddr("192.168.50.10:1") {
		t.Fatal("AllowsRemoteAddr(in subnet) = false, want true")
	}
	if a.AllowsRemoteAddr("192.168.1.10:1") {
		t.Fatal("AllowsRemoteAddr(out of subnet) = true, want false")
	}
}

func TestInvalidCIDRReturnsError(t *testing.T) {
	if _, err := New("not-a-cidr"); err == nil {
		t.Fatal("New() error = nil, want error for invalid CIDR")
	}
}
