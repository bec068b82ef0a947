// Package acl restricts staff endpoints to the local network, generalizing
// the teacher's websocket CheckOrigin same-host check into a CIDR
// allowlist: this kiosk is meant to be reachable only from the LAN it sits
// on, never from the public internet.
package acl

import (
	"net"
	"net/http"
	"strings"
)

// defaultCIDRs covers the three IPv4 private-use ranges plus loopback, and
// the IPv6 loopback and unique-local ranges, matching
// what a kiosk's own LAN segment looks like out of the box.
var defaultCIDRs = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
}

type Allowlist struct {
	nets []*net.IPNet
}

// New builds an allowlist from comma-separated CIDRs (WF_STAFF_ALLOWED_CIDRS);
// an empty string falls back to the default private-network ranges.
func New(raw string) (*Allowlist, error) {
	raw = strings.TrimSpace(raw)
	cidrs := defaultCIDRs
	if raw != "" {
		cidrs = strings.Split(raw, ",")
	}

	a := &Allowlist{}
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		_, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			return nil, err
		}
		a.nets = append(a.nets, ipnet)
	}
	return a, nil
}

func (a *Allowlist) Allows(ip net.IP) bool {
	for _, n := range a.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// AllowsRemoteAddr parses an http.Request.RemoteAddr (host:port form) and
// checks it against the allowlist.
func (a *Allowlist) AllowsRemoteAddr(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return a.Allows(ip)
}

// Middleware rejects any request whose RemoteAddr falls outside the
// allowlist with 403, before the handler chain runs.
func (a *Allowlist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.AllowsRemoteAddr(r.RemoteAddr) {
			http.Error(w, "staff endpoints are LAN-only", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
