// Package identity resolves the user key a webhook call is accounted under.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"regexp"
	"strings"
)

// Anonymous is the key used when neither a user ID nor a client address is
// available.
const Anonymous = "anonymous"

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,256}$`)

// UserID returns the messenger user ID when it is usable as a key. Otherwise
// it derives a stable pseudonymous ID from the client address, so anonymous
// callers do not share one rate limit bucket.
func UserID(raw string, r *http.Request) string {
	raw = strings.TrimSpace(raw)
	if isValidUserID(raw) {
		return raw
	}
	if r == nil {
		return Anonymous
	}
	ip := IPFromRequest(r)
	if ip == "" {
		return Anonymous
	}
	return anonID(ip)
}

func isValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

func anonID(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return "anon_" + hex.EncodeToString(sum[:8])
}

// IPFromRequest returns a normalized remote IP.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
