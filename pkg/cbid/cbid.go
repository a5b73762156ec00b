// Package cbid derives callback ids from client secrets and recovers them
// from the hostnames, DNS names and URL paths the targets send back.
package cbid

import (
	"encoding/hex"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Length is the number of hex characters in a callback id (SHA3-224).
const Length = 56

var (
	domainPattern = regexp.MustCompile(`(?:^|\.)([a-fA-F0-9]{56})\.`)
	pathPattern   = regexp.MustCompile(`^/([a-fA-F0-9]{56})$`)
)

// Derive hashes the secret into its callback id.
func Derive(secret string) string {
	sum := sha3.Sum224([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// AddToURL returns an http URL on hostPort whose path is the callback id.
func AddToURL(cbid, hostPort string) string {
	return "http://" + hostPort + "/" + cbid
}

// AddToSubdomain returns hostPort with the callback id as its first label.
func AddToSubdomain(cbid, hostPort string) string {
	return cbid + "." + hostPort
}

// FromHTTPRequest looks for a callback id in the path of rawURL first and in
// its hostname second.
func FromHTTPRequest(rawURL string) (string, bool) {
	if id, ok := FromURL(rawURL); ok {
		return id, true
	}
	return FromHTTPHost(rawURL)
}

// FromURL matches a path that consists of exactly one callback id.
func FromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	return FromPath(u.Path)
}

// FromPath matches a decoded request path that consists of exactly one
// callback id.
func FromPath(path string) (string, bool) {
	m := pathPattern.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// FromHost matches a dot-delimited callback id label in a raw Host header
// value. The port is dropped without being validated and nothing else is
// parsed, so a malformed header still yields the id.
func FromHost(hostPort string) (string, bool) {
	host := hostPort
	if h, _, err := net.SplitHostPort(hostPort); err == nil {
		host = h
	}
	if host == "" {
		return "", false
	}
	return matchDomain(host)
}

// FromHTTPHost matches a dot-delimited callback id label in the hostname of
// rawURL. The port, path and query are ignored.
func FromHTTPHost(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	if host == "" {
		return "", false
	}
	return matchDomain(host)
}

// FromDNSName matches a dot-delimited callback id label anywhere in a raw
// query name. No parsing is attempted: names mangled by injected payloads
// (e.g. "localhost#.<cbid>.example.com") still yield the id.
func FromDNSName(name string) (string, bool) {
	return matchDomain(name)
}

func matchDomain(s string) (string, bool) {
	m := domainPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}
