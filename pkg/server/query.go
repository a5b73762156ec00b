package server

import (
	"net/url"
	"strings"
)

// QueryParam returns the first non-empty value of key in rawQuery. Keys and
// values are decoded with form rules; a segment that fails to decode is
// compared and returned as is.
func QueryParam(rawQuery, key string) (string, bool) {
	for rawQuery != "" {
		var param string
		param, rawQuery, _ = strings.Cut(rawQuery, "&")

		name, value, _ := strings.Cut(param, "=")
		if unescape(name) != key {
			continue
		}
		if v := unescape(value); v != "" {
			return v, true
		}
	}
	return "", false
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
