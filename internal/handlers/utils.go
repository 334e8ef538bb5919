package handlers

import (
	"net/http"
	"strconv"
	"strings"
)

// AuthCookieName carries the identity token on the WebSocket handshake.
const AuthCookieName = "auth_token"

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == cookieName {
			return value
		}
	}
	return ""
}

// tokenFromRequest prefers the auth cookie and falls back to the "token" query parameter.
func tokenFromRequest(r *http.Request) string {
	if tok := extractCookieToken(r.Header.Get("Cookie"), AuthCookieName); tok != "" {
		return tok
	}
	return r.URL.Query().Get("token")
}

// parseLimit reads a positive integer query parameter, clamped to max.
func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
