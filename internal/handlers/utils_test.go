package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCookieToken(t *testing.T) {
	assert.Equal(t, "abc", extractCookieToken("theme=dark; auth_token=abc; x=1", AuthCookieName))
	assert.Equal(t, "", extractCookieToken("theme=dark", AuthCookieName))
	assert.Equal(t, "", extractCookieToken("", AuthCookieName))
}

func TestTokenFromRequestPrefersCookie(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?token=fromquery", nil)
	assert.Equal(t, "fromquery", tokenFromRequest(req))

	req.Header.Set("Cookie", "auth_token=fromcookie")
	assert.Equal(t, "fromcookie", tokenFromRequest(req))
}

func TestParseLimit(t *testing.T) {
	cases := map[string]int{"": 10, "?limit=5": 5, "?limit=0": 10, "?limit=-2": 10, "?limit=x": 10, "?limit=999": 50}
	for query, want := range cases {
		req := httptest.NewRequest("GET", "/api/ranking"+query, nil)
		assert.Equal(t, want, parseLimit(req, 10, 50), query)
	}
}
