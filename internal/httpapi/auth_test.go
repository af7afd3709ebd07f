package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		header   string
		expected string
	}{
		{name: "empty", header: "", expected: ""},
		{name: "standard", header: "Bearer secret-token", expected: "secret-token"},
		{name: "case insensitive scheme", header: "bearer secret-token", expected: "secret-token"},
		{name: "padded", header: "  Bearer   secret-token  ", expected: "secret-token"},
		{name: "wrong scheme", header: "Basic secret-token", expected: ""},
		{name: "scheme only", header: "Bearer", expected: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := bearerToken(tc.header); got != tc.expected {
				t.Fatalf("bearerToken(%q) = %q, want %q", tc.header, got, tc.expected)
			}
		})
	}
}

func TestRequireIngestToken(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generate hash: %v", err)
	}

	invoke := func(tokenHash, authorization string) int {
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/packets", nil)
		if authorization != "" {
			req.Header.Set(echo.HeaderAuthorization, authorization)
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		server := &Server{opts: Options{IngestTokenHash: tokenHash}}
		handler := server.requireIngestToken(func(c echo.Context) error {
			return c.NoContent(http.StatusNoContent)
		})
		if err := handler(c); err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec.Code
	}

	if code := invoke("", "Bearer secret-token"); code != http.StatusForbidden {
		t.Fatalf("empty hash should disable ingest, got %d", code)
	}
	if code := invoke(string(hash), ""); code != http.StatusUnauthorized {
		t.Fatalf("missing token should be unauthorized, got %d", code)
	}
	if code := invoke(string(hash), "Bearer wrong-token"); code != http.StatusUnauthorized {
		t.Fatalf("wrong token should be unauthorized, got %d", code)
	}
	if code := invoke(string(hash), "Bearer secret-token"); code != http.StatusNoContent {
		t.Fatalf("valid token should pass through, got %d", code)
	}
}
