package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// requireIngestToken guards write endpoints with a bearer token checked
// against the configured bcrypt hash. An empty hash disables writes
// over HTTP entirely.
func (s *Server) requireIngestToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		hash := strings.TrimSpace(s.opts.IngestTokenHash)
		if hash == "" {
			return fail(c, http.StatusForbidden, "Packet ingest over HTTP is disabled", nil)
		}

		token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if token == "" {
			return fail(c, http.StatusUnauthorized, "Missing bearer token", nil)
		}

		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
			return fail(c, http.StatusUnauthorized, "Invalid bearer token", nil)
		}

		return next(c)
	}
}

func bearerToken(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	const prefix = "bearer "
	if len(trimmed) <= len(prefix) || !strings.EqualFold(trimmed[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(trimmed[len(prefix):])
}
