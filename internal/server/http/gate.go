package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/and161185/skillmarket/internal/model"
	"github.com/and161185/skillmarket/internal/token"
)

// TokenVerifier checks a raw bearer token.
type TokenVerifier interface {
	Verify(raw string) (token.Claims, bool)
}

// AuthGate turns an Authorization header into an authenticated identity.
// Every failure produces the same 401 with no hint about the cause.
type AuthGate struct {
	verifier TokenVerifier
}

// NewAuthGate constructs an AuthGate around a token verifier.
func NewAuthGate(v TokenVerifier) *AuthGate {
	return &AuthGate{verifier: v}
}

// Authenticate extracts and verifies the bearer token of r.
func (g *AuthGate) Authenticate(r *http.Request) (model.Identity, bool) {
	raw, ok := bearerToken(r.Header.Get(echo.HeaderAuthorization))
	if !ok {
		return model.Identity{}, false
	}
	claims, ok := g.verifier.Verify(raw)
	if !ok {
		return model.Identity{}, false
	}
	return claims.Identity(), true
}

// Middleware rejects unauthenticated requests and attaches the identity to
// the request context otherwise.
func (g *AuthGate) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := g.Authenticate(c.Request())
		if !ok {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		}
		req := c.Request()
		c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
		return next(c)
	}
}

// bearerToken accepts "Bearer <token>" with a case-insensitive scheme.
func bearerToken(header string) (string, bool) {
	v := strings.TrimSpace(header)
	if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(v[7:])
	if t == "" {
		return "", false
	}
	return t, true
}
