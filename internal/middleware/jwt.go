package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
	"github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers read
// the caller via `c.Get("user_id")` and `c.Get("role")`.  Identity itself is
// issued elsewhere; this service only verifies it.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := parseBearer(c, secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error(), "code": "UNAUTHORIZED"})
			}
			setIdentity(c, claims)
			return next(c)
		}
	}
}

// OptionalJWTAuth behaves like JWTAuth when a valid token is present and
// lets the request through anonymously otherwise.  It is used on public
// reads that show extra detail to a signed-in shopper, such as the seat map.
func OptionalJWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if claims, err := parseBearer(c, secret); err == nil {
				setIdentity(c, claims)
			}
			return next(c)
		}
	}
}

// parseBearer reads the Authorization header and verifies the HS256 token.
// Tokens without a subject are rejected.
func parseBearer(c echo.Context, secret string) (jwt.MapClaims, error) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, errMissingToken
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	// Only HMAC signatures are accepted; anything else is rejected before
	// the key is handed out.
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, errInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || claims["sub"] == nil {
		return nil, errInvalidToken
	}
	return claims, nil
}

// setIdentity stores the subject and role claims in the context.  Type
// assertions are left to the consumers.
func setIdentity(c echo.Context, claims jwt.MapClaims) {
	c.Set("user_id", claims["sub"])
	c.Set("role", claims["role"])
}
