package middleware

// identity.go defines helper functions shared across middleware files.  It
// turns the subject stored by JWTAuth into a string usable in cache and
// rate-limit keys.  When no caller is authenticated, "anon" is returned.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the caller's id as a string.  JSON numbers in the
// "sub" claim decode as float64, so numeric ids are formatted without a
// fractional part.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		if v > 0 {
			return strconv.FormatUint(uint64(v), 10)
		}
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	}
	return "anon"
}
