package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/equipment-lending/internal/model"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// SetIdentity stores the authenticated caller on c.
func SetIdentity(c echo.Context, userID uint64, role model.Role) {
	c.Set(ctxUserID, userID)
	c.Set(ctxRole, role)
}

// UserID returns the authenticated caller's id; ok is false for
// anonymous requests.
func UserID(c echo.Context) (id uint64, ok bool) {
	id, ok = c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated caller's role, or "" when anonymous.
func Role(c echo.Context) model.Role {
	r, _ := c.Get(ctxRole).(model.Role)
	return r
}

// currentUserID renders the caller for rate-limit keys; "anon" when no
// one is authenticated.
func currentUserID(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
