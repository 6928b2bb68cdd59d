// Package middleware defines route based authentication and request tracking
package middleware

import (
	"creativemind-api/internal/setup"
	"creativemind-api/internal/shared"

	"github.com/labstack/echo/v4"
)

// ExtractUser resolves the bearer credential into user metadata when
// possible; routes that tolerate anonymous callers still proceed.
func (u *UserManager) ExtractUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(cc echo.Context) error {
		c := cc.(*setup.Context)
		c.User = nil

		token, err := shared.ExtractBearerToken(c)
		if err != nil {
			return next(c)
		}
		user, err := u.getUserMetadataFromToken(c.Request().Context(), token)
		if err != nil {
			return next(c)
		}
		c.User = user
		c.Log = c.Log.With("user_id", c.User.UserID)
		return next(c)
	}
}

func (u *UserManager) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(cc echo.Context) error {
		c := cc.(*setup.Context)
		if c.User == nil {
			return c.JSON(401, map[string]any{"success": false, "message": shared.ErrInvalidToken.Message()})
		}
		return next(c)
	}
}
