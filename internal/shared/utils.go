// Package shared
package shared

import (
	"fmt"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
)

func SafeEnv(env string) (string, error) {
	res, present := os.LookupEnv(env)
	if !present {
		return "", fmt.Errorf("missing environment variable %s", env)
	}
	return res, nil
}

func GetEnv(env, fallback string) string {
	if value, ok := os.LookupEnv(env); ok {
		return value
	}
	return fallback
}

// ExtractBearerToken pulls the bearer credential off the Authorization header.
func ExtractBearerToken(c echo.Context) (string, error) {
	auth := c.Request().Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingAuth
	}

	parts := strings.Split(auth, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", ErrInvalidFormat
	}

	return parts[1], nil
}

// ExtractAPIKey pulls an api key credential off the Authorization header.
func ExtractAPIKey(c echo.Context) (string, error) {
	auth := c.Request().Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingAuth
	}

	parts := strings.Split(auth, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", ErrInvalidFormat
	}

	return parts[1], nil
}

// TruncateTitle derives a chat title from message content: the first
// ChatTitleMaxLength characters, with "..." appended only when the original
// was longer.
func TruncateTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= ChatTitleMaxLength {
		return content
	}
	return string(runes[:ChatTitleMaxLength]) + "..."
}
