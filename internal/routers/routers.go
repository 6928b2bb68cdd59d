// Package routers wires the HTTP surface onto the task executor and the
// account services.
package routers

import (
	"creativemind-api/internal/setup"
	"creativemind-api/internal/shared"
)

// respondError maps any internal error onto its taxonomy kind and writes
// the caller-facing JSON shape.
func respondError(c *setup.Context, err error) error {
	rerr := shared.Classify(err)
	if rerr.StatusCode >= 500 {
		c.Log.Errorw("Request failed", "error", err)
	}
	return c.JSON(rerr.StatusCode, map[string]any{
		"success": false,
		"message": rerr.Message(),
	})
}
