package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// jsonError writes {"error": code} and, when given, a human readable message.
func jsonError(c *fiber.Ctx, status int, code string, message ...string) error {
	body := fiber.Map{"error": code}
	if len(message) > 0 && message[0] != "" {
		body["message"] = message[0]
	}
	return c.Status(status).JSON(body)
}

// paramID parses a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseBool accepts the usual form spellings; ok is false for anything else.
func parseBool(v string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
