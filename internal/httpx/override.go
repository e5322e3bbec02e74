package httpx

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// MethodOverrideField is the form field HTML forms use to simulate PUT.
const MethodOverrideField = "_method"

// OverrideMethod returns PUT for a POST whose URL-encoded body carries
// _method=PUT, and method unchanged otherwise.
func OverrideMethod(method string, body []byte) string {
	if method != fiber.MethodPost || len(body) == 0 {
		return method
	}
	// Malformed pairs are skipped, the rest still count.
	values, _ := url.ParseQuery(string(body))
	if values.Get(MethodOverrideField) == fiber.MethodPut {
		return fiber.MethodPut
	}
	return method
}
