package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// AssetLoader returns the content of a named static asset.
type AssetLoader func(name string) ([]byte, error)

// StaticHandler serves the stylesheet and the client script.
type StaticHandler struct {
	load AssetLoader
}

// NewStaticHandler creates a new StaticHandler.
func NewStaticHandler(load AssetLoader) *StaticHandler {
	return &StaticHandler{load: load}
}

func (h *StaticHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/style.css", h.serve("style.css", "css", "CSS não encontrado"))
	router.Get("/script.js", h.serve("script.js", "js", "JavaScript não encontrado"))
}

func (h *StaticHandler) serve(name, ext, missing string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		content, err := h.load(name)
		if err != nil {
			c.Type("txt", "utf-8")
			return c.Status(fiber.StatusNotFound).SendString(missing)
		}
		c.Type(ext, "utf-8")
		return c.Send(content)
	}
}
