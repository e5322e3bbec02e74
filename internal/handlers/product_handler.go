package handlers

import (
	"catalog/internal/httpx"
	"catalog/internal/services"

	"github.com/gofiber/fiber/v2"
)

const (
	collectionPattern = `/produtos`
	itemPattern       = `/produtos/(?P<id>[^/]+)`
)

// ProductHandler handles the JSON product API.
type ProductHandler struct {
	service *services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service: service,
	}
}

// RegisterRoutes registers the product routes on the API router.
func (h *ProductHandler) RegisterRoutes(r *Router) {
	r.Handle(fiber.MethodGet, collectionPattern, h.HandleList)
	r.Handle(fiber.MethodPost, collectionPattern, h.HandleCreate)
	r.Handle(fiber.MethodGet, itemPattern, h.HandleGet)
	r.Handle(fiber.MethodPut, itemPattern, h.HandleUpdate)
	r.Handle(fiber.MethodDelete, itemPattern, h.HandleDelete)
}

// HandleList returns one page of products. count is the number of matches
// regardless of the page window.
func (h *ProductHandler) HandleList(c *fiber.Ctx, req *httpx.Request) error {
	page, err := h.service.List(c.UserContext(), services.ParseListQuery(req.Query))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       page.Items,
		"count":      page.Total,
		"page":       page.Page,
		"limit":      page.Limit,
		"totalPages": page.TotalPages,
	})
}

// HandleGet returns a single product.
func (h *ProductHandler) HandleGet(c *fiber.Ctx, req *httpx.Request) error {
	product, err := h.service.Get(c.UserContext(), req.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// HandleCreate stores a product from a URL-encoded form and redirects to the
// success page.
func (h *ProductHandler) HandleCreate(c *fiber.Ctx, req *httpx.Request) error {
	form, err := req.Form()
	if err != nil {
		return &services.Error{Kind: services.KindMalformedPayload, Message: services.MsgInvalidForm, Err: err}
	}
	if _, err := h.service.Create(c.UserContext(), form); err != nil {
		return err
	}
	return c.Redirect("/sucesso", fiber.StatusFound)
}

// HandleUpdate applies a partial update from a JSON body, or from form fields
// when the request arrived as a POST with _method=PUT.
func (h *ProductHandler) HandleUpdate(c *fiber.Ctx, req *httpx.Request) error {
	contentType := req.ContentType
	if req.Overridden() {
		contentType = fiber.MIMEApplicationForm
	}
	product, err := h.service.Update(c.UserContext(), req.Param("id"), req.Body, contentType)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": services.MsgUpdated,
		"data":    product,
	})
}

// HandleDelete removes a product.
func (h *ProductHandler) HandleDelete(c *fiber.Ctx, req *httpx.Request) error {
	id, err := h.service.Delete(c.UserContext(), req.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   services.MsgDeleted,
		"deletedId": id,
	})
}
