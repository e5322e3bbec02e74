package handlers

import (
	"net/url"
	"strconv"

	"catalog/internal/models"
	"catalog/internal/services"
	"catalog/internal/views"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const paginationWindow = 5

var pageSizeOptions = []int{10, 20, 30, 50}

// PageHandler serves the server-rendered pages.
type PageHandler struct {
	service *services.ProductService
	logger  *zap.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(service *services.ProductService, logger *zap.Logger) *PageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the page routes.
func (h *PageHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", h.HandleIndex)
	router.Get("/cadastro", h.HandleCreateForm)
	router.Get("/produtos-lista", h.HandleList)
	router.Get("/editar/:id", h.HandleEdit)
	router.Get("/consultar", h.HandleLookup)
	router.Get("/consultar/:id", h.HandleLookup)
	router.Get("/sucesso", h.HandleSuccess)
}

func (h *PageHandler) HandleIndex(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusOK, "index", fiber.Map{"Title": ""})
}

func (h *PageHandler) HandleCreateForm(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusOK, "cadastro", fiber.Map{"Title": "Cadastrar Produto"})
}

func (h *PageHandler) HandleSuccess(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusOK, "sucesso", fiber.Map{"Title": "Operação Concluída"})
}

// HandleNotFound is the fallback for any unmatched request.
func (h *PageHandler) HandleNotFound(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusNotFound, "notfound", fiber.Map{"Title": "Página Não Encontrada"})
}

// HandleEdit renders the edit form, or a 404 page when the id does not
// resolve to a product.
func (h *PageHandler) HandleEdit(c *fiber.Ctx) error {
	id := c.Params("id")
	product, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		if services.IsKind(err, services.KindNotFound) || services.IsKind(err, services.KindInvalidID) {
			return h.render(c, fiber.StatusNotFound, "produto_notfound", fiber.Map{
				"Title": "Produto Não Encontrado",
				"ID":    id,
			})
		}
		return h.fail(c, "editar", err)
	}
	return h.render(c, fiber.StatusOK, "editar", fiber.Map{
		"Title":   "Editar Produto",
		"Product": product,
	})
}

// HandleLookup renders the lookup page for /consultar/:id or /consultar?id=.
// An unknown id still renders with 200 and a not-found message.
func (h *PageHandler) HandleLookup(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		id = c.Query("id")
	}

	var product *models.Product
	if id != "" {
		p, err := h.service.Get(c.UserContext(), id)
		switch {
		case err == nil:
			product = p
		case services.IsKind(err, services.KindNotFound), services.IsKind(err, services.KindInvalidID):
		default:
			return h.fail(c, "consultar", err)
		}
	}
	return h.render(c, fiber.StatusOK, "consultar", fiber.Map{
		"Title":   "Consultar Produto",
		"ID":      id,
		"Product": product,
	})
}

type pageLink struct {
	Number int
	URL    string
	Active bool
}

type paginationView struct {
	From     int
	To       int
	Total    int64
	Links    []pageLink
	FirstURL string
	PrevURL  string
	NextURL  string
	LastURL  string
}

// HandleList renders the filtered, paginated product list.
func (h *PageHandler) HandleList(c *fiber.Ctx) error {
	q := services.ParseListQuery(parseQuery(c))
	page, err := h.service.List(c.UserContext(), q)
	if err != nil {
		return h.fail(c, "lista", err)
	}

	return h.render(c, fiber.StatusOK, "lista", fiber.Map{
		"Title":        "Lista de Produtos",
		"Campo":        q.Field,
		"Search":       q.Search,
		"MinPreco":     formatBound(q.MinPrice),
		"MaxPreco":     formatBound(q.MaxPrice),
		"Limit":        page.Limit,
		"LimitOptions": pageSizeOptions,
		"Page":         page.Page,
		"Total":        page.Total,
		"TotalPages":   page.TotalPages,
		"Products":     page.Items,
		"Pagination":   buildPagination(q, page),
		"Filtered":     q.Search != "" || q.MinPrice != nil || q.MaxPrice != nil,
	})
}

// buildPagination returns nil when everything fits on one page.
func buildPagination(q services.ListQuery, page *services.ProductPage) *paginationView {
	if page.TotalPages <= 1 {
		return nil
	}
	offset := (page.Page - 1) * page.Limit
	v := &paginationView{
		From:  offset + 1,
		To:    int(min(int64(offset+page.Limit), page.Total)),
		Total: page.Total,
	}

	start := max(1, min(page.TotalPages-paginationWindow+1, page.Page-paginationWindow/2))
	for n := start; n < start+paginationWindow && n <= page.TotalPages; n++ {
		v.Links = append(v.Links, pageLink{Number: n, URL: listURL(q, n, page.Limit), Active: n == page.Page})
	}
	if page.Page > 1 {
		v.FirstURL = listURL(q, 1, page.Limit)
		v.PrevURL = listURL(q, page.Page-1, page.Limit)
	}
	if page.Page < page.TotalPages {
		v.NextURL = listURL(q, page.Page+1, page.Limit)
		v.LastURL = listURL(q, page.TotalPages, page.Limit)
	}
	return v
}

// listURL keeps the active filters on every pagination link.
func listURL(q services.ListQuery, page, limit int) string {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Field != "" {
		params.Set("campo", q.Field)
	}
	if s := formatBound(q.MinPrice); s != "" {
		params.Set("minPreco", s)
	}
	if s := formatBound(q.MaxPrice); s != "" {
		params.Set("maxPreco", s)
	}
	return "/produtos-lista?" + params.Encode()
}

func formatBound(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func (h *PageHandler) fail(c *fiber.Ctx, page string, err error) error {
	h.logger.Error("failed to load page data", zap.String("page", page), zap.Error(err))
	return sendPlainError(c)
}

// render degrades to a plain-text 500 when the template cannot be executed.
func (h *PageHandler) render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	if err := c.Status(status).Render(name, data, views.Layout); err != nil {
		h.logger.Error("failed to render page", zap.String("page", name), zap.Error(err))
		return sendPlainError(c)
	}
	return nil
}

func sendPlainError(c *fiber.Ctx) error {
	c.Type("txt", "utf-8")
	return c.Status(fiber.StatusInternalServerError).SendString(services.MsgInternal)
}
