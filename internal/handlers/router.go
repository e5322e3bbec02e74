package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"catalog/internal/httpx"
	"catalog/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RouteHandler serves one API route from a fully buffered request.
type RouteHandler func(c *fiber.Ctx, req *httpx.Request) error

// Route maps a method and an anchored path pattern to a handler. Named groups
// in the pattern become request params.
type Route struct {
	Method  string
	Pattern *regexp.Regexp
	Handler RouteHandler
}

// Router dispatches API requests through an explicit route table.
type Router struct {
	routes      []Route
	bodyTimeout time.Duration
	logger      *zap.Logger
}

// NewRouter creates a Router. bodyTimeout bounds buffering of POST and PUT bodies.
func NewRouter(bodyTimeout time.Duration, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{bodyTimeout: bodyTimeout, logger: logger}
}

// Handle adds a route. pattern is matched against the whole path.
func (r *Router) Handle(method, pattern string, h RouteHandler) {
	r.routes = append(r.routes, Route{
		Method:  method,
		Pattern: regexp.MustCompile("^" + pattern + "$"),
		Handler: h,
	})
}

// Routes returns a copy of the route table.
func (r *Router) Routes() []Route {
	return append([]Route(nil), r.routes...)
}

// Mount sends every method on prefix and prefix/* to Dispatch.
func (r *Router) Mount(app fiber.Router, prefix string) {
	app.All(prefix, r.Dispatch)
	app.All(prefix+"/*", r.Dispatch)
}

// Dispatch buffers the body of write requests, applies the form method
// override, resolves a route and writes the response.
func (r *Router) Dispatch(c *fiber.Ctx) error {
	req := &httpx.Request{
		Method:         c.Method(),
		OriginalMethod: c.Method(),
		Path:           normalizePath(c.Path()),
		Query:          parseQuery(c),
		ContentType:    c.Get(fiber.HeaderContentType),
	}

	if req.Method == fiber.MethodPost || req.Method == fiber.MethodPut {
		body, err := r.readBody(c)
		if err != nil {
			// the rest of the body is still on the wire
			c.Context().SetConnectionClose()
			switch {
			case errors.Is(err, httpx.ErrBodyTimeout):
				r.logger.Warn("request body timeout", zap.String("method", req.Method), zap.String("path", req.Path))
				return writeFailure(c, fiber.StatusRequestTimeout, services.MsgTimeout)
			case errors.Is(err, fiber.ErrRequestEntityTooLarge):
				return writeFailure(c, fiber.StatusRequestEntityTooLarge, fiber.ErrRequestEntityTooLarge.Message)
			}
			r.logger.Error("failed to read request body", zap.String("path", req.Path), zap.Error(err))
			return writeFailure(c, fiber.StatusInternalServerError, services.MsgRequestFailed)
		}
		req.Body = body
		req.Method = httpx.OverrideMethod(req.Method, body)
	}

	route, params := r.match(req.Method, req.Path)
	if route == nil {
		r.logger.Debug("route not found", zap.String("method", req.Method), zap.String("path", req.Path))
		return writeFailure(c, fiber.StatusNotFound, services.MsgRouteNotFound)
	}
	req.Params = params
	return r.serve(c, route, req)
}

func (r *Router) serve(c *fiber.Ctx, route *Route, req *httpx.Request) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while handling route",
				zap.String("method", req.Method), zap.String("path", req.Path), zap.Any("panic", rec))
			err = writeInternal(c, fmt.Sprint(rec))
		}
	}()

	if err := route.Handler(c, req); err != nil {
		if se, ok := services.AsError(err); ok {
			if se.Kind == services.KindInternal && se.Err != nil {
				r.logger.Error("route failed", zap.String("method", req.Method), zap.String("path", req.Path), zap.Error(se.Err))
				return writeInternalMessage(c, se.Message, se.Err.Error())
			}
			return writeFailure(c, se.Status(), se.Message)
		}
		r.logger.Error("route failed", zap.String("method", req.Method), zap.String("path", req.Path), zap.Error(err))
		return writeInternal(c, err.Error())
	}
	return nil
}

func (r *Router) match(method, path string) (*Route, map[string]string) {
	for i := range r.routes {
		route := &r.routes[i]
		if route.Method != method {
			continue
		}
		m := route.Pattern.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		params := make(map[string]string)
		for j, name := range route.Pattern.SubexpNames() {
			if name != "" {
				params[name] = m[j]
			}
		}
		return route, params
	}
	return nil, nil
}

func (r *Router) readBody(c *fiber.Ctx) ([]byte, error) {
	fctx := c.Context()
	stream := fctx.RequestBodyStream()
	if stream == nil {
		return c.Body(), nil
	}
	var conn httpx.Deadliner
	if nc := fctx.Conn(); nc != nil {
		conn = nc
	}
	// a streamed body is not bounded by fasthttp
	limit := c.App().Config().BodyLimit
	body, err := httpx.ReadBody(io.LimitReader(stream, int64(limit)+1), conn, r.bodyTimeout)
	if err != nil {
		return nil, err
	}
	if len(body) > limit {
		return nil, fiber.ErrRequestEntityTooLarge
	}
	return body, nil
}

func normalizePath(p string) string {
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func parseQuery(c *fiber.Ctx) url.Values {
	// Malformed pairs are dropped, the rest still apply.
	q, _ := url.ParseQuery(string(c.Request().URI().QueryString()))
	return q
}

func writeFailure(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

func writeInternal(c *fiber.Ctx, detail string) error {
	return writeInternalMessage(c, services.MsgInternal, detail)
}

func writeInternalMessage(c *fiber.Ctx, msg, detail string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   msg,
		"message": detail,
	})
}
