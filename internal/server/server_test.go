package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"catalog/internal/config"
	"catalog/internal/database"
	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig() config.Config {
	return config.Config{
		Port:        "0",
		Env:         "test",
		DBDriver:    database.DriverMemory,
		BodyTimeout: time.Second,
		BodyLimit:   1 << 20,
	}
}

func newTestApp(t *testing.T, cfg config.Config, metrics *middleware.Metrics) (*fiber.App, repositories.ProductRepository) {
	t.Helper()
	repo := repositories.NewMemoryProductRepository()
	app := New(Deps{
		Config:  cfg,
		Logger:  zap.NewNop(),
		Service: services.NewProductService(repo),
		Metrics: metrics,
	})
	return app, repo
}

func TestNew_ServesPagesAndAPI(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/produtos",
		strings.NewReader("nome=Mouse&preco=49.9")), -1)
	require.NoError(t, err)
	// no content type: the body is still read as a form
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/sucesso", resp.Header.Get("Location"))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/produtos/1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/produtos/1/extra", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"success":false,"error":"Rota não encontrada"}`, string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/sem-rota", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
}

func TestNew_Preflight(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), nil)

	for _, path := range []string{"/produtos", "/produtos/1", "/cadastro"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodOptions, path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		body, _ := io.ReadAll(resp.Body)
		assert.Empty(t, body, path)
	}
}

func TestNew_Metrics(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), middleware.NewMetrics())

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/produtos", nil), -1)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `http_requests_total{endpoint="/produtos",method="GET",status="200"} 1`)
}

func TestNew_WithoutMetrics(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// A client that announces more body than it sends gets a 408 once the body
// timeout elapses, and nothing is stored.
// postStalled sends a POST /produtos announcing contentLength bytes but only
// writes sent, then waits for the response.
func postStalled(t *testing.T, app *fiber.App, contentLength int, sent string) (*http.Response, time.Duration) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = fmt.Fprintf(conn, "POST /produtos HTTP/1.1\r\nHost: test\r\nContent-Type: application/x-www-form-urlencoded\r\nContent-Length: %d\r\n\r\n%s",
		contentLength, sent)
	require.NoError(t, err)

	start := time.Now()
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp, time.Since(start)
}

func assertTimeoutEnvelope(t *testing.T, resp *http.Response) {
	t.Helper()
	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
	var env struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, services.MsgTimeout, env.Error)
}

func TestNew_BodyTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.BodyTimeout = 100 * time.Millisecond
	app, repo := newTestApp(t, cfg, nil)

	// more than the server prefetches before calling the handler
	partial := "nome=Mouse&preco=1&descricao=" + strings.Repeat("a", 10000)
	resp, elapsed := postStalled(t, app, len(partial)+10000, partial)

	assertTimeoutEnvelope(t, resp)
	assert.Less(t, elapsed, 3*time.Second)

	_, total, err := repo.FindAll(t.Context(), repositories.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestNew_BodyTimeoutSmallBody(t *testing.T) {
	cfg := testConfig()
	cfg.BodyTimeout = 100 * time.Millisecond
	app, repo := newTestApp(t, cfg, nil)

	// the whole body fits in the prefetch, so it stalls before any handler runs
	resp, elapsed := postStalled(t, app, 40, "nome=Mo")

	assertTimeoutEnvelope(t, resp)
	assert.Less(t, elapsed, 3*time.Second)

	_, total, err := repo.FindAll(t.Context(), repositories.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

type panickingViews struct{}

func (panickingViews) Load() error { return nil }

func (panickingViews) Render(io.Writer, string, interface{}, ...string) error {
	panic("template exploded")
}

func TestNew_PanicsAreAccessLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	app := New(Deps{
		Config:  testConfig(),
		Logger:  zap.New(core),
		Service: services.NewProductService(repositories.NewMemoryProductRepository()),
		Views:   panickingViews{},
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	entries := logs.FilterMessage("request").AllUntimed()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, http.StatusInternalServerError, fields["status"])
	assert.Equal(t, "/", fields["path"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler(zap.NewNop())})
	app.Get("/teapot", func(*fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "short and stout") })
	app.Get("/boom", func(*fiber.Ctx) error { return fmt.Errorf("boom") })
	app.Get("/slow", func(*fiber.Ctx) error { return fiber.ErrRequestTimeout })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/teapot", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "short and stout", string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/plain")
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, services.MsgInternal, string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/slow", nil), -1)
	require.NoError(t, err)
	assertTimeoutEnvelope(t, resp)
	assert.True(t, resp.Close)
}

func TestOpenRepository(t *testing.T) {
	cfg := testConfig()
	repo, closeStore, err := OpenRepository(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &repositories.MemoryProductRepository{}, repo)
	require.NoError(t, closeStore())

	cfg.DBDriver = database.DriverSQLite
	cfg.DBDSN = filepath.Join(t.TempDir(), "data", "catalog.sqlite")
	cfg.DBQueryTimeout = 5 * time.Second
	repo, closeStore, err = OpenRepository(cfg, zap.NewNop())
	require.NoError(t, err)
	p := &models.Product{Name: "Mouse", Price: 10}
	require.NoError(t, repo.Create(t.Context(), p))
	assert.Equal(t, uint(1), p.ID)
	require.NoError(t, closeStore())

	cfg.DBDriver = "oracle"
	_, _, err = OpenRepository(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver")
}
