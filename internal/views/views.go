// Package views embeds the page templates and static assets.
package views

import (
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/template/html/v2"
	"github.com/shopspring/decimal"
)

// Layout wraps every page.
const Layout = "layouts/main"

//go:embed templates static
var files embed.FS

// NewEngine returns an html engine over the embedded templates.
func NewEngine() *html.Engine {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic(err)
	}
	return NewEngineFS(sub)
}

// NewEngineFS returns an html engine over fsys with the catalog helpers registered.
func NewEngineFS(fsys fs.FS) *html.Engine {
	engine := html.NewFileSystem(http.FS(fsys), ".html")
	engine.AddFuncMap(Funcs())
	return engine
}

// Funcs are the template helpers used by the pages.
func Funcs() map[string]interface{} {
	return map[string]interface{}{
		"price":    FormatPrice,
		"date":     FormatDate,
		"datetime": FormatDateTime,
	}
}

// FormatPrice renders a price with exactly two decimals.
func FormatPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatDate renders t in the dd/mm/yyyy form.
func FormatDate(t time.Time) string {
	return t.Local().Format("02/01/2006")
}

// FormatDateTime renders t in the dd/mm/yyyy hh:mm:ss form.
func FormatDateTime(t time.Time) string {
	return t.Local().Format("02/01/2006 15:04:05")
}

// Asset returns an embedded static file such as "style.css".
func Asset(name string) ([]byte, error) {
	return fs.ReadFile(files, "static/"+name)
}
