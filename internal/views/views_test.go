package views_test

import (
	"bytes"
	"testing"
	"time"

	"catalog/internal/models"
	"catalog/internal/views"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "49.90", views.FormatPrice(49.9))
	assert.Equal(t, "10.00", views.FormatPrice(10))
	assert.Equal(t, "0.01", views.FormatPrice(0.005))
	assert.Equal(t, "1234.57", views.FormatPrice(1234.567))
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.Local)
	assert.Equal(t, "05/03/2024", views.FormatDate(ts))
	assert.Equal(t, "05/03/2024 14:07:09", views.FormatDateTime(ts))
}

func TestAsset(t *testing.T) {
	css, err := views.Asset("style.css")
	require.NoError(t, err)
	assert.Contains(t, string(css), ".produto-card")

	js, err := views.Asset("script.js")
	require.NoError(t, err)
	assert.Contains(t, string(js), "deletarProduto")

	_, err = views.Asset("missing.css")
	assert.Error(t, err)
}

func TestEngineRendersPagesInLayout(t *testing.T) {
	engine := views.NewEngine()
	require.NoError(t, engine.Load())

	desc := "<b>wireless</b>"
	var buf bytes.Buffer
	err := engine.Render(&buf, "consultar", map[string]interface{}{
		"Title":   "Consultar Produto",
		"ID":      "1",
		"Product": &models.Product{ID: 1, Name: "Mouse", Price: 49.9, Description: &desc},
	}, views.Layout)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<title>Consultar Produto - Sistema de Produtos</title>")
	assert.Contains(t, out, "R$ 49.90")
	assert.Contains(t, out, "&lt;b&gt;wireless&lt;/b&gt;", "descriptions must be escaped")
	assert.NotContains(t, out, "Produto Não Encontrado")
}
