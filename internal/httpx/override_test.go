package httpx_test

import (
	"testing"

	"catalog/internal/httpx"

	"github.com/stretchr/testify/assert"
)

func TestOverrideMethod(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		want   string
	}{
		{"form override", "POST", "_method=PUT&nome=Mouse", "PUT"},
		{"override anywhere in body", "POST", "nome=Mouse&_method=PUT", "PUT"},
		{"plain create", "POST", "nome=Mouse&preco=10", "POST"},
		{"other override value", "POST", "_method=DELETE", "POST"},
		{"case sensitive", "POST", "_method=put", "POST"},
		{"json body", "POST", `{"_method":"PUT"}`, "POST"},
		{"empty body", "POST", "", "POST"},
		{"malformed pair is skipped", "POST", "%zz=1&_method=PUT", "PUT"},
		{"only POST is overridden", "DELETE", "_method=PUT", "DELETE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, httpx.OverrideMethod(tt.method, []byte(tt.body)))
		})
	}
}

func TestRequest(t *testing.T) {
	req := &httpx.Request{
		Method:         "PUT",
		OriginalMethod: "POST",
		Params:         map[string]string{"id": "7"},
		Body:           []byte("_method=PUT&nome=Mouse"),
	}
	assert.Equal(t, "7", req.Param("id"))
	assert.Empty(t, req.Param("missing"))
	assert.True(t, req.Overridden())

	form, err := req.Form()
	assert.NoError(t, err)
	assert.Equal(t, "Mouse", form.Get("nome"))
}
