package requestmeta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareStoresMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())

	var got Meta
	router.GET("/ping", func(c *gin.Context) {
		got = FromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("User-Agent", "journal-test/1.0")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "10.1.2.3", got.IPAddress)
	assert.Equal(t, "journal-test/1.0", got.UserAgent)
}

func TestFromContextEmpty(t *testing.T) {
	assert.Equal(t, Meta{}, FromContext(context.Background()))
}
