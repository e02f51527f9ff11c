package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/returns"
)

func TestListenerCounts(t *testing.T) {
	before := testutil.ToFloat64(ReturnTransitionsTotal.WithLabelValues("approved"))
	submitted := testutil.ToFloat64(ReturnsSubmittedTotal)

	var l Listener
	l.ReturnChanged(context.Background(), returns.Change{Kind: returns.ChangeSubmitted})
	l.ReturnChanged(context.Background(), returns.Change{Kind: returns.ChangeDecided,
		Return: models.ReturnRequest{Status: models.ReturnStatusApproved}})
	l.ReturnChanged(context.Background(), returns.Change{Kind: returns.ChangeNotes})

	assert.Equal(t, submitted+1, testutil.ToFloat64(ReturnsSubmittedTotal))
	assert.Equal(t, before+1, testutil.ToFloat64(ReturnTransitionsTotal.WithLabelValues("approved")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/42", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/ping/:id"`)
}
