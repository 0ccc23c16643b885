package httpkit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"dealflow_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

func TestHandleErrorMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", err: apperr.NotFound("lead not found"), status: http.StatusNotFound},
		{name: "conflict", err: apperr.Conflict("lead was modified"), status: http.StatusConflict},
		{name: "validation", err: apperr.InvalidField("listingPrice", "must be >= 0"), status: http.StatusBadRequest},
		{name: "provider", err: apperr.Provider("rentcast", fmt.Errorf("timeout")), status: http.StatusBadGateway},
		{name: "wrapped", err: fmt.Errorf("update: %w", apperr.Conflict("stale")), status: http.StatusConflict},
		{name: "untyped", err: fmt.Errorf("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			if !HandleError(c, tt.err) {
				t.Fatal("expected error to be handled")
			}
			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestHandleErrorNil(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if HandleError(c, nil) {
		t.Fatal("expected nil error to be ignored")
	}
}
