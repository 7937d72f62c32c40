package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vahub_errors "vahub-messaging/pkg/errors"
)

func TestErrorHandlerMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(nil))
	r.GET("/missing", func(c *gin.Context) {
		c.Error(vahub_errors.ErrNotFound)
	})
	r.GET("/forbidden", func(c *gin.Context) {
		c.Error(vahub_errors.ErrNotParticipant)
	})
	r.GET("/boom", func(c *gin.Context) {
		c.Error(errors.New("database exploded"))
	})
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"fine": true})
	})

	tests := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{"/missing", http.StatusNotFound, "NOT_FOUND"},
		{"/forbidden", http.StatusForbidden, "NOT_PARTICIPANT"},
		{"/boom", http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			var body struct {
				Success bool   `json:"success"`
				Code    string `json:"code"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}

	// no attached error leaves the response alone
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
