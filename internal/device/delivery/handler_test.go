package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"triage-backend/internal/device/repository"
	"triage-backend/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := database.NewSQLiteConnection(":memory:")
	require.NoError(t, err)
	tokens, err := repository.NewTokenRepository(db)
	require.NoError(t, err)

	h := NewDeviceHandler(tokens)
	r := gin.New()
	r.POST("/api/devices", h.RegisterToken)
	r.DELETE("/api/devices/:token", h.UnregisterToken)

	send := func(method, path string, body interface{}) int {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusBadRequest, send(http.MethodPost, "/api/devices", gin.H{"device_id": "phone"}))
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/api/devices", gin.H{"device_id": "phone", "token": "tok-1", "device_info": "Pixel"}))
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/api/devices", gin.H{"device_id": "tablet", "token": "tok-1"}))

	ctx := context.Background()
	moved, err := tokens.GetTokensByDeviceID(ctx, "tablet")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "tok-1", moved[0].Token)

	assert.Equal(t, http.StatusOK, send(http.MethodDelete, "/api/devices/tok-1", nil))
	all, err := tokens.ListTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
