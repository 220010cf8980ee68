package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestHealthWithoutDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{}, time.Now())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, true, body["ok"])
}

func TestStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{}, time.Now().Add(-90*time.Second))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.GreaterOrEqual(t, body["uptime_seconds"].(float64), float64(90))
	require.Contains(t, body, "version")
}

func TestNewServerDisabled(t *testing.T) {
	require.Nil(t, NewServer(Config{}, Deps{}))

	var s *Server
	s.Start()
	s.Stop(nil)
}
