package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newLimitedEngine(max int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/test", RateLimit(max, window), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func hit(r http.Handler) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_Local(t *testing.T) {
	require.NoError(t, InitRedisRateLimiter("", "", 0))
	r := newLimitedEngine(2, time.Minute)

	require.Equal(t, http.StatusOK, hit(r))
	require.Equal(t, http.StatusOK, hit(r))
	require.Equal(t, http.StatusTooManyRequests, hit(r))
}

func TestRateLimit_Disabled(t *testing.T) {
	require.NoError(t, InitRedisRateLimiter("", "", 0))
	r := newLimitedEngine(0, time.Minute)

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, hit(r))
	}
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisRateLimitIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}
	require.NoError(t, InitRedisRateLimiter(addr, os.Getenv("REDIS_PASSWORD"), db))
	defer InitRedisRateLimiter("", "", 0)

	r := newLimitedEngine(2, 2*time.Second)

	srv := httptest.NewServer(r)
	defer srv.Close()

	get := func() int {
		res, err := http.Get(srv.URL + "/test")
		require.NoError(t, err)
		res.Body.Close()
		return res.StatusCode
	}

	require.Equal(t, http.StatusOK, get())
	require.Equal(t, http.StatusOK, get())
	require.Equal(t, http.StatusTooManyRequests, get())
}
