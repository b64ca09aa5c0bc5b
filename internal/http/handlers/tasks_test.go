package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tasksync/internal/db"
	"tasksync/internal/domain"
	"tasksync/internal/logger"
	"tasksync/internal/repository"
	"tasksync/internal/service"
	"tasksync/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type faultBody struct {
	Error domain.Fault `json:"error"`
}

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sqlDB, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	repo := repository.NewSQLiteTaskRepository(sqlDB)
	require.NoError(t, repo.Migrate(context.Background()))

	log := logger.Discard()
	st := store.NewTaskStore(repo, nil, log)
	h := NewHandler(service.NewModifyService(st, log), log)

	r := gin.New()
	r.GET("/api/v1/tasks", h.ListTasks)
	r.GET("/api/v1/tasks/:id", h.GetTask)
	r.POST("/api/v1/tasks", h.CreateTask)
	r.PUT("/api/v1/tasks/:id", h.UpdateTask)
	r.DELETE("/api/v1/tasks/:id", h.DeleteTask)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeFault(t *testing.T, w *httptest.ResponseRecorder) domain.Fault {
	t.Helper()
	var fb faultBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fb))
	return fb.Error
}

func TestTasksAPI_Lifecycle(t *testing.T) {
	r := newTestEngine(t)

	w := do(r, http.MethodPost, "/api/v1/tasks", `{"id":"A","description":"Buy milk"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = do(r, http.MethodPut, "/api/v1/tasks/A", `{"id":"ignored","description":"Buy oat milk","is_completed":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/tasks/A", "")
	require.Equal(t, http.StatusOK, w.Code)
	var one struct {
		Task domain.Task `json:"task"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	require.Equal(t, domain.Task{ID: "A", Description: "Buy oat milk", IsCompleted: true}, one.Task)

	w = do(r, http.MethodGet, "/api/v1/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Tasks []domain.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Tasks, 1)

	w = do(r, http.MethodDelete, "/api/v1/tasks/A", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/tasks/A", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTasksAPI_Faults(t *testing.T) {
	r := newTestEngine(t)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/tasks", `{"id":"A","description":"x"}`).Code)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   domain.FaultCode
	}{
		{"duplicate", http.MethodPost, "/api/v1/tasks", `{"id":"A","description":"again"}`, http.StatusConflict, domain.FaultDuplicateID},
		{"empty description", http.MethodPost, "/api/v1/tasks", `{"id":"B","description":""}`, http.StatusBadRequest, domain.FaultValidation},
		{"too long", http.MethodPost, "/api/v1/tasks", `{"id":"B","description":"` + strings.Repeat("x", 501) + `"}`, http.StatusBadRequest, domain.FaultValidation},
		{"malformed", http.MethodPost, "/api/v1/tasks", `{"id":`, http.StatusBadRequest, domain.FaultValidation},
		{"update missing", http.MethodPut, "/api/v1/tasks/nope", `{"description":"x"}`, http.StatusNotFound, domain.FaultNotFound},
		{"delete missing", http.MethodDelete, "/api/v1/tasks/nope", "", http.StatusNotFound, domain.FaultNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, w.Code)
			f := decodeFault(t, w)
			require.Equal(t, tc.code, f.Code)
			require.NotEmpty(t, f.Message)
			require.NotEmpty(t, f.Cause)
		})
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ok := NewHealthHandler(stubPinger{}, func() int { return 3 }, "test")
	r := gin.New()
	r.GET("/health", ok.Health)
	r.GET("/readyz", ok.Readiness)

	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "3", resp.Checks["subscribers"])

	down := NewHealthHandler(stubPinger{err: context.DeadlineExceeded}, nil, "test")
	r = gin.New()
	r.GET("/health", down.Health)
	require.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/health", "").Code)
}
