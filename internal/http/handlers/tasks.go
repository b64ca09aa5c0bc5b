package handlers

import (
	"fmt"
	"net/http"

	"tasksync/internal/domain"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.Service.GetAllTasks(c.Request.Context())
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *Handler) GetTask(c *gin.Context) {
	task, err := h.Service.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *Handler) CreateTask(c *gin.Context) {
	var task domain.Task
	if err := c.ShouldBindJSON(&task); err != nil {
		writeFault(c, domain.NewFault("bad request", wrapValidation(err)))
		return
	}

	ok, err := h.Service.AddTask(c.Request.Context(), task)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

// UpdateTask takes the id from the path; a different id in the body is ignored.
func (h *Handler) UpdateTask(c *gin.Context) {
	var task domain.Task
	if err := c.ShouldBindJSON(&task); err != nil {
		writeFault(c, domain.NewFault("bad request", wrapValidation(err)))
		return
	}
	task.ID = c.Param("id")

	ok, err := h.Service.UpdateTask(c.Request.Context(), task)
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

func (h *Handler) DeleteTask(c *gin.Context) {
	ok, err := h.Service.DeleteTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

func wrapValidation(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrValidation, err)
}
