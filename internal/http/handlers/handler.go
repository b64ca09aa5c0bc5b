package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tasksync/internal/domain"

	"github.com/gin-gonic/gin"
)

// ModifyService is the request/response contract served by the modify endpoint.
type ModifyService interface {
	AddTask(ctx context.Context, t domain.Task) (bool, error)
	UpdateTask(ctx context.Context, t domain.Task) (bool, error)
	DeleteTask(ctx context.Context, id string) (bool, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	GetAllTasks(ctx context.Context) ([]domain.Task, error)
}

type Handler struct {
	Service ModifyService
	log     *slog.Logger
}

func NewHandler(svc ModifyService, log *slog.Logger) *Handler {
	return &Handler{
		Service: svc,
		log:     log.With("component", "http"),
	}
}

// writeFault renders err as a fault body with a status matching its code.
func writeFault(c *gin.Context, err error) {
	var f *domain.Fault
	if !errors.As(err, &f) {
		f = domain.NewFault("unexpected server error", err)
	}
	c.JSON(faultStatus(f.Code), gin.H{"error": f})
}

func faultStatus(code domain.FaultCode) int {
	switch code {
	case domain.FaultValidation:
		return http.StatusBadRequest
	case domain.FaultNotFound:
		return http.StatusNotFound
	case domain.FaultDuplicateID:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
