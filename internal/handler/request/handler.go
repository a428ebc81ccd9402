package request

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/handler"
	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/service/request"
)

type Handler struct {
	svc *request.Service
}

func NewHandler(svc *request.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/requests")
	{
		requests.POST("", h.CreateRequest)
		requests.GET("", h.ListRequests)
		requests.GET("/:id", h.GetRequest)
		requests.PUT("/:id", h.UpdateRequest)
		requests.DELETE("/:id", h.DeleteRequest)
		requests.POST("/:id/staff-decision", h.StaffDecide)
		requests.POST("/:id/manager-decision", h.ManagerDecide)
		requests.PATCH("/:id/approval", h.AdminUpdate)
	}
}

func (h *Handler) CreateRequest(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var req model.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	view, err := h.svc.Create(c.Request.Context(), actorID, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(view))
}

func (h *Handler) GetRequest(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	view, err := h.svc.Get(c.Request.Context(), actorID, id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) ListRequests(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		handler.BindError(c, err)
		return
	}

	views, err := h.svc.List(c.Request.Context(), actorID, page)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(views))
}

func (h *Handler) UpdateRequest(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	view, err := h.svc.Update(c.Request.Context(), actorID, id, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) DeleteRequest(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actorID, id); err != nil {
		handler.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) StaffDecide(c *gin.Context) {
	h.decide(c, h.svc.StaffDecide)
}

func (h *Handler) ManagerDecide(c *gin.Context) {
	h.decide(c, h.svc.ManagerDecide)
}

type decideFunc func(ctx context.Context, actorID, id uuid.UUID, req model.DecideRequestRequest) (*model.RequestView, error)

func (h *Handler) decide(c *gin.Context, fn decideFunc) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.DecideRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	view, err := fn(c.Request.Context(), actorID, id, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) AdminUpdate(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.AdminUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	view, err := h.svc.AdminUpdate(c.Request.Context(), actorID, id, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}
