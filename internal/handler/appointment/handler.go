package appointment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/handler"
	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/service/appointment"
)

type Handler struct {
	svc *appointment.Service
}

func NewHandler(svc *appointment.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
		appointments.POST("/:id/decision", h.DecideAppointment)
		appointments.POST("/:id/complete", h.CompleteAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	appointment, err := h.svc.Create(c.Request.Context(), actorID, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appointment))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	appointment, err := h.svc.Get(c.Request.Context(), actorID, id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}

	var filter model.AppointmentFilter
	if err := c.ShouldBindQuery(&filter.Pagination); err != nil {
		handler.BindError(c, err)
		return
	}
	if id := c.Query("request_id"); id != "" {
		requestID, err := uuid.Parse(id)
		if err != nil {
			handler.Abort(c, http.StatusBadRequest, "invalid request_id")
			return
		}
		filter.RequestID = &requestID
	}
	if status := c.Query("status"); status != "" {
		filter.Status = model.AppointmentStatus(status)
	}

	appointments, err := h.svc.List(c.Request.Context(), actorID, filter)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	appointment, err := h.svc.Update(c.Request.Context(), actorID, id, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
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

func (h *Handler) DecideAppointment(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.DecideAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	appointment, err := h.svc.Decide(c.Request.Context(), actorID, id, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	h.transition(c, h.svc.Complete)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	h.transition(c, h.svc.Cancel)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, actorID, id uuid.UUID) (*model.Appointment, error)) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	appointment, err := fn(c.Request.Context(), actorID, id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}
