package office

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/handler"
	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/service/office"
)

type Handler struct {
	svc *office.Service
}

func NewHandler(svc *office.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts office and service discovery.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/offices", h.ListOffices)
	r.GET("/offices/:id", h.GetOffice)
	r.GET("/services", h.ListServices)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	offices := r.Group("/offices")
	{
		offices.POST("", h.CreateOffice)
		offices.PUT("/:id/active", h.SetOfficeActive)
		offices.POST("/:id/services", h.CreateService)
		offices.POST("/:id/staff", h.AddStaff)
		offices.GET("/:id/staff", h.ListStaff)
	}

	services := r.Group("/services")
	{
		services.POST("/:id/staff", h.AssignStaff)
		services.DELETE("/:id/staff/:staffId", h.UnassignStaff)
	}
}

func (h *Handler) CreateOffice(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var req model.CreateOfficeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	o, err := h.svc.CreateOffice(c.Request.Context(), actorID, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(o))
}

func (h *Handler) GetOffice(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	o, err := h.svc.GetOffice(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(o))
}

func (h *Handler) ListOffices(c *gin.Context) {
	offices, err := h.svc.ListOffices(c.Request.Context(), c.Query("include_inactive") == "true")
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(offices))
}

func (h *Handler) SetOfficeActive(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	o, err := h.svc.SetOfficeActive(c.Request.Context(), actorID, id, *req.Active)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(o))
}

func (h *Handler) CreateService(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	officeID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	service, err := h.svc.CreateService(c.Request.Context(), actorID, officeID, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(service))
}

func (h *Handler) ListServices(c *gin.Context) {
	var officeID *uuid.UUID
	if raw := c.Query("office_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handler.Abort(c, http.StatusBadRequest, "invalid office_id")
			return
		}
		officeID = &id
	}

	services, err := h.svc.ListServices(c.Request.Context(), officeID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(services))
}

func (h *Handler) AddStaff(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	officeID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.AddStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	staff, err := h.svc.AddStaff(c.Request.Context(), actorID, officeID, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(staff))
}

func (h *Handler) ListStaff(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	officeID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	staff, err := h.svc.ListStaff(c.Request.Context(), actorID, officeID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(staff))
}

func (h *Handler) AssignStaff(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	serviceID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.AssignStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	if err := h.svc.AssignStaff(c.Request.Context(), actorID, serviceID, req.StaffID); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(model.ServiceStaffAssignment{ServiceID: serviceID, StaffID: req.StaffID}))
}

func (h *Handler) UnassignStaff(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	serviceID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	staffID, ok := handler.ParamID(c, "staffId")
	if !ok {
		return
	}

	if err := h.svc.UnassignStaff(c.Request.Context(), actorID, serviceID, staffID); err != nil {
		handler.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
