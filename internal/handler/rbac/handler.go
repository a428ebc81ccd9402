package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/office-portal/internal/handler"
	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/service/rbac"
)

type Handler struct {
	svc *rbac.Service
}

func NewHandler(svc *rbac.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	permissions := r.Group("/permissions")
	{
		permissions.POST("", h.CreatePermission)
		permissions.GET("", h.ListPermissions)
	}

	roles := r.Group("/roles")
	{
		roles.POST("", h.CreateRole)
		roles.GET("", h.ListRoles)
		roles.GET("/:id", h.GetRole)
		roles.POST("/:id/permissions", h.GrantPermission)
		roles.DELETE("/:id/permissions/:permission", h.RevokePermission)
	}
}

func (h *Handler) CreatePermission(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var req model.CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	permission, err := h.svc.CreatePermission(c.Request.Context(), actorID, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(permission))
}

func (h *Handler) ListPermissions(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}

	permissions, err := h.svc.ListPermissions(c.Request.Context(), actorID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(permissions))
}

func (h *Handler) CreateRole(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var req model.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	role, err := h.svc.CreateRole(c.Request.Context(), actorID, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(role))
}

func (h *Handler) GetRole(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	role, err := h.svc.GetRole(c.Request.Context(), actorID, id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(role))
}

func (h *Handler) ListRoles(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}

	roles, err := h.svc.ListRoles(c.Request.Context(), actorID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(roles))
}

func (h *Handler) GrantPermission(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.GrantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	role, err := h.svc.GrantPermission(c.Request.Context(), actorID, id, req.Permission)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(role))
}

func (h *Handler) RevokePermission(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	role, err := h.svc.RevokePermission(c.Request.Context(), actorID, id, c.Param("permission"))
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(role))
}
