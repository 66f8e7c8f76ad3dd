package filterpreset

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tsgate/internal/constants"
	"tsgate/internal/logger"
	"tsgate/pkg/errors"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "filter preset request error", "error", err, "path", c.Request.URL.Path)
	status := errors.ToHTTPStatus(err)
	c.JSON(status, errors.ToErrorResponse(err))
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		presets := v1.Group("/filter-presets")
		{
			presets.GET("", h.List)
			presets.POST("", h.Create)
			presets.GET("/:id", h.Get)
			presets.PUT("/:id", h.Update)
			presets.DELETE("/:id", h.Delete)
			presets.GET("/:id/versions", h.Versions)
			presets.GET("/:id/audit", h.AuditLogs)
		}
	}
}

// List godoc
// @Summary      List filter presets
// @Description  Get a list of all named filter presets
// @Tags         filter-presets
// @Accept       json
// @Produce      json
// @Success      200  {array}    Preset
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /filter-presets [get]
func (h *Handler) List(c *gin.Context) {
	presets, err := h.service.List(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, presets)
}

// Create godoc
// @Summary      Create a filter preset
// @Description  Create a named CEL boolean-composition preset over the closed-set filter kinds
// @Tags         filter-presets
// @Accept       json
// @Produce      json
// @Param        preset  body      CreatePresetRequest  true  "Preset data"
// @Success      201     {object}  Preset
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      409     {object}  errors.ErrorResponse
// @Router       /filter-presets [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreatePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrInvalidRequest.WithCause(err)))
		return
	}

	preset, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, preset)
}

// Get godoc
// @Summary      Get a filter preset
// @Tags         filter-presets
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Preset ID"
// @Success      200  {object}  Preset
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /filter-presets/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	preset, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, preset)
}

// Update godoc
// @Summary      Update a filter preset
// @Tags         filter-presets
// @Accept       json
// @Produce      json
// @Param        id      path      string               true  "Preset ID"
// @Param        preset  body      UpdatePresetRequest  true  "Updated preset data"
// @Success      200     {object}  Preset
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      404     {object}  errors.ErrorResponse
// @Router       /filter-presets/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req UpdatePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrInvalidRequest.WithCause(err)))
		return
	}

	preset, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, preset)
}

// Delete godoc
// @Summary      Delete a filter preset
// @Tags         filter-presets
// @Accept       json
// @Produce      json
// @Param        id   path  string  true  "Preset ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /filter-presets/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Versions godoc
// @Summary      Get preset version history
// @Tags         filter-presets
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Preset ID"
// @Success      200  {array}   PresetVersion
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /filter-presets/{id}/versions [get]
func (h *Handler) Versions(c *gin.Context) {
	versions, err := h.service.Versions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// AuditLogs godoc
// @Summary      Get audit logs for a preset
// @Tags         filter-presets
// @Accept       json
// @Produce      json
// @Param        id     path      string  true   "Preset ID"
// @Param        limit  query     int     false  "Maximum number of logs to return"
// @Success      200    {array}   AuditLog
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /filter-presets/{id}/audit [get]
func (h *Handler) AuditLogs(c *gin.Context) {
	id := c.Param("id")
	limit := parseLimit(c.Query("limit"))

	logs, err := h.service.AuditLogs(c.Request.Context(), &id, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}
