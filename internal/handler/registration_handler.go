package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	"github.com/noah-isme/bto-allocation-api/internal/service"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
	"github.com/noah-isme/bto-allocation-api/pkg/response"
)

// RegistrationHandler exposes officer registration endpoints.
type RegistrationHandler struct {
	registrations *service.RegistrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// List godoc
// @Summary List officer registrations
// @Tags Registrations
// @Produce json
// @Param projectId query string false "Filter by project"
// @Param officerId query string false "Filter by officer"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.RegistrationFilter
	filter.ProjectID = c.Query("projectId")
	filter.OfficerID = c.Query("officerId")
	filter.Status = models.RegistrationStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	// Officers only ever see their own registrations.
	if claims.Role == models.RoleOfficer {
		filter.OfficerID = claims.UserID
	}

	registrations, pagination, err := h.registrations.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registrations, pagination)
}

// Request godoc
// @Summary Request to administer a project
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.RequestRegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RequestRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	registration, err := h.registrations.Request(c.Request.Context(), claims.UserID, req.ProjectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, registration)
}

// Review godoc
// @Summary Approve or reject a pending registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.ReviewApplicationRequest true "Verdict payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/review [post]
func (h *RegistrationHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ReviewApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	registration, err := h.registrations.Review(c.Request.Context(), claims.UserID, c.Param("id"), req.Approve)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}
