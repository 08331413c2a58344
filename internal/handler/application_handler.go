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

// ApplicationHandler exposes flat application endpoints.
type ApplicationHandler struct {
	applications *service.ApplicationService
}

// NewApplicationHandler constructs ApplicationHandler.
func NewApplicationHandler(applications *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// List godoc
// @Summary List applications
// @Tags Applications
// @Produce json
// @Param projectId query string false "Filter by project"
// @Param applicantId query string false "Filter by applicant"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.ApplicationFilter
	filter.ProjectID = c.Query("projectId")
	filter.ApplicantID = c.Query("applicantId")
	filter.Status = models.ApplicationStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	// Applicants only ever see their own history.
	if claims.Role == models.RoleApplicant {
		filter.ApplicantID = claims.UserID
	}

	applications, pagination, err := h.applications.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applications, pagination)
}

// Get godoc
// @Summary Get application detail
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	application, err := h.applications.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}

// Submit godoc
// @Summary Submit application
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body service.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	application, err := h.applications.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, application)
}

// RequestWithdrawal godoc
// @Summary Request withdrawal of own active application
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/withdrawal [post]
func (h *ApplicationHandler) RequestWithdrawal(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	application, err := h.applications.RequestWithdrawal(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}

// Review godoc
// @Summary Approve or reject a pending application
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.ReviewApplicationRequest true "Verdict payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/review [post]
func (h *ApplicationHandler) Review(c *gin.Context) {
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
	application, err := h.applications.Review(c.Request.Context(), claims.UserID, c.Param("id"), req.Approve)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}

// ReviewWithdrawal godoc
// @Summary Approve or reject a withdrawal request
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.ReviewApplicationRequest true "Verdict payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/withdrawal/review [post]
func (h *ApplicationHandler) ReviewWithdrawal(c *gin.Context) {
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
	application, err := h.applications.ReviewWithdrawal(c.Request.Context(), claims.UserID, c.Param("id"), req.Approve)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}
