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

// EnquiryHandler exposes enquiry endpoints.
type EnquiryHandler struct {
	enquiries *service.EnquiryService
}

// NewEnquiryHandler constructs EnquiryHandler.
func NewEnquiryHandler(enquiries *service.EnquiryService) *EnquiryHandler {
	return &EnquiryHandler{enquiries: enquiries}
}

// List godoc
// @Summary List enquiries
// @Tags Enquiries
// @Produce json
// @Param projectId query string false "Filter by project"
// @Param unanswered query bool false "Only unanswered enquiries"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enquiries [get]
func (h *EnquiryHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.EnquiryFilter
	filter.ProjectID = c.Query("projectId")
	filter.Unanswered = c.Query("unanswered") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	enquiries, pagination, err := h.enquiries.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enquiries, pagination)
}

// Get godoc
// @Summary Get enquiry
// @Tags Enquiries
// @Produce json
// @Param id path string true "Enquiry ID"
// @Success 200 {object} response.Envelope
// @Router /enquiries/{id} [get]
func (h *EnquiryHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	enquiry, err := h.enquiries.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enquiry, nil)
}

// Submit godoc
// @Summary Submit enquiry about a project
// @Tags Enquiries
// @Accept json
// @Produce json
// @Param payload body service.SubmitEnquiryRequest true "Enquiry payload"
// @Success 201 {object} response.Envelope
// @Router /enquiries [post]
func (h *EnquiryHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enquiry, err := h.enquiries.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enquiry)
}

// Update godoc
// @Summary Edit own unreplied enquiry
// @Tags Enquiries
// @Accept json
// @Produce json
// @Param id path string true "Enquiry ID"
// @Param payload body service.UpdateEnquiryRequest true "Enquiry payload"
// @Success 200 {object} response.Envelope
// @Router /enquiries/{id} [put]
func (h *EnquiryHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enquiry, err := h.enquiries.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enquiry, nil)
}

// Delete godoc
// @Summary Delete own unreplied enquiry
// @Tags Enquiries
// @Produce json
// @Param id path string true "Enquiry ID"
// @Success 204
// @Router /enquiries/{id} [delete]
func (h *EnquiryHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.enquiries.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reply godoc
// @Summary Reply to an enquiry
// @Tags Enquiries
// @Accept json
// @Produce json
// @Param id path string true "Enquiry ID"
// @Param payload body service.ReplyEnquiryRequest true "Reply payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enquiries/{id}/reply [post]
func (h *EnquiryHandler) Reply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ReplyEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enquiry, err := h.enquiries.Reply(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enquiry, nil)
}
