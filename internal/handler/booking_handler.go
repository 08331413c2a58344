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

// BookingHandler exposes booking endpoints.
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// List godoc
// @Summary List bookings
// @Tags Bookings
// @Produce json
// @Param projectId query string false "Filter by project"
// @Param unitType query string false "Filter by unit type"
// @Param maritalStatus query string false "Filter by applicant marital status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	var filter models.BookingFilter
	filter.ProjectID = c.Query("projectId")
	filter.UnitType = models.UnitType(c.Query("unitType"))
	filter.MaritalStatus = models.MaritalStatus(c.Query("maritalStatus"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	bookings, pagination, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Get godoc
// @Summary Get booking detail
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Perform godoc
// @Summary Book a unit for a successful applicant
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.PerformBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Perform(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.PerformBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	booking, err := h.bookings.Perform(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}
