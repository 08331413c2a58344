package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	"github.com/noah-isme/bto-allocation-api/internal/service"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
	"github.com/noah-isme/bto-allocation-api/pkg/response"
)

// ReceiptHandler exposes receipt and report generation endpoints.
type ReceiptHandler struct {
	receipts *service.ReceiptService
}

// NewReceiptHandler constructs ReceiptHandler.
func NewReceiptHandler(receipts *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

// CreateReceipt godoc
// @Summary Queue a booking receipt document
// @Tags Receipts
// @Accept json
// @Produce json
// @Param payload body service.CreateReceiptRequest true "Receipt payload"
// @Success 202 {object} response.Envelope
// @Router /receipts [post]
func (h *ReceiptHandler) CreateReceipt(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.receipts.CreateReceipt(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// CreateReport godoc
// @Summary Queue a filtered bookings report
// @Tags Receipts
// @Accept json
// @Produce json
// @Param payload body service.CreateReportRequest true "Report payload"
// @Success 202 {object} response.Envelope
// @Router /receipts/reports [post]
func (h *ReceiptHandler) CreateReport(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.receipts.CreateReport(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Poll a receipt job
// @Tags Receipts
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /receipts/{id} [get]
func (h *ReceiptHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	job, err := h.receipts.GetStatus(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a generated document via signed token
// @Tags Receipts
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Failure 401 {object} response.Envelope
// @Router /receipts/download/{token} [get]
func (h *ReceiptHandler) Download(c *gin.Context) {
	file, job, err := h.receipts.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "application/octet-stream"
	switch job.Params.Format {
	case models.ReceiptFormatPDF:
		contentType = "application/pdf"
	case models.ReceiptFormatCSV:
		contentType = "text/csv"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(file.Name())))
	c.Header("Content-Type", contentType)
	c.File(file.Name())
}
