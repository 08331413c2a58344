package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/bto-allocation-api/internal/middleware"
	"github.com/noah-isme/bto-allocation-api/internal/models"
)

func TestEnquiryHandlerSubmitUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnquiryHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enquiries", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEnquiryHandlerSubmitInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnquiryHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enquiries", bytes.NewReader([]byte(`not-json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "a1", Role: models.RoleApplicant})

	handler.Submit(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnquiryHandlerReplyInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnquiryHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enquiries/e1/reply", bytes.NewReader([]byte(`{`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "o1", Role: models.RoleOfficer})

	handler.Reply(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
