package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"returns-backend/internal/domains/returns/model"
	"returns-backend/internal/domains/returns/repository"
	"returns-backend/internal/domains/returns/service"
	"returns-backend/internal/shared/middleware"
	"returns-backend/internal/shared/response"
)

// =====================================================
// RETURN HANDLER
// =====================================================
type ReturnHandler struct {
	returnService service.ReturnService
	otpService    service.OtpService
	returnRepo    repository.ReturnRepository
}

// NewReturnHandler creates a new return handler
func NewReturnHandler(
	returnService service.ReturnService,
	otpService service.OtpService,
	returnRepo repository.ReturnRepository,
) *ReturnHandler {
	return &ReturnHandler{
		returnService: returnService,
		otpService:    otpService,
		returnRepo:    returnRepo,
	}
}

// =====================================================
// ROUTES REGISTRATION
// =====================================================

// RegisterRoutes registers all return routes
func (h *ReturnHandler) RegisterRoutes(router *gin.RouterGroup) {
	returns := router.Group("/returns")
	{
		returns.POST("", h.CreateReturn)            // POST /v1/returns
		returns.GET("", h.ListReturns)              // GET /v1/returns?page=1&limit=20&status=requested
		returns.GET("/:id", h.GetReturn)            // GET /v1/returns/:id
		returns.POST("/:id/status", h.UpdateStatus) // POST /v1/returns/:id/status
		returns.POST("/:id/otp", h.GenerateOtp)     // POST /v1/returns/:id/otp
		returns.POST("/:id/otp/resend", h.ResendOtp)
		returns.POST("/:id/otp/verify", h.VerifyOtp)
		returns.POST("/:id/refund", h.SubmitRefund) // POST /v1/returns/:id/refund
	}

	admin := router.Group("/admin/returns")
	admin.Use(middleware.RequireRoles(model.RoleStaffAdmin, model.RoleOrderManager))
	{
		admin.GET("", h.ListAllReturns)       // GET /v1/admin/returns
		admin.GET("/export", h.ExportReturns) // GET /v1/admin/returns/export
	}
}

// =====================================================
// CREATE RETURN
// =====================================================

// CreateReturn opens a return request against a delivered order
func (h *ReturnHandler) CreateReturn(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	var req model.CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.returnService.CreateReturn(c.Request.Context(), actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// =====================================================
// READS
// =====================================================

// GetReturn returns one request with its lines and audit timeline
func (h *ReturnHandler) GetReturn(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	returnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Return ID must be a valid UUID")
		return
	}

	result, err := h.returnService.GetReturn(c.Request.Context(), actor, returnID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ListReturns lists the caller's returns; staff see all
func (h *ReturnHandler) ListReturns(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	var req model.ListReturnsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	results, total, err := h.returnService.ListReturns(c.Request.Context(), actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, results, &response.Meta{
		Page:  req.Page,
		Limit: req.Limit,
		Total: total,
	})
}

// =====================================================
// STATUS TRANSITION
// =====================================================

// UpdateStatus moves the return through the lifecycle
func (h *ReturnHandler) UpdateStatus(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	returnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Return ID must be a valid UUID")
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.returnService.Transition(c.Request.Context(), returnID, actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// =====================================================
// PICKUP OTP
// =====================================================

// GenerateOtp issues a fresh pickup code and queues its delivery
func (h *ReturnHandler) GenerateOtp(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	returnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Return ID must be a valid UUID")
		return
	}

	result, err := h.otpService.Generate(c.Request.Context(), returnID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ResendOtp reissues the code once the cooldown window has passed
func (h *ReturnHandler) ResendOtp(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	returnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Return ID must be a valid UUID")
		return
	}

	result, err := h.otpService.Resend(c.Request.Context(), returnID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// VerifyOtp checks the submitted digits against the stored hash
func (h *ReturnHandler) VerifyOtp(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	returnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Return ID must be a valid UUID")
		return
	}

	var req model.VerifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Validation failed", err.Error())
		return
	}

	if err := h.otpService.Verify(c.Request.Context(), returnID, actor, req.Code); err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"verified": true})
}

// =====================================================
// PARTIAL REFUND
// =====================================================

// SubmitRefund settles chosen lines and closes the return as partially refunded
func (h *ReturnHandler) SubmitRefund(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	returnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Return ID must be a valid UUID")
		return
	}

	var req model.SubmitRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.returnService.SubmitRefund(c.Request.Context(), returnID, actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// =====================================================
// ADMIN
// =====================================================

// ListAllReturns lists every return with filters, regardless of customer
func (h *ReturnHandler) ListAllReturns(c *gin.Context) {
	var req model.ListReturnsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Validation failed", err.Error())
		return
	}

	results, total, err := h.returnRepo.List(c.Request.Context(), repository.ListFilter{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: (req.Page - 1) * req.Limit,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, results, &response.Meta{
		Page:  req.Page,
		Limit: req.Limit,
		Total: total,
	})
}

// ExportReturns streams the filtered returns as an xlsx workbook
func (h *ReturnHandler) ExportReturns(c *gin.Context) {
	var req model.ListReturnsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	req.Limit = 1000
	req.Page = 1
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Validation failed", err.Error())
		return
	}

	results, _, err := h.returnRepo.List(c.Request.Context(), repository.ListFilter{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: 0,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	f, err := buildReturnsWorkbook(results)
	if err != nil {
		response.InternalServerError(c, "Failed to build export")
		return
	}

	filename := fmt.Sprintf("returns-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		response.InternalServerError(c, "Failed to write export")
	}
}

// buildReturnsWorkbook lays out one row per return
func buildReturnsWorkbook(results []model.ReturnRequest) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Returns"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"Return Number", "Order ID", "Customer ID", "Status", "Refunded Amount", "Items", "Created At", "Updated At"}
	for i, head := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, head); err != nil {
			return nil, err
		}
	}

	for row, r := range results {
		values := []interface{}{
			r.ReturnNumber,
			r.OrderID.String(),
			r.CustomerID.String(),
			r.Status.String(),
			r.RefundedAmount.StringFixed(2),
			len(r.Items),
			r.CreatedAt.Format(time.RFC3339),
			r.UpdatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

// =====================================================
// ERROR HANDLING
// =====================================================

// handleServiceError maps domain failures onto HTTP statuses
func (h *ReturnHandler) handleServiceError(c *gin.Context, err error) {
	var returnErr *model.ReturnError
	if errors.As(err, &returnErr) {
		statusCode := getHTTPStatusFromErrorCode(returnErr.Code)
		response.ErrorResponse(c, statusCode, returnErr.Code, returnErr.Message)
		return
	}

	if errors.Is(err, model.ErrReturnNotFound) {
		response.ErrorResponse(c, http.StatusNotFound, model.ErrCodeReturnNotFound, "Return request not found")
		return
	}

	if errors.Is(err, model.ErrConflictingUpdate) {
		response.ErrorResponse(c, http.StatusConflict, model.ErrCodeConflictingUpdate,
			"Concurrent modification detected. Please refresh and try again.")
		return
	}

	response.InternalServerError(c, "Internal server error")
}

// getHTTPStatusFromErrorCode maps business error codes to HTTP status codes
func getHTTPStatusFromErrorCode(code string) int {
	statusMap := map[string]int{
		model.ErrCodeReturnNotFound:         http.StatusNotFound,
		model.ErrCodeIllegalTransition:      http.StatusConflict,
		model.ErrCodeForbidden:              http.StatusForbidden,
		model.ErrCodePreconditionFailed:     http.StatusUnprocessableEntity,
		model.ErrCodeConflictingUpdate:      http.StatusConflict,
		model.ErrCodeInvalidCode:            http.StatusBadRequest,
		model.ErrCodeCodeExpired:            http.StatusBadRequest,
		model.ErrCodeCooldownActive:         http.StatusTooManyRequests,
		model.ErrCodeOtpNotEligible:         http.StatusUnprocessableEntity,
		model.ErrCodeMissingTaxInfo:         http.StatusUnprocessableEntity,
		model.ErrCodeAmountExceedsRefund:    http.StatusUnprocessableEntity,
		model.ErrCodeInvalidAmount:          http.StatusUnprocessableEntity,
		model.ErrCodeInvalidReturn:          http.StatusUnprocessableEntity,
		model.ErrCodeOrderNotReturnable:     http.StatusUnprocessableEntity,
		model.ErrCodeItemAlreadyRefunded:    http.StatusUnprocessableEntity,
		model.ErrCodeQuantityExceedsOrdered: http.StatusUnprocessableEntity,
	}

	if status, exists := statusMap[code]; exists {
		return status
	}
	return http.StatusInternalServerError
}
