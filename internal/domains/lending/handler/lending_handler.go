package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"library-backend/internal/domains/lending/model"
	"library-backend/internal/domains/lending/service"
	"library-backend/internal/shared/middleware"
	"library-backend/internal/shared/response"
	"library-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler - HTTP handler for the circulation desk
type Handler struct {
	lending   service.LendingService
	fines     service.FineService
	dashboard service.DashboardService
	now       service.Clock
}

// NewHandler - Constructor with DI
func NewHandler(lending service.LendingService, fines service.FineService, dashboard service.DashboardService, now service.Clock) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		lending:   lending,
		fines:     fines,
		dashboard: dashboard,
		now:       now,
	}
}

// CheckEligibility - GET /eligibility?reader_id=&book_id=
func (h *Handler) CheckEligibility(c *gin.Context) {
	var q model.EligibilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := q.Validate(); err != nil {
		h.handleError(c, err)
		return
	}

	decision, err := h.lending.CanIssue(c.Request.Context(), uuid.MustParse(q.ReaderID), uuid.MustParse(q.BookID))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, decision)
}

// IssueLoan - POST /loans
func (h *Handler) IssueLoan(c *gin.Context) {
	var req model.IssueLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		h.handleError(c, err)
		return
	}

	cmd, err := req.ToCommand(middleware.UserID(c), h.today())
	if err != nil {
		h.handleError(c, err)
		return
	}

	loan, err := h.lending.IssueLoan(c.Request.Context(), cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, loan.ToResponse(h.now()))
}

// ListLoans - GET /loans
// Query params: status, reader_id, book_id, overdue, page, limit
func (h *Handler) ListLoans(c *gin.Context) {
	var req model.ListLoansRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		h.handleError(c, err)
		return
	}

	filter := req.ToFilter(h.today())
	result, err := h.lending.ListLoans(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, result.Items, pageMeta(filter.Limit, filter.Offset, result.Total))
}

// ListActiveLoans - GET /loans/active
func (h *Handler) ListActiveLoans(c *gin.Context) {
	result, err := h.lending.ListActiveLoans(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, result.Items, &response.Meta{Total: result.Total})
}

// GetLoan - GET /loans/:id
func (h *Handler) GetLoan(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	loan, err := h.lending.GetLoan(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, loan)
}

// ReturnLoan - POST /loans/:id/return
func (h *Handler) ReturnLoan(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req model.ReturnLoanRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	if err := req.Validate(); err != nil {
		h.handleError(c, err)
		return
	}

	cmd, err := req.ToCommand(id, middleware.UserID(c), h.today())
	if err != nil {
		h.handleError(c, err)
		return
	}

	result, err := h.lending.ReturnLoan(c.Request.Context(), cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// ListFines - GET /fines
// Query params: status, reader_id, page, limit
func (h *Handler) ListFines(c *gin.Context) {
	req, ok := h.bindFines(c)
	if !ok {
		return
	}

	filter := req.ToFilter()
	result, err := h.fines.ListFines(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, result.Items, pageMeta(filter.Limit, filter.Offset, result.Total))
}

// ExportFines - GET /fines/export
// Same filters as ListFines, without paging
func (h *Handler) ExportFines(c *gin.Context) {
	req, ok := h.bindFines(c)
	if !ok {
		return
	}

	filter := req.ToFilter()
	filter.Limit, filter.Offset = 0, 0

	data, err := h.fines.ExportFines(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	filename := fmt.Sprintf("fines-%s.xlsx", model.FormatDate(h.now()))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// GetFine - GET /fines/:id
func (h *Handler) GetFine(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	fine, err := h.fines.GetFine(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, fine)
}

// PayFine - POST /fines/:id/pay
func (h *Handler) PayFine(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	fine, err := h.fines.Pay(c.Request.Context(), model.PayFineCommand{
		FineID:      id,
		CollectedBy: middleware.UserID(c),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, fine)
}

// GetReaderBalance - GET /readers/:id/balance
func (h *Handler) GetReaderBalance(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	balance, err := h.fines.OutstandingBalance(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, model.BalanceResponse{ReaderID: id, Balance: balance})
}

// ListAvailableBooks - GET /books/available
func (h *Handler) ListAvailableBooks(c *gin.Context) {
	page := parsePositive(c.Query("page"), 1)
	limit := parsePositive(c.Query("limit"), 20)
	if limit > 100 {
		limit = 100
	}

	books, total, err := h.lending.ListAvailableBooks(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, books, &response.Meta{Page: page, Limit: limit, Total: total})
}

// GetDashboardStats - GET /dashboard/stats
func (h *Handler) GetDashboardStats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// GetOverdueSummary - GET /dashboard/overdue
func (h *Handler) GetOverdueSummary(c *gin.Context) {
	summary, err := h.dashboard.OverdueSummary(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// ===================================
// HELPERS
// ===================================

func (h *Handler) today() time.Time {
	return model.NormalizeDate(h.now())
}

func (h *Handler) bindFines(c *gin.Context) (model.ListFinesRequest, bool) {
	var req model.ListFinesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return req, false
	}
	if err := req.Validate(); err != nil {
		h.handleError(c, err)
		return req, false
	}
	return req, true
}

func (h *Handler) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, model.CodeInvalidInput, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// handleError maps engine errors onto the response envelope
func (h *Handler) handleError(c *gin.Context, err error) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		response.ErrorWithDetails(c, http.StatusBadRequest, model.CodeInvalidInput, "validation failed", verrs)
		return
	}

	code := model.ErrorCode(err)
	switch {
	case model.IsValidationError(err):
		response.ErrorResponse(c, http.StatusBadRequest, code, err.Error())
	case model.IsEligibilityError(err):
		response.ErrorResponse(c, http.StatusUnprocessableEntity, code, err.Error())
	case model.IsNotFoundError(err):
		response.ErrorResponse(c, http.StatusNotFound, code, err.Error())
	case model.IsConflictError(err), model.IsAlreadyDoneError(err):
		response.ErrorResponse(c, http.StatusConflict, code, err.Error())
	default:
		logger.Error(fmt.Sprintf("%s %s failed", c.Request.Method, c.FullPath()), err)
		response.InternalServerError(c, "internal server error")
	}
}

func pageMeta(limit, offset, total int) *response.Meta {
	page := 1
	if limit > 0 {
		page = offset/limit + 1
	}
	return &response.Meta{Page: page, Limit: limit, Total: total}
}

func parsePositive(s string, fallback int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return fallback
}
