package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"pettycash/internal/middleware"
	"pettycash/internal/model"
	"pettycash/internal/service"

	"github.com/gin-gonic/gin"
)

// SignatureFiles resolves signature references to files
type SignatureFiles interface {
	Path(ref string) (string, error)
	Exists(ref string) bool
}

// ExpenseHandler serves the expense pages, decisions and exports
type ExpenseHandler struct {
	service    service.ExpenseService
	signatures SignatureFiles
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(s service.ExpenseService, signatures SignatureFiles) *ExpenseHandler {
	return &ExpenseHandler{service: s, signatures: signatures}
}

func parseExpenseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		notFound(c)
		return 0, false
	}
	return id, true
}

func (h *ExpenseHandler) Dashboard(c *gin.Context) {
	user := middleware.CurrentUser(c)
	expenses, err := h.service.Dashboard(c.Request.Context(), user)
	if err != nil {
		internalError(c, err)
		return
	}
	render(c, http.StatusOK, "dashboard", gin.H{"Title": "Dashboard", "Expenses": expenses})
}

func (h *ExpenseHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	status := c.DefaultQuery("status", "all")

	expenses, err := h.service.List(c.Request.Context(), user, status)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			addFlash(c, FlashWarning, validationMessage(verr))
			redirect(c, "/expenses")
			return
		}
		internalError(c, err)
		return
	}
	render(c, http.StatusOK, "expenses_list", gin.H{"Title": "Expenses", "Expenses": expenses, "Status": status})
}

func (h *ExpenseHandler) CreatePage(c *gin.Context) {
	render(c, http.StatusOK, "expenses_create", gin.H{
		"Title":  "New expense",
		"Form":   model.CreateExpenseRequest{},
		"Errors": map[string]string{},
	})
}

func (h *ExpenseHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req model.CreateExpenseRequest
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			renderError(c, http.StatusRequestEntityTooLarge, "The submitted form is too large.")
			return
		}
		internalError(c, fmt.Errorf("failed to read expense form: %w", err))
		return
	}

	expense, err := h.service.Create(c.Request.Context(), user, req)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.Is(err, service.ErrForbiddenRole):
			category, message := forbiddenRoleMessage(service.ActionCreate)
			addFlash(c, category, message)
			redirect(c, "/dashboard")
		case errors.As(err, &verr):
			addFlash(c, FlashDanger, "All fields and signatures are required")
			// Signatures are not echoed back; the pads start empty again.
			req.RecipientSignature, req.EmployeeSignature = "", ""
			render(c, http.StatusOK, "expenses_create", gin.H{
				"Title":  "New expense",
				"Form":   req,
				"Errors": fieldErrors(verr),
			})
		default:
			internalError(c, err)
		}
		return
	}

	addFlash(c, FlashSuccess, "Expense submitted for approval!")
	redirect(c, expenseURL(expense.ID))
}

func (h *ExpenseHandler) Detail(c *gin.Context) {
	id, ok := parseExpenseID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	expense, err := h.service.View(c.Request.Context(), user, id)
	if err != nil {
		handleViewError(c, err, "You do not have permission to view this expense")
		return
	}
	render(c, http.StatusOK, "expenses_detail", gin.H{
		"Title":     fmt.Sprintf("Expense #%d", expense.ID),
		"Expense":   expense,
		"CanDecide": user.IsSenior() && expense.IsPending(),
	})
}

func (h *ExpenseHandler) Approve(c *gin.Context) {
	id, ok := parseExpenseID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	if _, err := h.service.Approve(c.Request.Context(), user, id, c.PostForm("senior_signature")); err != nil {
		handleDecisionError(c, err, service.ActionApprove, id)
		return
	}
	addFlash(c, FlashSuccess, fmt.Sprintf("Expense #%d approved successfully!", id))
	redirect(c, expenseURL(id))
}

func (h *ExpenseHandler) Reject(c *gin.Context) {
	id, ok := parseExpenseID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	if _, err := h.service.Reject(c.Request.Context(), user, id, c.PostForm("rejection_reason")); err != nil {
		handleDecisionError(c, err, service.ActionReject, id)
		return
	}
	addFlash(c, FlashWarning, fmt.Sprintf("Expense #%d rejected", id))
	redirect(c, expenseURL(id))
}

// Signature serves one of the stored signature images to users allowed to view the expense
func (h *ExpenseHandler) Signature(c *gin.Context) {
	id, ok := parseExpenseID(c)
	if !ok {
		return
	}
	expense, err := h.service.View(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		handleViewError(c, err, "You do not have permission to view this expense")
		return
	}

	var ref *string
	switch c.Param("slot") {
	case "recipient":
		ref = expense.RecipientSignature
	case "employee":
		ref = expense.EmployeeSignature
	case "senior":
		ref = expense.SeniorSignature
	}
	if ref == nil || !h.signatures.Exists(*ref) {
		notFound(c)
		return
	}
	path, err := h.signatures.Path(*ref)
	if err != nil {
		notFound(c)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.File(path)
}

// RegisterExpenseRoutes registers the authenticated pages
func (h *ExpenseHandler) RegisterExpenseRoutes(r gin.IRouter, authMW gin.HandlerFunc) {
	authed := r.Group("/")
	authed.Use(authMW)
	{
		authed.GET("/dashboard", h.Dashboard)
		authed.GET("/expenses", h.List)

		employeeOnly := middleware.RoleMiddleware(func(u *model.User) error {
			return service.Authorize(u, service.ActionCreate)
		}, denyRole(service.ActionCreate))
		authed.GET("/expenses/create", employeeOnly, h.CreatePage)
		authed.POST("/expenses/create", h.Create)

		authed.GET("/expenses/:id", h.Detail)
		authed.POST("/expenses/:id/approve", h.Approve)
		authed.POST("/expenses/:id/reject", h.Reject)
		authed.GET("/expenses/:id/signatures/:slot", h.Signature)

		authed.GET("/export/csv", h.ExportCSV)
		authed.GET("/export/pdf/:id", h.ExportPDF)
	}
}
