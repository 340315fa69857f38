package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"pettycash/internal/export"
	"pettycash/internal/middleware"

	"github.com/gin-gonic/gin"
)

// ExportCSV downloads the caller's export set: approved expenses for seniors, own expenses for employees.
func (h *ExpenseHandler) ExportCSV(c *gin.Context) {
	expenses, err := h.service.ExportList(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		internalError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, expenses); err != nil {
		internalError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename=expenses.csv")
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// ExportPDF downloads the voucher of a single expense
func (h *ExpenseHandler) ExportPDF(c *gin.Context) {
	id, ok := parseExpenseID(c)
	if !ok {
		return
	}
	expense, err := h.service.View(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		handleViewError(c, err, "You do not have permission to export this expense")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteVoucher(&buf, expense, h.signatures); err != nil {
		internalError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=expense_%d.pdf", expense.ID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
