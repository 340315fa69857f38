package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"pettycash/internal/middleware"
	"pettycash/internal/service"

	"github.com/gin-gonic/gin"
)

// render executes a page template with the current user and pending flashes
func render(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["User"] = middleware.CurrentUser(c)
	data["Flashes"] = takeFlashes(c)
	c.HTML(status, page, data)
}

func renderError(c *gin.Context, status int, message string) {
	render(c, status, "error", gin.H{
		"Title":   http.StatusText(status),
		"Code":    status,
		"Message": message,
	})
	c.Abort()
}

func notFound(c *gin.Context) {
	renderError(c, http.StatusNotFound, "The page or expense you requested does not exist.")
}

// internalError logs err and shows the generic error page
func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	slog.ErrorContext(c.Request.Context(), "request failed",
		"method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	renderError(c, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

func expenseURL(id int64) string {
	return fmt.Sprintf("/expenses/%d", id)
}

// forbiddenRoleMessage returns the flash shown when a role may not perform action.
func forbiddenRoleMessage(action service.Action) (string, string) {
	switch action {
	case service.ActionCreate:
		return FlashWarning, "Seniors cannot create expenses"
	case service.ActionApprove:
		return FlashDanger, "Only seniors can approve expenses"
	case service.ActionReject:
		return FlashDanger, "Only seniors can reject expenses"
	}
	return FlashDanger, "You are not allowed to do that"
}

// denyRole is used by the role middleware on pages that only render forms.
func denyRole(action service.Action) func(*gin.Context, error) {
	return func(c *gin.Context, _ error) {
		category, message := forbiddenRoleMessage(action)
		addFlash(c, category, message)
		redirect(c, "/dashboard")
	}
}

// handleDecisionError maps Approve and Reject failures to flashes and redirects.
func handleDecisionError(c *gin.Context, err error, action service.Action, id int64) {
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrForbiddenRole):
		category, message := forbiddenRoleMessage(action)
		addFlash(c, category, message)
		redirect(c, "/dashboard")
	case errors.Is(err, service.ErrExpenseNotFound):
		notFound(c)
	case errors.Is(err, service.ErrInvalidState):
		addFlash(c, FlashWarning, fmt.Sprintf("Only pending expenses can be %sd", action))
		redirect(c, expenseURL(id))
	case errors.As(err, &verr):
		addFlash(c, FlashDanger, validationMessage(verr))
		redirect(c, expenseURL(id))
	default:
		internalError(c, err)
	}
}

// handleViewError maps View failures; forbiddenMessage differs between the page and the PDF.
func handleViewError(c *gin.Context, err error, forbiddenMessage string) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		addFlash(c, FlashDanger, forbiddenMessage)
		redirect(c, "/dashboard")
	case errors.Is(err, service.ErrExpenseNotFound):
		notFound(c)
	default:
		internalError(c, err)
	}
}

func validationMessage(verr *service.ValidationError) string {
	msgs := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		msgs = append(msgs, sentence(f.Message))
	}
	return strings.Join(msgs, ". ")
}

func sentence(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func fieldErrors(verr *service.ValidationError) map[string]string {
	out := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		if _, exists := out[f.Field]; !exists {
			out[f.Field] = sentence(f.Message)
		}
	}
	return out
}
