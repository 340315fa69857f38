package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pettycash/internal/middleware"
	"pettycash/internal/model"
	"pettycash/internal/service"
	"pettycash/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	employee = &model.User{ID: 1, FullName: "John Employee", Email: "employee@example.com", Role: model.RoleEmployee}
	senior   = &model.User{ID: 2, FullName: "Jane Senior", Email: "senior@example.com", Role: model.RoleSenior}
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testAuth stands in for the session middleware: the X-Test-User header picks the user.
func testAuth(c *gin.Context) {
	switch c.GetHeader("X-Test-User") {
	case "employee":
		c.Set(middleware.AuthUserKey, employee)
	case "senior":
		c.Set(middleware.AuthUserKey, senior)
	default:
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}
	c.Next()
}

func newTestRouter(t *testing.T, expenses service.ExpenseService, auth service.AuthService, files SignatureFiles) *gin.Engine {
	t.Helper()
	tmpl, err := web.ParseTemplates()
	require.NoError(t, err)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	if auth != nil {
		NewAuthHandler(auth, SessionCookie{Name: "session", TTL: time.Hour}).RegisterAuthRoutes(r, testAuth)
	}
	if expenses != nil {
		NewExpenseHandler(expenses, files).RegisterExpenseRoutes(r, testAuth)
	}
	return r
}

func do(r *gin.Engine, method, target, user string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// flashesFrom decodes the last flash cookie set on the response.
func flashesFrom(t *testing.T, w *httptest.ResponseRecorder) []Flash {
	t.Helper()
	var flashes []Flash
	for _, ck := range w.Result().Cookies() {
		if ck.Name != flashCookie {
			continue
		}
		flashes = nil
		if ck.Value == "" {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(ck.Value)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &flashes))
	}
	return flashes
}

func sampleExpense(status model.Status) *model.Expense {
	return &model.Expense{
		ID:            9,
		Purpose:       "Taxi",
		Amount:        decimal.RequireFromString("45.50"),
		RecipientName: "Jane Doe",
		Status:        status,
		CreatorID:     employee.ID,
		CreatorName:   employee.FullName,
		CreatedAt:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestDashboard_RendersForEmployee(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("Dashboard", mock.Anything, employee).Return([]model.Expense{*sampleExpense(model.StatusPending)}, nil)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodGet, "/dashboard", "employee", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "My expenses")
	assert.Contains(t, w.Body.String(), "$45.50")
	svc.AssertExpectations(t)
}

func TestDashboard_RequiresLogin(t *testing.T) {
	r := newTestRouter(t, new(mockExpenseService), nil, nil)

	w := do(r, http.MethodGet, "/dashboard", "", nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestList_StatusFilter(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("List", mock.Anything, senior, "approved").Return([]model.Expense{}, nil)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodGet, "/expenses?status=approved", "senior", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No expenses found.")
	svc.AssertExpectations(t)
}

func TestList_DefaultsToAll(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("List", mock.Anything, employee, "all").Return([]model.Expense{}, nil)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodGet, "/expenses", "employee", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestList_UnknownStatus(t *testing.T) {
	svc := new(mockExpenseService)
	verr := &service.ValidationError{}
	verr.Add("status", `unknown status filter "archived"`)
	svc.On("List", mock.Anything, senior, "archived").Return(nil, verr)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodGet, "/expenses?status=archived", "senior", nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/expenses", w.Header().Get("Location"))
	require.Len(t, flashesFrom(t, w), 1)
	assert.Equal(t, FlashWarning, flashesFrom(t, w)[0].Category)
}

func TestCreatePage_SeniorRedirected(t *testing.T) {
	r := newTestRouter(t, new(mockExpenseService), nil, nil)

	w := do(r, http.MethodGet, "/expenses/create", "senior", nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	assert.Equal(t, []Flash{{Category: FlashWarning, Message: "Seniors cannot create expenses"}}, flashesFrom(t, w))
}

func TestCreatePage_Employee(t *testing.T) {
	r := newTestRouter(t, new(mockExpenseService), nil, nil)

	w := do(r, http.MethodGet, "/expenses/create", "employee", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="recipient_signature"`)
	assert.Contains(t, w.Body.String(), `name="employee_signature"`)
}

func createForm() url.Values {
	return url.Values{
		"purpose":             {"Taxi"},
		"amount":              {"45.50"},
		"recipient_name":      {"Jane Doe"},
		"recipient_signature": {"data:image/png;base64,AAAA"},
		"employee_signature":  {"data:image/png;base64,BBBB"},
	}
}

func TestCreate_Success(t *testing.T) {
	svc := new(mockExpenseService)
	expected := model.CreateExpenseRequest{
		Purpose: "Taxi", Amount: "45.50", RecipientName: "Jane Doe",
		RecipientSignature: "data:image/png;base64,AAAA", EmployeeSignature: "data:image/png;base64,BBBB",
	}
	svc.On("Create", mock.Anything, employee, expected).Return(sampleExpense(model.StatusPending), nil)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodPost, "/expenses/create", "employee", createForm())

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/expenses/9", w.Header().Get("Location"))
	assert.Equal(t, []Flash{{Category: FlashSuccess, Message: "Expense submitted for approval!"}}, flashesFrom(t, w))
	svc.AssertExpectations(t)
}

func TestCreate_ValidationRerendersForm(t *testing.T) {
	svc := new(mockExpenseService)
	verr := &service.ValidationError{}
	verr.Add("amount", "amount must be greater than zero")
	svc.On("Create", mock.Anything, employee, mock.Anything).Return(nil, verr)
	r := newTestRouter(t, svc, nil, nil)

	form := createForm()
	form.Set("amount", "0")
	w := do(r, http.MethodPost, "/expenses/create", "employee", form)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "All fields and signatures are required")
	assert.Contains(t, body, "Amount must be greater than zero")
	assert.Contains(t, body, `value="Jane Doe"`)
	assert.NotContains(t, body, "base64,AAAA")
}

func TestCreate_ForbiddenRole(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("Create", mock.Anything, senior, mock.Anything).Return(nil, fmt.Errorf("%w: nope", service.ErrForbiddenRole))
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodPost, "/expenses/create", "senior", createForm())

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestCreate_InternalError(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("Create", mock.Anything, employee, mock.Anything).Return(nil, errors.New("disk full"))
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodPost, "/expenses/create", "employee", createForm())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk full")
}

func TestDetail(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("View", mock.Anything, senior, int64(9)).Return(sampleExpense(model.StatusPending), nil)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodGet, "/expenses/9", "senior", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Expense #9")
	assert.Contains(t, w.Body.String(), `action="/expenses/9/approve"`)
}

func TestDetail_EmployeeSeesNoDecisionForms(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("View", mock.Anything, employee, int64(9)).Return(sampleExpense(model.StatusPending), nil)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodGet, "/expenses/9", "employee", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "/approve")
}

func TestDetail_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     int
		location string
	}{
		{"forbidden", service.ErrForbidden, http.StatusFound, "/dashboard"},
		{"not found", service.ErrExpenseNotFound, http.StatusNotFound, ""},
		{"db error", errors.New("connection refused"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockExpenseService)
			svc.On("View", mock.Anything, employee, int64(9)).Return(nil, tt.err)
			r := newTestRouter(t, svc, nil, nil)

			w := do(r, http.MethodGet, "/expenses/9", "employee", nil)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
		})
	}
}

func TestDetail_BadID(t *testing.T) {
	r := newTestRouter(t, new(mockExpenseService), nil, nil)

	w := do(r, http.MethodGet, "/expenses/abc", "employee", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApprove(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("Approve", mock.Anything, senior, int64(9), "sig").Return(sampleExpense(model.StatusApproved), nil)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodPost, "/expenses/9/approve", "senior", url.Values{"senior_signature": {"sig"}})

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/expenses/9", w.Header().Get("Location"))
	assert.Equal(t, []Flash{{Category: FlashSuccess, Message: "Expense #9 approved successfully!"}}, flashesFrom(t, w))
}

func TestApprove_ErrorMapping(t *testing.T) {
	verr := &service.ValidationError{}
	verr.Add("senior_signature", "senior signature is required")

	tests := []struct {
		name     string
		user     string
		err      error
		code     int
		location string
		flash    Flash
	}{
		{"employee", "employee", fmt.Errorf("%w: x", service.ErrForbiddenRole), http.StatusFound, "/dashboard",
			Flash{FlashDanger, "Only seniors can approve expenses"}},
		{"not pending", "senior", fmt.Errorf("%w: x", service.ErrInvalidState), http.StatusFound, "/expenses/9",
			Flash{FlashWarning, "Only pending expenses can be approved"}},
		{"missing signature", "senior", verr, http.StatusFound, "/expenses/9",
			Flash{FlashDanger, "Senior signature is required"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockExpenseService)
			svc.On("Approve", mock.Anything, mock.Anything, int64(9), "").Return(nil, tt.err)
			r := newTestRouter(t, svc, nil, nil)

			w := do(r, http.MethodPost, "/expenses/9/approve", tt.user, url.Values{})

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
			assert.Equal(t, []Flash{tt.flash}, flashesFrom(t, w))
		})
	}
}

func TestApprove_NotFound(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("Approve", mock.Anything, senior, int64(9), "sig").Return(nil, service.ErrExpenseNotFound)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodPost, "/expenses/9/approve", "senior", url.Values{"senior_signature": {"sig"}})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReject(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("Reject", mock.Anything, senior, int64(9), "No receipt").Return(sampleExpense(model.StatusRejected), nil)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodPost, "/expenses/9/reject", "senior", url.Values{"rejection_reason": {"No receipt"}})

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, []Flash{{Category: FlashWarning, Message: "Expense #9 rejected"}}, flashesFrom(t, w))
}

func TestReject_InvalidState(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("Reject", mock.Anything, senior, int64(9), "late").Return(nil, service.ErrInvalidState)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodPost, "/expenses/9/reject", "senior", url.Values{"rejection_reason": {"late"}})

	assert.Equal(t, "/expenses/9", w.Header().Get("Location"))
	assert.Equal(t, []Flash{{Category: FlashWarning, Message: "Only pending expenses can be rejected"}}, flashesFrom(t, w))
}

func TestSignature(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipient_a.png"), []byte("\x89PNG fake"), 0o644))
	files := &fakeSignatureFiles{dir: dir, files: map[string]bool{"recipient_a.png": true}}

	e := sampleExpense(model.StatusPending)
	ref := "recipient_a.png"
	e.RecipientSignature = &ref
	svc := new(mockExpenseService)
	svc.On("View", mock.Anything, employee, int64(9)).Return(e, nil)
	r := newTestRouter(t, svc, nil, files)

	w := do(r, http.MethodGet, "/expenses/9/signatures/recipient", "employee", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "\x89PNG fake", w.Body.String())

	w = do(r, http.MethodGet, "/expenses/9/signatures/senior", "employee", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportCSV(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("ExportList", mock.Anything, senior).Return([]model.Expense{*sampleExpense(model.StatusApproved)}, nil)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodGet, "/export/csv", "senior", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=expenses.csv", w.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "APPROVED")
}

func TestExportPDF(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("View", mock.Anything, employee, int64(9)).Return(sampleExpense(model.StatusPending), nil)
	r := newTestRouter(t, svc, nil, &fakeSignatureFiles{})

	w := do(r, http.MethodGet, "/export/pdf/9", "employee", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=expense_9.pdf", w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))
}

func TestExportPDF_Forbidden(t *testing.T) {
	svc := new(mockExpenseService)
	svc.On("View", mock.Anything, employee, int64(9)).Return(nil, service.ErrForbidden)
	r := newTestRouter(t, svc, nil, nil)

	w := do(r, http.MethodGet, "/export/pdf/9", "employee", nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, []Flash{{Category: FlashDanger, Message: "You do not have permission to export this expense"}}, flashesFrom(t, w))
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/ok", Health(fakePinger{}))
	r.GET("/down", Health(fakePinger{err: errors.New("down")}))

	w := do(r, http.MethodGet, "/ok", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","db":"healthy"}`, w.Body.String())

	w = do(r, http.MethodGet, "/down", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreate_BodyTooLarge(t *testing.T) {
	tmpl, err := web.ParseTemplates()
	require.NoError(t, err)
	svc := new(mockExpenseService)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(middleware.MaxBodyBytes(256))
	NewExpenseHandler(svc, nil).RegisterExpenseRoutes(r, testAuth)

	form := createForm()
	form.Set("recipient_signature", "data:image/png;base64,"+strings.Repeat("A", 1024))

	t.Run("declared length", func(t *testing.T) {
		w := do(r, http.MethodPost, "/expenses/create", "employee", form)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("unknown length", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/expenses/create", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Test-User", "employee")
		req.ContentLength = -1
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "The submitted form is too large.")
	})

	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}
