package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"pettycash/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// maxAmount fits NUMERIC(12,2)
var maxAmount = decimal.RequireFromString("9999999999.99")

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := strings.Split(fld.Tag.Get("form"), ",")[0]; name != "" && name != "-" {
			return name
		}
		return strings.ToLower(fld.Name)
	})
	return v
}

// validateStruct runs the struct tags and converts failures into a ValidationError.
func validateStruct(v *validator.Validate, s any) *ValidationError {
	verr := &ValidationError{}
	err := v.Struct(s)
	if err == nil {
		return verr
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", label)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", label)
}

// parseAmount accepts a positive decimal with at most two fractional digits.
func parseAmount(raw string) (decimal.Decimal, string) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, "amount must be a number"
	}
	if !amount.IsPositive() {
		return decimal.Zero, "amount must be greater than zero"
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return decimal.Zero, "amount must have at most 2 decimal places"
	}
	if amount.GreaterThan(maxAmount) {
		return decimal.Zero, "amount is too large"
	}
	return amount.Round(2), ""
}

func normalizeCreateRequest(req model.CreateExpenseRequest) model.CreateExpenseRequest {
	req.Purpose = strings.TrimSpace(req.Purpose)
	req.RecipientName = strings.TrimSpace(req.RecipientName)
	req.Amount = strings.TrimSpace(req.Amount)
	// a blank pad must fail as a missing field, not as an undecodable image
	req.RecipientSignature = strings.TrimSpace(req.RecipientSignature)
	req.EmployeeSignature = strings.TrimSpace(req.EmployeeSignature)
	return req
}

// amountField parses raw into verr unless the amount already failed a tag check.
func amountField(raw string, verr *ValidationError) decimal.Decimal {
	if verr.Has("amount") {
		return decimal.Zero
	}
	amount, msg := parseAmount(raw)
	if msg != "" {
		verr.Add("amount", msg)
	}
	return amount
}
