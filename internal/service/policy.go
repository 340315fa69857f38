package service

import (
	"fmt"

	"pettycash/internal/model"
)

// Action is a role-gated workflow operation
type Action string

const (
	ActionCreate  Action = "create"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

var actionRoles = map[Action]model.Role{
	ActionCreate:  model.RoleEmployee,
	ActionApprove: model.RoleSenior,
	ActionReject:  model.RoleSenior,
}

// Authorize checks that actor's role may perform action.
func Authorize(actor *model.User, action Action) error {
	role, ok := actionRoles[action]
	if !ok || actor == nil || actor.Role != role {
		return fmt.Errorf("%w: only %s users can %s expenses", ErrForbiddenRole, role, action)
	}
	return nil
}

// CanView allows seniors and the expense creator.
func CanView(actor *model.User, e *model.Expense) error {
	if actor.IsSenior() || (actor != nil && e != nil && e.CreatorID == actor.ID) {
		return nil
	}
	return ErrForbidden
}
