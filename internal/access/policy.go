// Package access is the single authorization gate for every mutating
// operation. Policy is a pure predicate over (action, caller, owner email);
// handlers translate a false result into a FORBIDDEN error, never a silent
// filter.
package access

import (
	"strings"

	"github.com/google/uuid"

	"github.com/vantage-app/licensing-backend/pkg/enums"
	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
)

// Action names one guarded operation.
type Action string

const (
	ActionViewContract     Action = "contract.view"
	ActionCreateContract   Action = "contract.create"
	ActionUpdateContract   Action = "contract.update"
	ActionDeleteContract   Action = "contract.delete"
	ActionEditLicense      Action = "license.edit"
	ActionAdminEditLicense Action = "license.admin_edit"
	ActionUnbindLicense    Action = "license.unbind"
	ActionReconcileBilling Action = "billing.reconcile"
)

// Caller is the authenticated principal performing a request.
type Caller struct {
	UserID uuid.UUID
	Email  string
	Role   enums.Role
}

type rule struct {
	roles      []enums.Role
	allowOwner bool
}

// MANAGER may operate on any contract or license but may not delete contracts;
// deletes stay admin-only. USER is restricted to records owned by their email.
var rulesByAction = map[Action]rule{
	ActionViewContract:     {roles: []enums.Role{enums.RoleManager, enums.RoleAdmin}, allowOwner: true},
	ActionCreateContract:   {roles: []enums.Role{enums.RoleManager, enums.RoleAdmin}},
	ActionUpdateContract:   {roles: []enums.Role{enums.RoleManager, enums.RoleAdmin}},
	ActionDeleteContract:   {roles: []enums.Role{enums.RoleAdmin}},
	ActionEditLicense:      {roles: []enums.Role{enums.RoleManager, enums.RoleAdmin}, allowOwner: true},
	ActionAdminEditLicense: {roles: []enums.Role{enums.RoleManager, enums.RoleAdmin}},
	ActionUnbindLicense:    {roles: []enums.Role{enums.RoleManager, enums.RoleAdmin}, allowOwner: true},
	ActionReconcileBilling: {roles: []enums.Role{enums.RoleUser, enums.RoleManager, enums.RoleAdmin}},
}

// CanPerform reports whether the caller may execute action against a resource
// owned by resourceOwnerEmail (empty when the action is not resource-scoped).
func CanPerform(action Action, caller Caller, resourceOwnerEmail string) bool {
	r, ok := rulesByAction[action]
	if !ok {
		return false
	}
	for _, role := range r.roles {
		if caller.Role == role {
			return true
		}
	}
	if r.allowOwner && resourceOwnerEmail != "" {
		return strings.EqualFold(strings.TrimSpace(caller.Email), strings.TrimSpace(resourceOwnerEmail))
	}
	return false
}

// Require returns a typed FORBIDDEN error when CanPerform is false.
func Require(action Action, caller Caller, resourceOwnerEmail string) error {
	if CanPerform(action, caller, resourceOwnerEmail) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to "+string(action))
}
