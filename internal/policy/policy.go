// Package policy holds the single role-to-action authorization table.
// Handlers consult Can once per request; the reservation engine never
// looks at roles.
package policy

import "github.com/iliyamo/equipment-lending/internal/model"

// Action is something a caller may ask the service to do.
type Action string

const (
	ActionCreate        Action = "create"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionIssue         Action = "issue"
	ActionReturn        Action = "return"
	ActionListAll       Action = "list_all"
	ActionManageCatalog Action = "manage_catalog"
)

var table = map[model.Role]map[Action]bool{
	model.RoleStudent: {
		ActionCreate: true,
	},
	model.RoleStaff: {
		ActionCreate:  true,
		ActionApprove: true,
		ActionReject:  true,
		ActionIssue:   true,
		ActionReturn:  true,
		ActionListAll: true,
	},
	model.RoleAdmin: {
		ActionCreate:        true,
		ActionApprove:       true,
		ActionReject:        true,
		ActionIssue:         true,
		ActionReturn:        true,
		ActionListAll:       true,
		ActionManageCatalog: true,
	},
}

// Can reports whether role may perform action. Unknown roles may do
// nothing.
func Can(role model.Role, action Action) bool {
	return table[role][action]
}
