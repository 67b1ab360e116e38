package rbac

// Role constants
const (
	RolePrincipal = "principal"
	RoleReviewer  = "reviewer"
	RoleAdmin     = "admin"
)

// Permission constants
const (
	PermListProducts    = "list_products"
	PermCreateMediaBuy  = "create_media_buy"
	PermUpdateMediaBuy  = "update_media_buy"
	PermReadMediaBuy    = "read_media_buy"
	PermManageCreatives = "manage_creatives"
	PermReviewCreative  = "review_creative"
	PermApproveStep     = "approve_workflow_step"
	PermReadWorkflow    = "read_workflow"
)

var principalPermissions = []string{
	PermListProducts, PermCreateMediaBuy, PermUpdateMediaBuy, PermReadMediaBuy, PermManageCreatives,
}

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RolePrincipal: principalPermissions,
	RoleReviewer: {
		PermReadWorkflow, PermApproveStep, PermReviewCreative, PermReadMediaBuy,
	},
	RoleAdmin: append(append([]string{}, principalPermissions...),
		PermReadWorkflow, PermApproveStep, PermReviewCreative,
	),
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

func IsValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
