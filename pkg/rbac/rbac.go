package rbac

const (
	PermissionNegotiate         = "offer:negotiate"
	PermissionSubmitProject     = "project:submit"
	PermissionChat              = "chat:send"
	PermissionAdminCounterOffer = "counter_offer:admin"
	PermissionReplayOutbox      = "outbox:replay"
	PermissionApplyPenalty      = "penalty:apply"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var rolePermissions = map[string][]string{
	RoleUser: {
		PermissionNegotiate,
		PermissionSubmitProject,
		PermissionChat,
	},
	RoleAdmin: {
		PermissionNegotiate,
		PermissionSubmitProject,
		PermissionChat,
		PermissionAdminCounterOffer,
		PermissionReplayOutbox,
		PermissionApplyPenalty,
	},
}

// NormalizeRole maps unknown or empty roles to RoleUser.
func NormalizeRole(role string) string {
	if _, ok := rolePermissions[role]; ok {
		return role
	}
	return RoleUser
}

// HasPermission reports whether role grants permission.
func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[NormalizeRole(role)] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission is HasPermission returning an error.
func CheckPermission(userID int64, role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Permission: permission,
		}
	}
	return nil
}

type PermissionDeniedError struct {
	UserID     int64
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
