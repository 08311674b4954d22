package domain

// ReasonCode is a machine-readable denial reason. Codes are part of the API
// surface; clients map them to user-facing copy, so they never carry
// internal details.
type ReasonCode string

const (
	ReasonRoleLacksPermission       ReasonCode = "role_lacks_permission"
	ReasonPlatformScopeRequired     ReasonCode = "platform_scope_required"
	ReasonOrganizationMismatch      ReasonCode = "organization_mismatch"
	ReasonTeamMismatch              ReasonCode = "team_mismatch"
	ReasonNotRecordOwner            ReasonCode = "not_record_owner"
	ReasonOrgSuspended              ReasonCode = "org_suspended"
	ReasonInvalidResource           ReasonCode = "invalid_resource"
	ReasonAssignmentNotPermitted    ReasonCode = "assignment_not_permitted"
	ReasonTargetOutsideOrganization ReasonCode = "target_outside_organization"
	ReasonTargetOutsideTeam         ReasonCode = "target_outside_team"
	ReasonTargetUnknown             ReasonCode = "target_unknown"
)

// Decision is the outcome of a gate or assignment check. Denial is a normal
// return value, not an error; the zero value denies.
type Decision struct {
	Allowed bool
	Reason  ReasonCode
}

// Allow returns a permitting decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a denial carrying the given reason code.
func Deny(reason ReasonCode) Decision { return Decision{Reason: reason} }

// Denied reports whether the decision blocks the operation.
func (d Decision) Denied() bool { return !d.Allowed }

// DeniedError carries a denial out of service calls whose signatures return
// data. Handlers unwrap it into a 403 with the reason code in the body.
type DeniedError struct {
	Permission Permission
	Reason     ReasonCode
}

func (e *DeniedError) Error() string {
	return "permission_denied: " + string(e.Reason)
}

// ErrDenied wraps a denial for the given permission check.
func ErrDenied(permission Permission, d Decision) error {
	return &DeniedError{Permission: permission, Reason: d.Reason}
}
