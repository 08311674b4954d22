package domain

// EvaluateScope applies the scope ladder for a permission the role already
// holds. One rung per scope; every branch that does not explicitly allow
// denies, there is no fallthrough.
//
// Organization scope is deliberately stricter than CanAccessOrganization:
// the platform role reaches other organizations only through platform-scope
// permissions, never through organization-scope ones.
func EvaluateScope(tc TenantContext, scope Scope, res Resource) Decision {
	switch scope {
	case ScopePlatform:
		if tc.IsPlatformScope() {
			return Allow()
		}
		return Deny(ReasonPlatformScopeRequired)
	case ScopeOrganization:
		if res.OrgID == 0 {
			return Deny(ReasonInvalidResource)
		}
		if tc.WithinOwnOrganization(res.OrgID) {
			return Allow()
		}
		return Deny(ReasonOrganizationMismatch)
	case ScopeTeam:
		if res.OrgID == 0 || res.TeamID == 0 {
			return Deny(ReasonInvalidResource)
		}
		if tc.CanAccessTeam(res.OrgID, res.TeamID) {
			return Allow()
		}
		return Deny(ReasonTeamMismatch)
	case ScopeSelf:
		if res.OwnerID == 0 {
			return Deny(ReasonInvalidResource)
		}
		if res.OwnerID == tc.Principal().UserID {
			return Allow()
		}
		return Deny(ReasonNotRecordOwner)
	default:
		return Deny(ReasonInvalidResource)
	}
}

// EvaluateGranted finishes the gate for a permission the caller's role is
// already known to hold: scope ladder first, then the lifecycle restriction.
// Suspended and trial-expired organizations keep read access for a while but
// accept no writes; platform-scope permissions are exempt, they are how an
// operator lifts the suspension.
func EvaluateGranted(tc TenantContext, perm Permission, res Resource) Decision {
	scope, err := ScopeOf(perm)
	if err != nil {
		return Deny(ReasonRoleLacksPermission)
	}

	decision := EvaluateScope(tc, scope, res)
	if decision.Denied() {
		return decision
	}

	if scope != ScopePlatform && tc.WriteRestricted() && perm.Mutating() {
		return Deny(ReasonOrgSuspended)
	}

	return Allow()
}

// Evaluate is the full gate as a pure function: catalog check, role check,
// then EvaluateGranted. The service-level gate differs only in consulting
// the enforcer for the role check; the two must agree and the tests hold
// them to that.
func Evaluate(tc TenantContext, perm Permission, res Resource) (Decision, error) {
	if _, err := ScopeOf(perm); err != nil {
		return Deny(ReasonRoleLacksPermission), err
	}
	if !RoleHasPermission(tc.Principal().Role, perm) {
		return Deny(ReasonRoleLacksPermission), nil
	}
	return EvaluateGranted(tc, perm, res), nil
}
